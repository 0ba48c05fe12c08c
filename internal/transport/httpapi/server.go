// Package httpapi is the public JSON API, the calendar feed and the
// reminder cron hook, served with gin.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"showroom/backend/internal/auth"
	"showroom/backend/internal/domain"
	"showroom/backend/internal/metrics"
	"showroom/backend/internal/service/booking"
	"showroom/backend/internal/service/calfeed"
	"showroom/backend/internal/service/reminders"
	"showroom/backend/internal/store"
	"showroom/backend/internal/transport/dto"
)

type AvailabilityService interface {
	ComputeAvailability(ctx context.Context, start, end domain.LocalDate, slotMinutes int) ([]domain.DayAvailability, error)
	SlotMinutes() int
}

type ClosureService interface {
	PublicClosures(ctx context.Context) ([]domain.DateOverride, error)
}

type BookingService interface {
	CreateAppointment(ctx context.Context, in booking.CreateInput) (domain.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) error
}

type FeedService interface {
	GenerateFeed(ctx context.Context, from, to domain.LocalDate, status domain.AppointmentStatus) ([]byte, error)
}

type ReminderRunner interface {
	RunOnce(ctx context.Context) (reminders.Report, error)
}

type Deps struct {
	Availability AvailabilityService
	Closures     ClosureService
	Bookings     BookingService
	Feed         FeedService
	Reminders    ReminderRunner
	Auth         auth.Authorizer
	Ready        store.ReadyChecker
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Location     *time.Location
	Clock        func() time.Time
}

type Server struct {
	deps Deps
	log  *slog.Logger
}

func NewServer(deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Server{deps: deps, log: log.With(slog.String("component", "http"))}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.log, s.deps.Metrics))

	r.GET("/healthz", s.healthz)
	r.GET("/readyz", s.readyz)
	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/availability", s.getAvailability)
	v1.GET("/closures", s.getClosures)
	v1.POST("/appointments", s.createAppointment)
	v1.DELETE("/appointments/:id", s.cancelAppointment)
	v1.GET("/calendar/:token/feed.ics", s.calendarFeed)

	internal := r.Group("/internal")
	internal.GET("/cron/reminders", s.runReminders)
	internal.POST("/cron/reminders", s.runReminders)

	return r
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readyz(c *gin.Context) {
	if s.deps.Ready == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Ready.Ping(ctx); err != nil {
		s.log.Warn("readiness check failed", slog.Any("err", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /api/v1/availability?start=YYYY-MM-DD&end=YYYY-MM-DD&duration=60
func (s *Server) getAvailability(c *gin.Context) {
	startStr, endStr := c.Query("start"), c.Query("end")
	if startStr == "" || endStr == "" {
		s.writeError(c, domain.Validationf("start and end are required (YYYY-MM-DD)"))
		return
	}
	start, err := domain.ParseDate(startStr)
	if err != nil {
		s.writeError(c, err)
		return
	}
	end, err := domain.ParseDate(endStr)
	if err != nil {
		s.writeError(c, err)
		return
	}
	duration := 0
	if raw := c.Query("duration"); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil || duration <= 0 {
			s.writeError(c, domain.Validationf("duration must be a positive number of minutes"))
			return
		}
	}

	days, err := s.deps.Availability.ComputeAvailability(c.Request.Context(), start, end, duration)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.FromDays(days))
}

// GET /api/v1/closures
func (s *Server) getClosures(c *gin.Context) {
	closures, err := s.deps.Closures.PublicClosures(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, dto.FromClosures(closures))
}

// POST /api/v1/appointments
func (s *Server) createAppointment(c *gin.Context) {
	var req dto.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.Validationf("invalid request body"))
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}
	in, err := req.ToCreateInput(s.deps.Availability.SlotMinutes())
	if err != nil {
		s.writeError(c, err)
		return
	}

	appt, err := s.deps.Bookings.CreateAppointment(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromAppointment(appt))
}

// DELETE /api/v1/appointments/:id
func (s *Server) cancelAppointment(c *gin.Context) {
	id, err := dto.ParseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.deps.Bookings.CancelAppointment(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/calendar/:token/feed.ics
func (s *Server) calendarFeed(c *gin.Context) {
	if !s.deps.Auth.Authorize(auth.Actor{Credential: c.Param("token")}, auth.ActionReadFeed) {
		s.writeError(c, &domain.AuthorizationError{Action: string(auth.ActionReadFeed)})
		return
	}

	var status domain.AppointmentStatus
	if raw := c.Query("status"); raw != "" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if st == domain.StatusCompleted {
			s.writeError(c, domain.Validationf("status %q cannot be filtered in the feed", st))
			return
		}
		status = st
	}

	from, to := calfeed.FeedWindow(domain.DateOf(s.deps.Clock(), s.deps.Location))
	body, err := s.deps.Feed.GenerateFeed(c.Request.Context(), from, to, status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Header("Content-Disposition", `inline; filename="appointments.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

// GET|POST /internal/cron/reminders
func (s *Server) runReminders(c *gin.Context) {
	secret := c.GetHeader("X-Cron-Secret")
	if secret == "" {
		secret = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if !s.deps.Auth.Authorize(auth.Actor{Credential: secret}, auth.ActionRunReminders) {
		s.writeError(c, &domain.AuthorizationError{Action: string(auth.ActionRunReminders)})
		return
	}

	report, err := s.deps.Reminders.RunOnce(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
