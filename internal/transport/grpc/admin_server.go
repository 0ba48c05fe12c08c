package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"showroom/backend/internal/domain"
	"showroom/backend/internal/service/reminders"
	"showroom/backend/internal/transport/dto"
)

type scheduleService interface {
	WeeklyHours(ctx context.Context) ([]domain.WeeklyHoursEntry, error)
	UpdateWeeklyHours(ctx context.Context, entries []domain.WeeklyHoursEntry) ([]domain.WeeklyHoursEntry, error)
	ListOverrides(ctx context.Context, includePast bool) ([]domain.DateOverride, error)
	CreateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error)
	UpdateOverride(ctx context.Context, o domain.DateOverride) (domain.DateOverride, error)
	DeleteOverride(ctx context.Context, id uuid.UUID) error
}

type bookingAdmin interface {
	ListAppointments(ctx context.Context, from, to domain.LocalDate, status domain.AppointmentStatus) ([]domain.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) error
	RescheduleAppointment(ctx context.Context, id uuid.UUID, newDate domain.LocalDate, newTime domain.LocalTime) (domain.Appointment, error)
}

type reminderRunner interface {
	RunOnce(ctx context.Context) (reminders.Report, error)
}

type AdminServer struct {
	schedule  scheduleService
	bookings  bookingAdmin
	reminders reminderRunner
	log       *slog.Logger
}

var _ AdminServiceServer = (*AdminServer)(nil)

func NewAdminServer(schedule scheduleService, bookings bookingAdmin, runner reminderRunner, log *slog.Logger) *AdminServer {
	if log == nil {
		log = slog.Default()
	}
	return &AdminServer{
		schedule:  schedule,
		bookings:  bookings,
		reminders: runner,
		log:       log.With(slog.String("component", "grpc.admin")),
	}
}

type weeklyHoursMessage struct {
	WeeklyHours []dto.WeeklyHoursEntry `json:"weeklyHours"`
}

type overridesMessage struct {
	Overrides []dto.DateOverride `json:"overrides"`
}

type overrideMessage struct {
	Override dto.DateOverride `json:"override"`
}

type idMessage struct {
	ID string `json:"id"`
}

type listOverridesRequest struct {
	IncludePast bool `json:"includePast"`
}

type listAppointmentsRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Status string `json:"status"`
}

type appointmentsMessage struct {
	Appointments []dto.Appointment `json:"appointments"`
}

type rescheduleRequest struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Time string `json:"time"`
}

type appointmentMessage struct {
	Appointment dto.Appointment `json:"appointment"`
}

func (s *AdminServer) GetWeeklyHours(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	entries, err := s.schedule.WeeklyHours(ctx)
	if err != nil {
		return nil, s.toStatus("GetWeeklyHours", err)
	}
	return encode(weeklyHoursMessage{WeeklyHours: dto.FromWeekly(entries)})
}

func (s *AdminServer) UpdateWeeklyHours(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in weeklyHoursMessage
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	entries, err := dto.ToWeekly(in.WeeklyHours)
	if err != nil {
		return nil, s.toStatus("UpdateWeeklyHours", err)
	}
	saved, err := s.schedule.UpdateWeeklyHours(ctx, entries)
	if err != nil {
		return nil, s.toStatus("UpdateWeeklyHours", err)
	}
	s.log.Info("weekly hours updated")
	return encode(weeklyHoursMessage{WeeklyHours: dto.FromWeekly(saved)})
}

func (s *AdminServer) ListOverrides(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listOverridesRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	list, err := s.schedule.ListOverrides(ctx, in.IncludePast)
	if err != nil {
		return nil, s.toStatus("ListOverrides", err)
	}
	return encode(overridesMessage{Overrides: dto.FromOverrides(list)})
}

func (s *AdminServer) CreateOverride(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in overrideMessage
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	o, err := in.Override.ToDomain()
	if err != nil {
		return nil, s.toStatus("CreateOverride", err)
	}
	created, err := s.schedule.CreateOverride(ctx, o)
	if err != nil {
		return nil, s.toStatus("CreateOverride", err)
	}
	s.log.Info("override created", slog.String("override_id", created.ID.String()), slog.String("date", created.Date.String()))
	return encode(overrideMessage{Override: dto.FromOverride(created)})
}

func (s *AdminServer) UpdateOverride(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in overrideMessage
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	o, err := in.Override.ToDomain()
	if err != nil {
		return nil, s.toStatus("UpdateOverride", err)
	}
	if o.ID == uuid.Nil {
		return nil, status.Error(codes.InvalidArgument, "override.id is required")
	}
	updated, err := s.schedule.UpdateOverride(ctx, o)
	if err != nil {
		return nil, s.toStatus("UpdateOverride", err)
	}
	s.log.Info("override updated", slog.String("override_id", updated.ID.String()))
	return encode(overrideMessage{Override: dto.FromOverride(updated)})
}

func (s *AdminServer) DeleteOverride(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requestID(req)
	if err != nil {
		return nil, err
	}
	if err := s.schedule.DeleteOverride(ctx, id); err != nil {
		return nil, s.toStatus("DeleteOverride", err)
	}
	s.log.Info("override deleted", slog.String("override_id", id.String()))
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

func (s *AdminServer) ListAppointments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listAppointmentsRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.From == "" || in.To == "" {
		return nil, status.Error(codes.InvalidArgument, "from and to are required")
	}
	from, err := domain.ParseDate(in.From)
	if err != nil {
		return nil, s.toStatus("ListAppointments", err)
	}
	to, err := domain.ParseDate(in.To)
	if err != nil {
		return nil, s.toStatus("ListAppointments", err)
	}
	var st domain.AppointmentStatus
	if in.Status != "" {
		if st, err = domain.ParseStatus(in.Status); err != nil {
			return nil, s.toStatus("ListAppointments", err)
		}
	}

	appts, err := s.bookings.ListAppointments(ctx, from, to, st)
	if err != nil {
		return nil, s.toStatus("ListAppointments", err)
	}
	s.log.Debug("appointments listed", slog.Int("count", len(appts)), slog.String("from", in.From), slog.String("to", in.To))
	return encode(appointmentsMessage{Appointments: dto.FromAppointments(appts)})
}

func (s *AdminServer) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requestID(req)
	if err != nil {
		return nil, err
	}
	if err := s.bookings.CancelAppointment(ctx, id); err != nil {
		return nil, s.toStatus("CancelAppointment", err)
	}
	s.log.Info("appointment cancelled by admin", slog.String("appointment_id", id.String()))
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

func (s *AdminServer) RescheduleAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in rescheduleRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	id, err := dto.ParseID(in.ID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "id must be a UUID")
	}
	date, err := domain.ParseDate(in.Date)
	if err != nil {
		return nil, s.toStatus("RescheduleAppointment", err)
	}
	t, err := domain.ParseClock(in.Time)
	if err != nil {
		return nil, s.toStatus("RescheduleAppointment", err)
	}

	moved, err := s.bookings.RescheduleAppointment(ctx, id, date, t)
	if err != nil {
		return nil, s.toStatus("RescheduleAppointment", err)
	}
	s.log.Info("appointment rescheduled",
		slog.String("from_id", id.String()),
		slog.String("appointment_id", moved.ID.String()),
		slog.String("date", moved.Date.String()),
	)
	return encode(appointmentMessage{Appointment: dto.FromAppointment(moved)})
}

func (s *AdminServer) RunReminderPass(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	report, err := s.reminders.RunOnce(ctx)
	if err != nil {
		return nil, s.toStatus("RunReminderPass", err)
	}
	return encode(report)
}

func (s *AdminServer) toStatus(rpc string, err error) error {
	log := s.log.With(slog.String("rpc", rpc))
	var (
		vErr    *domain.ValidationError
		rErr    *domain.InvalidRangeError
		pErr    *domain.PastDateError
		oErr    *domain.OutsideOpeningHoursError
		sErr    *domain.SlotUnavailableError
		nfErr   *domain.NotFoundError
		authErr *domain.AuthorizationError
		suErr   *domain.StorageUnavailableError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &rErr):
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &pErr), errors.As(err, &oErr):
		log.Info("request rejected", slog.Any("err", err))
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &sErr):
		log.Info("slot conflict")
		return status.Error(codes.Aborted, domain.SlotUnavailableMessage)
	case errors.As(err, &nfErr):
		log.Info("not found", slog.Any("err", err))
		return status.Error(codes.NotFound, nfErr.Error())
	case errors.As(err, &authErr):
		if authErr.Forbidden {
			return status.Error(codes.PermissionDenied, "forbidden")
		}
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.As(err, &suErr):
		log.Error("storage unavailable", slog.Any("err", err))
		return status.Error(codes.Unavailable, "Something went wrong. Please try again.")
	default:
		log.Error("admin call failed", slog.Any("err", err))
		return status.Error(codes.Internal, "internal error")
	}
}

// decode maps a Struct onto a DTO through its canonical JSON form.
func decode(req *structpb.Struct, dst any) error {
	if req == nil {
		req = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, "malformed request")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func requestID(req *structpb.Struct) (uuid.UUID, error) {
	var in idMessage
	if err := decode(req, &in); err != nil {
		return uuid.Nil, err
	}
	id, err := dto.ParseID(in.ID)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "id must be a UUID")
	}
	return id, nil
}
