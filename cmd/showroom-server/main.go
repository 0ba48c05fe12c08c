package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"showroom/backend/internal/auth"
	"showroom/backend/internal/cache"
	"showroom/backend/internal/config"
	"showroom/backend/internal/metrics"
	"showroom/backend/internal/notify"
	"showroom/backend/internal/service/availability"
	"showroom/backend/internal/service/booking"
	"showroom/backend/internal/service/calfeed"
	"showroom/backend/internal/service/reminders"
	"showroom/backend/internal/service/schedule"
	"showroom/backend/internal/store"
	"showroom/backend/internal/store/cached"
	"showroom/backend/internal/store/memory"
	"showroom/backend/internal/store/postgres"
	grpcTransport "showroom/backend/internal/transport/grpc"
	"showroom/backend/internal/transport/httpapi"
	"showroom/backend/migrations"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "showroom-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "showroom-server"),
	)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("database_driver", cfg.DatabaseDriver),
		slog.String("timezone", cfg.Business.Timezone),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("store setup failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer closeStores()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mailer := newMailer(cfg, log)
	var sms notify.SMSSender
	if cfg.SMS.Enabled() {
		sms = notify.NewTwilioSMS(notify.TwilioConfig{
			AccountSID: cfg.SMS.TwilioAccountSID,
			AuthToken:  cfg.SMS.TwilioAuthToken,
			From:       cfg.SMS.TwilioFrom,
		}, log)
		log.Info("sms reminders enabled")
	}

	loc := cfg.Business.Location
	minAdvance := time.Duration(cfg.Booking.MinHoursBeforeBooking) * time.Hour

	calc := availability.NewCalculator(stores.policy, stores.overrides, stores.appointments, availability.Config{
		SlotMinutes:  cfg.Booking.SlotMinutes,
		MaxRangeDays: cfg.Booking.MaxRangeDays,
		MinAdvance:   minAdvance,
		Location:     loc,
	}, log)
	bookings := booking.NewService(calc, stores.appointments, mailer, m, booking.Config{
		Location:           loc,
		MinAdvance:         minAdvance,
		MaxDurationMinutes: cfg.Booking.MaxDurationMinutes,
		IdempotencySecret:  []byte(cfg.Secrets.Booking),
	}, log)
	settings := schedule.NewService(stores.policy, stores.overrides, loc, time.Now, log)
	exporter := calfeed.NewExporter(stores.appointments, m, calfeed.Config{
		Timezone:     cfg.Business.Timezone,
		CalendarName: cfg.Business.Name + " appointments",
		Address:      cfg.Business.Address,
		Domain:       cfg.Business.FeedDomain,
	}, log)
	scheduler := reminders.NewScheduler(stores.appointments, mailer, sms, m, reminders.Config{
		Location:      loc,
		PassInterval:  cfg.Reminders.PassInterval,
		RatePerSecond: cfg.Reminders.RatePerSecond,
		BusinessName:  cfg.Business.Name,
		Address:       cfg.Business.Address,
	}, log)
	runner := reminders.NewRunner(scheduler, stores.locker, reminders.RunnerConfig{
		HoursBefore:          cfg.Reminders.HoursBefore,
		MinHoursAfterBooking: cfg.Reminders.MinHoursAfterBooking,
	}, log)

	authz := auth.New(auth.Config{
		FeedSecret:     cfg.Secrets.Feed,
		CronSecret:     cfg.Secrets.Cron,
		AdminJWTSecret: cfg.Secrets.AdminJWT,
	})
	warnEmptySecrets(cfg, log)

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewServer(httpapi.Deps{
			Availability: calc,
			Closures:     settings,
			Bookings:     bookings,
			Feed:         exporter,
			Reminders:    runner,
			Auth:         authz,
			Ready:        stores.ready,
			Metrics:      m,
			Gatherer:     reg,
			Location:     loc,
		}, log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer := grpcTransport.NewServer(
		grpcTransport.NewAdminServer(settings, bookings, runner, log),
		authz,
		grpcTransport.ServerConfig{RequestTimeout: cfg.GRPCRequestTimeout},
		log,
	)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("servers started", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("http_addr", cfg.HTTPAddr))

	if cfg.Reminders.Enabled {
		if err := runner.Start(cfg.Reminders.Schedule, loc); err != nil {
			log.Error("reminder schedule invalid", slog.Any("err", err), slog.String("schedule", cfg.Reminders.Schedule))
			os.Exit(1)
		}
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
		}
	}
	shutdown(log, httpServer, grpcServer, healthServer, runner, cfg.ShutdownTimeout)
}

type storeSet struct {
	policy       store.PolicyStore
	overrides    store.OverrideStore
	appointments store.AppointmentStore
	locker       store.JobLocker
	ready        store.ReadyChecker
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (storeSet, func(), error) {
	var (
		set     storeSet
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.DatabaseDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		mem := memory.New()
		set = storeSet{policy: mem, overrides: mem, appointments: mem, locker: mem, ready: mem}
	default:
		log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
		db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
			log.Error("database connection failed", args...)
			return storeSet{}, nil, err
		}
		closers = append(closers, func() {
			if err := postgres.Close(db); err != nil {
				log.Warn("database close failed", slog.Any("err", err))
			}
		})
		if cfg.DBAutoMigrate {
			if err := postgres.Migrate(ctx, db, migrations.FS, log); err != nil {
				closeAll()
				return storeSet{}, nil, err
			}
		}
		appts := postgres.NewAppointmentRepo(db)
		set = storeSet{
			policy:       postgres.NewPolicyRepo(db),
			overrides:    postgres.NewOverrideRepo(db),
			appointments: appts,
			locker:       postgres.NewJobLocker(db, log),
			ready:        appts,
		}
	}

	var c cache.Cache = cache.Nop{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rc := cache.NewRedisCache(client, "showroom:", log)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pingCtx)
		cancel()
		if err != nil {
			// Cache errors fall through to the store.
			log.Warn("redis unreachable at startup", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		} else {
			log.Info("redis cache enabled", slog.String("redis_addr", cfg.RedisAddr), slog.Duration("ttl", cfg.CacheTTL))
		}
		closers = append(closers, func() { _ = client.Close() })
		c = rc
	}
	set.policy = cached.NewPolicyStore(set.policy, c, cfg.CacheTTL, log)
	set.overrides = cached.NewOverrideStore(set.overrides, c, cfg.CacheTTL, log)

	return set, closeAll, nil
}

func newMailer(cfg config.Config, log *slog.Logger) notify.Mailer {
	if cfg.Mail.SidemailAPIKey == "" {
		log.Warn("no mail provider configured; emails are logged only")
		return notify.NewLogMailer(log)
	}
	return notify.NewSidemailMailer(notify.SidemailConfig{
		APIKey:      cfg.Mail.SidemailAPIKey,
		BaseURL:     cfg.Mail.SidemailURL,
		FromAddress: cfg.Mail.FromAddress,
		FromName:    cfg.Mail.FromName,
	}, log)
}

func warnEmptySecrets(cfg config.Config, log *slog.Logger) {
	if cfg.Secrets.Feed == "" {
		log.Warn("calendar feed secret is empty; the feed rejects every request")
	}
	if cfg.Secrets.Cron == "" {
		log.Warn("cron secret is empty; the reminder hook rejects every request")
	}
	if cfg.Secrets.AdminJWT == "" {
		log.Warn("admin jwt secret is empty; the admin api rejects every request")
	}
	if cfg.Secrets.Booking == "" {
		log.Warn("booking secret is empty; idempotent retries only match until restart")
	}
}

func shutdown(log *slog.Logger, hs *http.Server, gs *grpc.Server, hc *health.Server, runner *reminders.Runner, timeout time.Duration) {
	log.Info("shutting down", slog.Duration("timeout", timeout))
	hc.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	runner.Stop(ctx)
	if err := hs.Shutdown(ctx); err != nil {
		log.Warn("http shutdown incomplete", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		gs.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
