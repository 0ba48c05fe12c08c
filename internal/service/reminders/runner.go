package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"showroom/backend/internal/store"
)

const lockName = "reminder-pass"

// Runner serializes reminder passes across processes and drives them from a
// cron schedule.
type Runner struct {
	scheduler     *Scheduler
	locker        store.JobLocker
	hoursBefore   int
	minHoursAfter int
	passTimeout   time.Duration
	log           *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

type RunnerConfig struct {
	HoursBefore          int
	MinHoursAfterBooking int
	// PassTimeout bounds a cron-triggered pass. Zero means 30 minutes.
	PassTimeout time.Duration
}

func NewRunner(scheduler *Scheduler, locker store.JobLocker, cfg RunnerConfig, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = 30 * time.Minute
	}
	return &Runner{
		scheduler:     scheduler,
		locker:        locker,
		hoursBefore:   cfg.HoursBefore,
		minHoursAfter: cfg.MinHoursAfterBooking,
		passTimeout:   cfg.PassTimeout,
		log:           log.With(slog.String("component", "reminder_runner")),
	}
}

// RunOnce runs a pass unless another one holds the lock, in which case the
// report is marked Skipped.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	unlock, ok, err := r.locker.TryLock(ctx, lockName)
	if err != nil {
		r.log.Error("acquire reminder lock failed", slog.Any("err", err))
		return Report{}, fmt.Errorf("acquire %s lock: %w", lockName, err)
	}
	if !ok {
		r.log.Info("reminder pass skipped, lock held elsewhere")
		return Report{Failed: []FailedReminder{}, Skipped: true}, nil
	}
	defer unlock()

	return r.scheduler.RunReminderPass(ctx, r.hoursBefore, r.minHoursAfter), nil
}

// Start schedules passes with a standard five-field cron spec evaluated in
// loc.
func (r *Runner) Start(spec string, loc *time.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("reminder runner already started")
	}
	if loc == nil {
		loc = time.UTC
	}

	logger := cronLogger{log: r.log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, r.runScheduled); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", spec, err)
	}
	c.Start()
	r.cron = c
	r.log.Info("reminder runner started", slog.String("schedule", spec), slog.String("timezone", loc.String()))
	return nil
}

// Stop halts the schedule and waits for a running pass up to ctx.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
		r.log.Info("reminder runner stopped")
	case <-ctx.Done():
		r.log.Warn("reminder runner stop timed out")
	}
}

func (r *Runner) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), r.passTimeout)
	defer cancel()

	report, err := r.RunOnce(ctx)
	if err != nil {
		return
	}
	if len(report.Failed) > 0 {
		r.log.Warn("reminder pass had failures", slog.Int("failed", len(report.Failed)))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]any{slog.Any("err", err)}, keysAndValues...)...)
}
