package postgres

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/uptrace/bun"

	"showroom/backend/internal/store"
)

// JobLocker uses session-level advisory locks pinned to a dedicated
// connection, so the lock lives exactly as long as the job holds it.
type JobLocker struct {
	db  *bun.DB
	log *slog.Logger
}

var _ store.JobLocker = (*JobLocker)(nil)

func NewJobLocker(db *bun.DB, log *slog.Logger) *JobLocker {
	if log == nil {
		log = slog.Default()
	}
	return &JobLocker{db: db, log: log.With(slog.String("component", "postgres.job_locker"))}
}

func (l *JobLocker) TryLock(ctx context.Context, name string) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}

	var acquired bool
	if err := conn.NewRaw("SELECT pg_try_advisory_lock(hashtext(?))", name).Scan(ctx, &acquired); err != nil {
		_ = conn.Close()
		return nil, false, err
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.NewRaw("SELECT pg_advisory_unlock(hashtext(?))", name).Exec(unlockCtx); err != nil {
				l.log.Warn("advisory unlock failed", slog.String("lock", name), slog.Any("err", err))
			}
			if err := conn.Close(); err != nil {
				l.log.Warn("lock connection close failed", slog.String("lock", name), slog.Any("err", err))
			}
		})
	}
	return unlock, true, nil
}
