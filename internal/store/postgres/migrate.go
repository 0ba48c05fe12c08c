package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

// Migrate applies the Up section of every *.sql file in fsys that has not
// been recorded in schema_migrations, one transaction per file.
func Migrate(ctx context.Context, db *bun.DB, fsys fs.FS, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	if _, err := db.NewRaw(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`).Exec(ctx); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := migrationFiles(fsys)
	if err != nil {
		return err
	}

	for _, name := range names {
		err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext('schema_migrations'))").Exec(ctx); err != nil {
				return err
			}
			applied, err := tx.NewSelect().
				TableExpr("schema_migrations").
				Where("version = ?", name).
				Exists(ctx)
			if err != nil {
				return err
			}
			if applied {
				return nil
			}
			if err := applyFile(ctx, tx, fsys, name); err != nil {
				return err
			}
			if _, err := tx.NewRaw("INSERT INTO schema_migrations (version) VALUES (?)", name).Exec(ctx); err != nil {
				return err
			}
			log.Info("migration applied", slog.String("version", name))
			return nil
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

// ApplyMigrations runs every Up section against db without bookkeeping.
// Tests use it inside a transaction scoped to a throwaway schema.
func ApplyMigrations(ctx context.Context, db bun.IDB, fsys fs.FS) error {
	names, err := migrationFiles(fsys)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := applyFile(ctx, db, fsys, name); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func migrationFiles(fsys fs.FS) ([]string, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func applyFile(ctx context.Context, db bun.IDB, fsys fs.FS, name string) error {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	upSQL, err := extractGooseUp(string(b))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQLStatements(upSQL) {
		if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
