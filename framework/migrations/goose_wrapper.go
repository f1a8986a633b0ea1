// Package migrations предоставляет обертку над goose для управления миграциями схемы базы данных.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrationStatus представляет статус миграции
type MigrationStatus struct {
	Version   int64
	Name      string
	AppliedAt *time.Time
	Status    string // "pending", "applied"
}

// Up применяет все pending миграции из dir внутри fsys (обычно embed.FS)
func Up(ctx context.Context, db *sql.DB, fsys fs.FS, dir string) error {
	provider, err := newProvider(db, fsys, dir)
	if err != nil {
		return err
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// UpFromPool применяет миграции через database/sql поверх пула pgx
func UpFromPool(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return Up(ctx, db, fsys, dir)
}

// Status возвращает статус всех известных миграций
func Status(ctx context.Context, db *sql.DB, fsys fs.FS, dir string) ([]MigrationStatus, error) {
	provider, err := newProvider(db, fsys, dir)
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}

	result := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		status := MigrationStatus{
			Version: s.Source.Version,
			Name:    s.Source.Path,
			Status:  "pending",
		}
		if s.State == goose.StateApplied {
			appliedAt := s.AppliedAt
			status.AppliedAt = &appliedAt
			status.Status = "applied"
		}
		result = append(result, status)
	}
	return result, nil
}

func newProvider(db *sql.DB, fsys fs.FS, dir string) (*goose.Provider, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations dir %s: %w", dir, err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}
