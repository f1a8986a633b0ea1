// Package postgres хранилище резервирований и остатков на PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akriventsev/stockflow/framework/migrations"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Config конфигурация подключения
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// Validate проверяет корректность конфигурации
func (c Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("MaxConns must be greater than 0")
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("MinConns must be between 0 and MaxConns")
	}
	return nil
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		MaxConns:        25,
		MinConns:        2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// NewPool создает пул соединений и проверяет доступность базы
func NewPool(ctx context.Context, config Config) (*pgxpool.Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	poolConfig.MaxConns = config.MaxConns
	poolConfig.MinConns = config.MinConns
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return pool, nil
}

// Migrate применяет встроенные миграции схемы
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return migrations.UpFromPool(ctx, pool, migrationFiles, "migrations")
}
