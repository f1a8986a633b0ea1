package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/events"
)

const uniqueViolationCode = "23505"

// PostgresEventStoreConfig конфигурация для PostgreSQL Event Store
type PostgresEventStoreConfig struct {
	SchemaName string
	TableName  string
}

// Validate проверяет корректность конфигурации
func (c PostgresEventStoreConfig) Validate() error {
	if c.SchemaName == "" {
		return fmt.Errorf("schema name cannot be empty")
	}
	if c.TableName == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	return nil
}

// DefaultPostgresEventStoreConfig возвращает конфигурацию по умолчанию
func DefaultPostgresEventStoreConfig() PostgresEventStoreConfig {
	return PostgresEventStoreConfig{
		SchemaName: "public",
		TableName:  "domain_events",
	}
}

// PostgresEventStore реализация EventStore для PostgreSQL.
// Уникальность (subject_id, event_kind) обеспечивается первичным ключом таблицы.
type PostgresEventStore struct {
	config PostgresEventStoreConfig
	pool   *pgxpool.Pool
	table  string
}

// NewPostgresEventStore создает новый PostgreSQL Event Store поверх общего пула соединений
func NewPostgresEventStore(pool *pgxpool.Pool, config PostgresEventStoreConfig) (*PostgresEventStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	return &PostgresEventStore{
		config: config,
		pool:   pool,
		table:  fmt.Sprintf("%s.%s", config.SchemaName, config.TableName),
	}, nil
}

// Name возвращает имя компонента
func (s *PostgresEventStore) Name() string {
	return "postgres-event-store"
}

// Type возвращает тип компонента
func (s *PostgresEventStore) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// HealthCheck проверяет доступность базы данных
func (s *PostgresEventStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Append добавляет событие одним условным INSERT
func (s *PostgresEventStore) Append(ctx context.Context, event events.Event) error {
	stored, err := NewStoredEvent(event)
	if err != nil {
		return err
	}

	metadata, err := json.Marshal(stored.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (subject_id, event_kind, event_id, event_data, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subject_id, event_kind) DO NOTHING
	`, s.table)

	tag, err := s.pool.Exec(ctx, query,
		stored.SubjectID,
		stored.EventKind,
		stored.ID,
		[]byte(stored.EventData),
		metadata,
		stored.CreatedAt,
		stored.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

// Load возвращает события субъекта
func (s *PostgresEventStore) Load(ctx context.Context, subjectID string) ([]StoredEvent, error) {
	query := fmt.Sprintf(`
		SELECT event_id::text, subject_id, event_kind, event_data, metadata, created_at, updated_at
		FROM %s
		WHERE subject_id = $1
		ORDER BY created_at ASC, event_kind ASC
	`, s.table)

	rows, err := s.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var result []StoredEvent
	for rows.Next() {
		var stored StoredEvent
		var eventData, metadataJSON []byte

		if err := rows.Scan(
			&stored.ID,
			&stored.SubjectID,
			&stored.EventKind,
			&eventData,
			&metadataJSON,
			&stored.CreatedAt,
			&stored.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		stored.EventData = json.RawMessage(eventData)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &stored.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		result = append(result, stored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}
