package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/txn"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

// numeric_value_out_of_range: остаток после пополнения не помещается в INTEGER
const numericOutOfRangeCode = "22003"

const (
	insertAllocationSQL = `
		INSERT INTO stock_allocations (order_id, sku, units, price, buyer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		ON CONFLICT (order_id, sku) DO NOTHING`

	decrementStockSQL = `
		UPDATE sku_stock
		SET units = units - $2, updated_at = $3
		WHERE sku = $1 AND units >= $2`

	selectAllocationSQL = `
		SELECT order_id, sku, units, price::text, buyer_id, status, created_at, updated_at
		FROM stock_allocations
		WHERE order_id = $1 AND sku = $2`

	restockSQL = `
		INSERT INTO sku_stock (sku, units, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (sku) DO UPDATE
		SET units = sku_stock.units + EXCLUDED.units, updated_at = EXCLUDED.updated_at
		RETURNING sku, units, updated_at`

	selectStockSQL = `
		SELECT sku, units, updated_at
		FROM sku_stock
		WHERE sku = $1`
)

// Store хранилище резервирований и остатков на PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore создает хранилище поверх пула соединений
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger.Named("postgres-store")}
}

// Name возвращает имя компонента
func (s *Store) Name() string {
	return "postgres-allocation-store"
}

// Type возвращает тип компонента
func (s *Store) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// HealthCheck проверяет соединение с базой
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Allocate выполняет две условные операции в одной транзакции:
// создание резервирования при его отсутствии и списание остатка при достаточном количестве.
func (s *Store) Allocate(ctx context.Context, cmd domain.AllocateOrderStockCommand) core.Result[struct{}] {
	if !cmd.IsValid() {
		return core.Fail[struct{}](domain.InvalidArguments(errors.New("command was not built by its constructor")))
	}

	allocation := domain.NewStockAllocation(cmd)
	err := txn.Execute(ctx, s.pool,
		txn.ConditionalExec(domain.ConditionAllocationAbsent, insertAllocationSQL,
			allocation.OrderID,
			allocation.Sku,
			allocation.Units,
			allocation.Price.String(),
			allocation.BuyerID,
			string(allocation.Status),
			allocation.CreatedAt,
			allocation.UpdatedAt,
		),
		txn.ConditionalExec(domain.ConditionStockSufficient, decrementStockSQL,
			allocation.Sku,
			allocation.Units,
			allocation.UpdatedAt,
		),
	)
	if err != nil {
		failure := domain.ClassifyAllocationFailure(err)
		s.logger.Debug("allocation transaction rejected",
			zap.String("order_id", cmd.OrderID()),
			zap.String("sku", cmd.Sku()),
			zap.String("kind", string(failure.Kind)),
			zap.Error(err))
		return core.Fail[struct{}](failure)
	}
	return core.Ok(struct{}{})
}

// GetAllocation возвращает резервирование или None
func (s *Store) GetAllocation(ctx context.Context, orderID, sku string) core.Result[core.Option[domain.StockAllocation]] {
	var (
		allocation domain.StockAllocation
		price      string
		status     string
	)
	err := s.pool.QueryRow(ctx, selectAllocationSQL, orderID, sku).Scan(
		&allocation.OrderID,
		&allocation.Sku,
		&allocation.Units,
		&price,
		&allocation.BuyerID,
		&status,
		&allocation.CreatedAt,
		&allocation.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Ok(core.None[domain.StockAllocation]())
	}
	if err != nil {
		return core.Fail[core.Option[domain.StockAllocation]](domain.Unrecognized(fmt.Errorf("failed to query allocation: %w", err)))
	}

	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return core.Fail[core.Option[domain.StockAllocation]](domain.Unrecognized(fmt.Errorf("failed to parse price: %w", err)))
	}
	allocation.Price = parsed
	allocation.Status = domain.AllocationStatus(status)
	return core.Ok(core.Some(allocation))
}

// Restock увеличивает остаток SKU; отсутствующий счетчик создается
func (s *Store) Restock(ctx context.Context, cmd domain.RestockSkuCommand) core.Result[domain.SkuStock] {
	if cmd.Sku() == "" || cmd.Units() <= 0 {
		return core.Fail[domain.SkuStock](domain.InvalidArguments(errors.New("command was not built by its constructor")))
	}
	at := cmd.CreatedAt()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var stock domain.SkuStock
	err := s.pool.QueryRow(ctx, restockSQL, cmd.Sku(), cmd.Units(), at).
		Scan(&stock.Sku, &stock.Units, &stock.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == numericOutOfRangeCode {
		return core.Fail[domain.SkuStock](domain.InvalidArguments(fmt.Errorf("stock of %s would exceed %d units", cmd.Sku(), domain.MaxUnits)))
	}
	if err != nil {
		return core.Fail[domain.SkuStock](domain.Unrecognized(fmt.Errorf("failed to restock sku: %w", err)))
	}
	return core.Ok(stock)
}

// GetStock возвращает остаток SKU или None
func (s *Store) GetStock(ctx context.Context, sku string) core.Result[core.Option[domain.SkuStock]] {
	var stock domain.SkuStock
	err := s.pool.QueryRow(ctx, selectStockSQL, sku).Scan(&stock.Sku, &stock.Units, &stock.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Ok(core.None[domain.SkuStock]())
	}
	if err != nil {
		return core.Fail[core.Option[domain.SkuStock]](domain.Unrecognized(fmt.Errorf("failed to query stock: %w", err)))
	}
	return core.Ok(core.Some(stock))
}
