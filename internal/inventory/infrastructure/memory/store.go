// Package memory хранилище резервирований и остатков в памяти.
// Используется в тестах и при STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/txn"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

type allocationKey struct {
	orderID string
	sku     string
}

// Store хранилище в памяти. Один мьютекс на все хранилище дает ту же
// атомарность двух условных операций, что и транзакция базы данных.
type Store struct {
	mu          sync.Mutex
	allocations map[allocationKey]domain.StockAllocation
	stock       map[string]domain.SkuStock
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		allocations: make(map[allocationKey]domain.StockAllocation),
		stock:       make(map[string]domain.SkuStock),
	}
}

// Name возвращает имя компонента
func (s *Store) Name() string {
	return "memory-allocation-store"
}

// Type возвращает тип компонента
func (s *Store) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// Allocate создает резервирование и уменьшает остаток атомарно
func (s *Store) Allocate(ctx context.Context, cmd domain.AllocateOrderStockCommand) core.Result[struct{}] {
	if !cmd.IsValid() {
		return core.Fail[struct{}](domain.InvalidArguments(errInvalidCommand))
	}
	if err := ctx.Err(); err != nil {
		return core.Fail[struct{}](domain.Unrecognized(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := allocationKey{orderID: cmd.OrderID(), sku: cmd.Sku()}
	outcomes := txn.Outcomes{
		{Name: domain.ConditionAllocationAbsent, Status: txn.Satisfied},
		{Name: domain.ConditionStockSufficient, Status: txn.Satisfied},
	}
	if _, exists := s.allocations[key]; exists {
		outcomes[0].Status = txn.ConditionFailed
	}
	current, ok := s.stock[cmd.Sku()]
	if !ok || current.Units < cmd.Units() {
		outcomes[1].Status = txn.ConditionFailed
	}
	if outcomes.Failed(domain.ConditionAllocationAbsent) || outcomes.Failed(domain.ConditionStockSufficient) {
		return core.Fail[struct{}](domain.ClassifyAllocationFailure(&txn.CanceledError{Outcomes: outcomes}))
	}

	s.allocations[key] = domain.NewStockAllocation(cmd)
	current.Units -= cmd.Units()
	current.UpdatedAt = cmd.UpdatedAt()
	s.stock[cmd.Sku()] = current
	return core.Ok(struct{}{})
}

// GetAllocation возвращает резервирование по заказу и SKU
func (s *Store) GetAllocation(ctx context.Context, orderID, sku string) core.Result[core.Option[domain.StockAllocation]] {
	if err := ctx.Err(); err != nil {
		return core.Fail[core.Option[domain.StockAllocation]](domain.Unrecognized(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	allocation, ok := s.allocations[allocationKey{orderID: orderID, sku: sku}]
	if !ok {
		return core.Ok(core.None[domain.StockAllocation]())
	}
	return core.Ok(core.Some(allocation))
}

// Restock увеличивает остаток SKU, создавая счетчик при необходимости
func (s *Store) Restock(ctx context.Context, cmd domain.RestockSkuCommand) core.Result[domain.SkuStock] {
	if cmd.Sku() == "" || cmd.Units() <= 0 {
		return core.Fail[domain.SkuStock](domain.InvalidArguments(errInvalidCommand))
	}
	if err := ctx.Err(); err != nil {
		return core.Fail[domain.SkuStock](domain.Unrecognized(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.stock[cmd.Sku()]
	if current.Units > domain.MaxUnits-cmd.Units() {
		return core.Fail[domain.SkuStock](domain.InvalidArguments(fmt.Errorf("stock of %s would exceed %d units", cmd.Sku(), domain.MaxUnits)))
	}
	current.Sku = cmd.Sku()
	current.Units += cmd.Units()
	current.UpdatedAt = cmd.CreatedAt()
	if current.UpdatedAt.IsZero() {
		current.UpdatedAt = time.Now().UTC()
	}
	s.stock[cmd.Sku()] = current
	return core.Ok(current)
}

// GetStock возвращает остаток SKU
func (s *Store) GetStock(ctx context.Context, sku string) core.Result[core.Option[domain.SkuStock]] {
	if err := ctx.Err(); err != nil {
		return core.Fail[core.Option[domain.SkuStock]](domain.Unrecognized(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stock, ok := s.stock[sku]
	if !ok {
		return core.Ok(core.None[domain.SkuStock]())
	}
	return core.Ok(core.Some(stock))
}

// AllocationCount количество резервирований
func (s *Store) AllocationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.allocations)
}
