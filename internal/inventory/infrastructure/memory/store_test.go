package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func command(t *testing.T, orderID, sku string, units int) domain.AllocateOrderStockCommand {
	t.Helper()
	price := decimal.RequireFromString("10.50")
	n := domain.NewOrderCreatedNotification(domain.OrderCreatedData{
		OrderID: orderID, Sku: sku, Units: units, Price: &price, BuyerID: "B1",
	}, testTime, testTime)
	require.True(t, n.IsOk(), "notification: %v", n.Err())
	cmd := domain.NewAllocateOrderStockCommand(n.Value())
	require.True(t, cmd.IsOk())
	return cmd.Value()
}

func restock(t *testing.T, s *Store, sku string, units int) {
	t.Helper()
	cmd := domain.NewRestockSkuCommand(sku, units, testTime)
	require.True(t, cmd.IsOk())
	require.True(t, s.Restock(context.Background(), cmd.Value()).IsOk())
}

func stockOf(t *testing.T, s *Store, sku string) int {
	t.Helper()
	result := s.GetStock(context.Background(), sku)
	require.True(t, result.IsOk())
	return result.Value().ValueOr(domain.SkuStock{}).Units
}

func TestStore_Allocate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	restock(t, s, "SKU-1", 10)

	result := s.Allocate(ctx, command(t, "O1", "SKU-1", 3))
	require.True(t, result.IsOk())
	assert.Equal(t, 7, stockOf(t, s, "SKU-1"))

	allocation := s.GetAllocation(ctx, "O1", "SKU-1")
	require.True(t, allocation.IsOk())
	require.True(t, allocation.Value().IsSome())
	assert.Equal(t, domain.AllocationStatusAllocated, allocation.Value().Value().Status)
	assert.Equal(t, 3, allocation.Value().Value().Units)
}

func TestStore_Allocate_Duplicate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	restock(t, s, "SKU-1", 10)

	require.True(t, s.Allocate(ctx, command(t, "O1", "SKU-1", 3)).IsOk())
	result := s.Allocate(ctx, command(t, "O1", "SKU-1", 3))

	assert.True(t, result.IsFailureOfKind(domain.DuplicateStockAllocationError))
	assert.False(t, result.IsFailureTransient())
	assert.Equal(t, 7, stockOf(t, s, "SKU-1"))
	assert.Equal(t, 1, s.AllocationCount())
}

func TestStore_Allocate_DuplicateTakesPrecedenceOverDepleted(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	restock(t, s, "SKU-1", 3)

	require.True(t, s.Allocate(ctx, command(t, "O1", "SKU-1", 3)).IsOk())
	assert.Equal(t, 0, stockOf(t, s, "SKU-1"))

	result := s.Allocate(ctx, command(t, "O1", "SKU-1", 3))
	assert.True(t, result.IsFailureOfKind(domain.DuplicateStockAllocationError))
}

func TestStore_Allocate_Depleted(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	restock(t, s, "SKU-1", 2)

	result := s.Allocate(ctx, command(t, "O2", "SKU-1", 3))
	assert.True(t, result.IsFailureOfKind(domain.DepletedStockAllocationError))
	assert.Equal(t, 2, stockOf(t, s, "SKU-1"))
	assert.Equal(t, 0, s.AllocationCount())

	// Отсутствующий счетчик тоже означает нехватку
	missing := s.Allocate(ctx, command(t, "O3", "SKU-404", 1))
	assert.True(t, missing.IsFailureOfKind(domain.DepletedStockAllocationError))
}

func TestStore_Allocate_InvalidCommand(t *testing.T) {
	s := NewStore()
	result := s.Allocate(context.Background(), domain.AllocateOrderStockCommand{})
	assert.True(t, result.IsFailureOfKind(domain.InvalidArgumentsError))
}

func TestStore_Allocate_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := s.Allocate(ctx, command(t, "O1", "SKU-1", 1))
	assert.True(t, result.IsFailureOfKind(domain.UnrecognizedError))
	assert.True(t, result.IsFailureTransient())
}

func TestStore_Allocate_StockNeverNegative(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	restock(t, s, "SKU-1", 10)

	cmds := make([]domain.AllocateOrderStockCommand, 50)
	for i := range cmds {
		cmds[i] = command(t, fmt.Sprintf("O%d", i), "SKU-1", 1)
	}

	var wg sync.WaitGroup
	for _, cmd := range cmds {
		wg.Add(1)
		go func(cmd domain.AllocateOrderStockCommand) {
			defer wg.Done()
			s.Allocate(ctx, cmd)
		}(cmd)
	}
	wg.Wait()

	assert.Equal(t, 0, stockOf(t, s, "SKU-1"))
	assert.Equal(t, 10, s.AllocationCount())
}

func TestStore_GetAllocation_Absent(t *testing.T) {
	s := NewStore()
	result := s.GetAllocation(context.Background(), "O1", "SKU-1")
	require.True(t, result.IsOk())
	assert.True(t, result.Value().IsNone())
}

func TestStore_Restock_Additive(t *testing.T) {
	s := NewStore()
	restock(t, s, "SKU-1", 4)
	restock(t, s, "SKU-1", 6)
	assert.Equal(t, 10, stockOf(t, s, "SKU-1"))

	invalid := s.Restock(context.Background(), domain.RestockSkuCommand{})
	assert.True(t, invalid.IsFailureOfKind(domain.InvalidArgumentsError))
}

func TestStore_Restock_BeyondMaxUnits(t *testing.T) {
	s := NewStore()
	restock(t, s, "SKU-1", domain.MaxUnits)

	cmd := domain.NewRestockSkuCommand("SKU-1", 1, testTime)
	require.True(t, cmd.IsOk())
	result := s.Restock(context.Background(), cmd.Value())
	assert.True(t, result.IsFailureOfKind(domain.InvalidArgumentsError))
	assert.Equal(t, domain.MaxUnits, stockOf(t, s, "SKU-1"))
}
