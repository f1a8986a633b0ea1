package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/txn"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func validData() OrderCreatedData {
	price := decimal.RequireFromString("19.99")
	return OrderCreatedData{
		OrderID: "O1",
		Sku:     "SKU-1",
		Units:   3,
		Price:   &price,
		BuyerID: "B1",
	}
}

func TestIsTransient(t *testing.T) {
	cases := map[string]bool{
		string(InvalidArgumentsError):         false,
		string(DuplicateStockAllocationError): false,
		string(DepletedStockAllocationError):  false,
		string(DuplicateEventRaisedError):     false,
		string(UnrecognizedError):             true,
	}
	for kind, want := range cases {
		f := newFailure(core.FailureKind(kind), nil)
		if f.Transient != want {
			t.Errorf("Expected transient=%v for %s, got %v", want, kind, f.Transient)
		}
	}
}

func TestNewOrderCreatedNotification(t *testing.T) {
	result := NewOrderCreatedNotification(validData(), testTime, testTime)
	require.True(t, result.IsOk(), "unexpected failure: %v", result.Err())

	n := result.Value()
	assert.Equal(t, "O1", n.OrderID())
	assert.Equal(t, "SKU-1", n.Sku())
	assert.Equal(t, 3, n.Units())
	assert.True(t, n.Price().Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, "B1", n.BuyerID())
	assert.Equal(t, testTime, n.CreatedAt())
}

func TestNewOrderCreatedNotification_Invalid(t *testing.T) {
	negative := decimal.NewFromInt(-1)
	huge := decimal.RequireFromString("1e20")
	atLimit := decimal.RequireFromString("100000000000000")
	fineGrained := decimal.RequireFromString("1.23456")

	tests := []struct {
		name   string
		modify func(d *OrderCreatedData)
		at     time.Time
	}{
		{"missing sku", func(d *OrderCreatedData) { d.Sku = "" }, testTime},
		{"missing order id", func(d *OrderCreatedData) { d.OrderID = "" }, testTime},
		{"missing buyer", func(d *OrderCreatedData) { d.BuyerID = "" }, testTime},
		{"zero units", func(d *OrderCreatedData) { d.Units = 0 }, testTime},
		{"negative units", func(d *OrderCreatedData) { d.Units = -2 }, testTime},
		{"missing price", func(d *OrderCreatedData) { d.Price = nil }, testTime},
		{"negative price", func(d *OrderCreatedData) { d.Price = &negative }, testTime},
		{"price beyond numeric precision", func(d *OrderCreatedData) { d.Price = &huge }, testTime},
		{"price at integer digit limit", func(d *OrderCreatedData) { d.Price = &atLimit }, testTime},
		{"price with five fractional digits", func(d *OrderCreatedData) { d.Price = &fineGrained }, testTime},
		{"units above int4", func(d *OrderCreatedData) { d.Units = 3000000000 }, testTime},
		{"hash in order id", func(d *OrderCreatedData) { d.OrderID = "X#1" }, testTime},
		{"slash in order id", func(d *OrderCreatedData) { d.OrderID = "X/SKU#Y" }, testTime},
		{"slash in sku", func(d *OrderCreatedData) { d.Sku = "Y/SKU#Z" }, testTime},
		{"zero timestamps", func(d *OrderCreatedData) {}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := validData()
			tt.modify(&data)
			result := NewOrderCreatedNotification(data, tt.at, tt.at)
			require.True(t, result.IsErr())
			assert.True(t, result.IsFailureOfKind(InvalidArgumentsError))
			assert.False(t, result.IsFailureTransient())
		})
	}
}

func TestNewAllocateOrderStockCommand(t *testing.T) {
	n := NewOrderCreatedNotification(validData(), testTime, testTime).Value()

	result := NewAllocateOrderStockCommand(n)
	require.True(t, result.IsOk())
	cmd := result.Value()
	assert.True(t, cmd.IsValid())
	assert.Equal(t, "O1", cmd.OrderID())
	assert.Equal(t, 3, cmd.Units())

	// Нулевое уведомление не прошло конструктор
	zero := NewAllocateOrderStockCommand(OrderCreatedNotification{})
	assert.True(t, zero.IsFailureOfKind(InvalidArgumentsError))
}

func TestNewRestockSkuCommand(t *testing.T) {
	result := NewRestockSkuCommand("SKU-1", 5, testTime)
	require.True(t, result.IsOk())
	assert.Equal(t, "SKU-1", result.Value().Sku())
	assert.Equal(t, 5, result.Value().Units())

	assert.True(t, NewRestockSkuCommand("", 5, testTime).IsFailureOfKind(InvalidArgumentsError))
	assert.True(t, NewRestockSkuCommand("SKU-1", 0, testTime).IsFailureOfKind(InvalidArgumentsError))
	assert.False(t, NewRestockSkuCommand("SKU-1", 1, time.Time{}).Value().CreatedAt().IsZero())
}

func TestNewStockAllocation(t *testing.T) {
	cmd := NewAllocateOrderStockCommand(NewOrderCreatedNotification(validData(), testTime, testTime).Value()).Value()
	a := NewStockAllocation(cmd)

	assert.Equal(t, AllocationStatusAllocated, a.Status)
	assert.True(t, a.Status.IsValid())
	assert.False(t, AllocationStatus("UNKNOWN").IsValid())
	assert.Equal(t, cmd.Units(), a.Units)
}

func TestAllocationEvents(t *testing.T) {
	cmd := NewAllocateOrderStockCommand(NewOrderCreatedNotification(validData(), testTime, testTime).Value()).Value()

	allocated := NewOrderStockAllocatedEvent(cmd)
	require.True(t, allocated.IsOk())
	event := allocated.Value()
	assert.Equal(t, "OrderStockAllocated", event.EventType())
	assert.Equal(t, OrderStockAllocatedKind, event.Kind())
	assert.Equal(t, "ORDER#O1/SKU#SKU-1", event.AggregateID())
	assert.Equal(t, testTime, event.OccurredAt())
	assert.NotEmpty(t, event.EventID())

	payload, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":"O1","sku":"SKU-1","units":3,"price":"19.99","buyerId":"B1"}`, string(payload))

	depleted := NewOrderStockDepletedEvent(cmd)
	require.True(t, depleted.IsOk())
	assert.Equal(t, OrderStockDepletedKind, depleted.Value().Kind())
	assert.Equal(t, event.AggregateID(), depleted.Value().AggregateID())

	invalid := NewOrderStockAllocatedEvent(AllocateOrderStockCommand{})
	assert.True(t, invalid.IsFailureOfKind(InvalidArgumentsError))
}

func TestClassifyAllocationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "duplicate wins over depleted",
			err: &txn.CanceledError{Outcomes: txn.Outcomes{
				{Name: ConditionAllocationAbsent, Status: txn.ConditionFailed},
				{Name: ConditionStockSufficient, Status: txn.ConditionFailed},
			}},
			want: string(DuplicateStockAllocationError),
		},
		{
			name: "duplicate only",
			err: &txn.CanceledError{Outcomes: txn.Outcomes{
				{Name: ConditionAllocationAbsent, Status: txn.ConditionFailed},
				{Name: ConditionStockSufficient, Status: txn.Satisfied},
			}},
			want: string(DuplicateStockAllocationError),
		},
		{
			name: "depleted",
			err: &txn.CanceledError{Outcomes: txn.Outcomes{
				{Name: ConditionAllocationAbsent, Status: txn.Satisfied},
				{Name: ConditionStockSufficient, Status: txn.ConditionFailed},
			}},
			want: string(DepletedStockAllocationError),
		},
		{
			name: "canceled without failed condition",
			err: &txn.CanceledError{Outcomes: txn.Outcomes{
				{Name: ConditionAllocationAbsent, Status: txn.Satisfied},
				{Name: ConditionStockSufficient, Status: txn.NotAttempted},
			}},
			want: string(UnrecognizedError),
		},
		{
			name: "infrastructure fault",
			err:  errors.New("connection reset"),
			want: string(UnrecognizedError),
		},
		{
			name: "nil error",
			err:  nil,
			want: string(UnrecognizedError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ClassifyAllocationFailure(tt.err)
			require.NotNil(t, f)
			if string(f.Kind) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, f.Kind)
			}
			assert.Equal(t, tt.want == string(UnrecognizedError), f.Transient)
		})
	}
}

func TestParseOrderCreatedEnvelope(t *testing.T) {
	body := []byte(`{
		"eventKind": "ORDER_CREATED",
		"eventData": {"orderId": "O1", "sku": "SKU-1", "units": 3, "price": 19.99, "buyerId": "B1"},
		"createdAt": "2024-03-01T12:00:00Z",
		"updatedAt": "2024-03-01T12:00:00Z"
	}`)

	result := ParseOrderCreatedEnvelope(body)
	require.True(t, result.IsOk(), "unexpected failure: %v", result.Err())
	assert.Equal(t, "O1", result.Value().OrderID())
	assert.True(t, result.Value().Price().Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, testTime, result.Value().CreatedAt())

	encoded, err := EncodeOrderCreatedEnvelope(result.Value())
	require.NoError(t, err)
	again := ParseOrderCreatedEnvelope(encoded)
	require.True(t, again.IsOk())
	assert.Equal(t, result.Value().OrderID(), again.Value().OrderID())
	assert.True(t, result.Value().Price().Equal(again.Value().Price()))
	assert.Equal(t, result.Value().CreatedAt(), again.Value().CreatedAt())
}

func TestParseOrderCreatedEnvelope_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":     `{"eventKind":`,
		"wrong kind":   `{"eventKind":"ORDER_UPDATED","eventData":{"orderId":"O1","sku":"S","units":1,"price":1,"buyerId":"B"},"createdAt":"2024-03-01T12:00:00Z","updatedAt":"2024-03-01T12:00:00Z"}`,
		"missing sku":  `{"eventKind":"ORDER_CREATED","eventData":{"orderId":"O1","units":1,"price":1,"buyerId":"B"},"createdAt":"2024-03-01T12:00:00Z","updatedAt":"2024-03-01T12:00:00Z"}`,
		"missing time": `{"eventKind":"ORDER_CREATED","eventData":{"orderId":"O1","sku":"S","units":1,"price":1,"buyerId":"B"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			result := ParseOrderCreatedEnvelope([]byte(body))
			assert.True(t, result.IsFailureOfKind(InvalidArgumentsError))
			assert.False(t, result.IsFailureTransient())
		})
	}
}

func TestNewOrderCreatedNotification_Bounds(t *testing.T) {
	data := validData()
	data.Units = MaxUnits
	maxPrice := decimal.RequireFromString("99999999999999.9999")
	data.Price = &maxPrice

	result := NewOrderCreatedNotification(data, testTime, testTime)
	require.True(t, result.IsOk(), "unexpected failure: %v", result.Err())
	assert.Equal(t, MaxUnits, result.Value().Units())
}

func TestAllocationSubject_DistinctForValidIDs(t *testing.T) {
	// разделители субъекта запрещены в идентификаторах
	first := NewRestockSkuCommand("Y/SKU#Z", 1, testTime)
	assert.True(t, first.IsFailureOfKind(InvalidArgumentsError))

	data := validData()
	data.OrderID = "X/SKU#Y"
	data.Sku = "Z"
	assert.True(t, NewOrderCreatedNotification(data, testTime, testTime).IsFailureOfKind(InvalidArgumentsError))

	data = validData()
	data.OrderID = "X"
	data.Sku = "Y/SKU#Z"
	assert.True(t, NewOrderCreatedNotification(data, testTime, testTime).IsFailureOfKind(InvalidArgumentsError))
}

func TestNewRestockSkuCommand_UnitsAboveInt4(t *testing.T) {
	result := NewRestockSkuCommand("SKU-1", MaxUnits+1, testTime)
	assert.True(t, result.IsFailureOfKind(InvalidArgumentsError))
}
