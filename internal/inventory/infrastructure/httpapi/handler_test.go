package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/adapters/messagebus"
	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/eventstore"
	"github.com/akriventsev/stockflow/framework/observability"
	"github.com/akriventsev/stockflow/internal/inventory/application"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
	"github.com/akriventsev/stockflow/internal/inventory/infrastructure/eventlog"
	"github.com/akriventsev/stockflow/internal/inventory/infrastructure/memory"
)

type testEnv struct {
	router *gin.Engine
	bus    *messagebus.InMemoryAdapter
	store  *memory.Store
	worker *application.AllocateOrderStockWorker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	appender := eventlog.NewAppender(eventstore.NewInMemoryEventStore(), zap.NewNop(), nil)
	bus, err := messagebus.NewInMemoryAdapter(messagebus.DefaultInMemoryConfig(), zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })

	service := application.NewInventoryService(store, store, appender, bus, "orders.created", zap.NewNop())
	health := observability.NewHealthRegistry()
	health.Register(observability.NewFuncHealthCheck("memory", func(ctx context.Context) error { return nil }))

	router, err := NewRouter(context.Background(), NewHandler(service, zap.NewNop()), RouterOptions{
		Health:         health,
		MetricsHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	worker := application.NewAllocateOrderStockWorker(store, appender, zap.NewNop(), nil, nil)
	return &testEnv{router: router, bus: bus, store: store, worker: worker}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRouter_OrderFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/skus/SKU-1/restock", `{"units": 10}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/orders", `{"orderId":"O1","sku":"SKU-1","units":3,"price":19.99,"buyerId":"B1"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, 1, env.bus.Pending("orders.created"))

	controller, err := application.NewOrderCreatedBatchController(env.worker, application.DefaultBatchControllerConfig(), zap.NewNop(), nil)
	require.NoError(t, err)
	env.bus.DeliverBatch(context.Background(), "orders.created", controller.Handler())

	w = env.do(t, http.MethodGet, "/skus/SKU-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stock domain.SkuStock
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stock))
	assert.Equal(t, 7, stock.Units)

	w = env.do(t, http.MethodGet, "/allocations/O1/SKU-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ALLOCATED"`)

	w = env.do(t, http.MethodGet, "/allocations/O1/SKU-1/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"eventKind":"OrderStockAllocated"`)
}

func TestRouter_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing sku", "/orders", `{"orderId":"O1","units":3,"price":1,"buyerId":"B1"}`},
		{"zero units", "/orders", `{"orderId":"O1","sku":"S","units":0,"price":1,"buyerId":"B1"}`},
		{"negative price", "/orders", `{"orderId":"O1","sku":"S","units":1,"price":-1,"buyerId":"B1"}`},
		{"restock zero", "/skus/SKU-1/restock", `{"units":0}`},
		{"units above int4", "/orders", `{"orderId":"O1","sku":"S","units":3000000000,"price":1,"buyerId":"B1"}`},
		{"price beyond numeric precision", "/orders", `{"orderId":"O1","sku":"S","units":1,"price":1e20,"buyerId":"B1"}`},
		{"subject separator in order id", "/orders", `{"orderId":"X/SKU#Y","sku":"Z","units":1,"price":1,"buyerId":"B1"}`},
		{"subject separator in sku", "/orders", `{"orderId":"X","sku":"Y/SKU#Z","units":1,"price":1,"buyerId":"B1"}`},
		{"restock above int4", "/skus/SKU-1/restock", `{"units":3000000000}`},
		{"restock sku with hash", "/skus/Y%23Z/restock", `{"units":1}`},
		{"not json", "/orders", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, 0, env.bus.Pending("orders.created"))
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/skus/unknown", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/allocations/O9/SKU-1", "").Code)
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusBadRequest, StatusFor(domain.InvalidArguments(errors.New("bad"))))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(domain.Unrecognized(errors.New("down"))))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(&core.Failure{Kind: domain.DepletedStockAllocationError}))
}
