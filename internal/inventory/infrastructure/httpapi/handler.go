// Package httpapi HTTP интерфейс сервиса остатков.
package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/eventstore"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

//go:embed openapi.yaml
var OpenAPIDocument []byte

// Service операции, доступные через HTTP
type Service interface {
	PlaceOrder(ctx context.Context, data domain.OrderCreatedData) core.Result[domain.OrderCreatedNotification]
	RestockSku(ctx context.Context, sku string, units int) core.Result[domain.SkuStock]
	GetAllocation(ctx context.Context, orderID, sku string) core.Result[core.Option[domain.StockAllocation]]
	GetStock(ctx context.Context, sku string) core.Result[core.Option[domain.SkuStock]]
	ListEvents(ctx context.Context, subjectID string) core.Result[[]eventstore.StoredEvent]
}

// Handler обработчики HTTP запросов
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создает обработчики
func NewHandler(service Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger.Named("http-handler")}
}

type placeOrderRequest struct {
	OrderID string           `json:"orderId"`
	Sku     string           `json:"sku"`
	Units   int              `json:"units"`
	Price   *decimal.Decimal `json:"price"`
	BuyerID string           `json:"buyerId"`
}

type placeOrderResponse struct {
	OrderID   string    `json:"orderId"`
	Sku       string    `json:"sku"`
	Units     int       `json:"units"`
	CreatedAt time.Time `json:"createdAt"`
}

type restockRequest struct {
	Units int `json:"units"`
}

type eventResponse struct {
	EventID   string          `json:"eventId"`
	SubjectID string          `json:"subjectId"`
	EventKind string          `json:"eventKind"`
	EventData json.RawMessage `json:"eventData"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// PlaceOrder POST /orders
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.service.PlaceOrder(c.Request.Context(), domain.OrderCreatedData{
		OrderID: req.OrderID,
		Sku:     req.Sku,
		Units:   req.Units,
		Price:   req.Price,
		BuyerID: req.BuyerID,
	})
	if result.IsErr() {
		h.fail(c, result.Failure())
		return
	}

	n := result.Value()
	c.JSON(http.StatusAccepted, placeOrderResponse{
		OrderID:   n.OrderID(),
		Sku:       n.Sku(),
		Units:     n.Units(),
		CreatedAt: n.CreatedAt(),
	})
}

// RestockSku POST /skus/:sku/restock
func (h *Handler) RestockSku(c *gin.Context) {
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.service.RestockSku(c.Request.Context(), c.Param("sku"), req.Units)
	if result.IsErr() {
		h.fail(c, result.Failure())
		return
	}
	c.JSON(http.StatusAccepted, result.Value())
}

// GetStock GET /skus/:sku
func (h *Handler) GetStock(c *gin.Context) {
	result := h.service.GetStock(c.Request.Context(), c.Param("sku"))
	if result.IsErr() {
		h.fail(c, result.Failure())
		return
	}
	if result.Value().IsNone() {
		c.JSON(http.StatusNotFound, gin.H{"error": "sku not found"})
		return
	}
	c.JSON(http.StatusOK, result.Value().Value())
}

// GetAllocation GET /allocations/:orderId/:sku
func (h *Handler) GetAllocation(c *gin.Context) {
	result := h.service.GetAllocation(c.Request.Context(), c.Param("orderId"), c.Param("sku"))
	if result.IsErr() {
		h.fail(c, result.Failure())
		return
	}
	if result.Value().IsNone() {
		c.JSON(http.StatusNotFound, gin.H{"error": "allocation not found"})
		return
	}
	c.JSON(http.StatusOK, result.Value().Value())
}

// ListAllocationEvents GET /allocations/:orderId/:sku/events
func (h *Handler) ListAllocationEvents(c *gin.Context) {
	subject := domain.AllocationSubject(c.Param("orderId"), c.Param("sku"))
	result := h.service.ListEvents(c.Request.Context(), subject)
	if result.IsErr() {
		h.fail(c, result.Failure())
		return
	}

	events := make([]eventResponse, 0, len(result.Value()))
	for _, e := range result.Value() {
		events = append(events, eventResponse{
			EventID:   e.ID,
			SubjectID: e.SubjectID,
			EventKind: e.EventKind,
			EventData: e.EventData,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) fail(c *gin.Context, failure *core.Failure) {
	status := StatusFor(failure)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("kind", string(failure.Kind)),
			zap.Error(failure))
	}
	c.JSON(status, gin.H{"error": failure.Error(), "kind": failure.Kind})
}

// StatusFor переводит вид ошибки в HTTP статус
func StatusFor(failure *core.Failure) int {
	if failure == nil {
		return http.StatusOK
	}
	switch failure.Kind {
	case domain.InvalidArgumentsError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
