package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akriventsev/stockflow/framework/adapters/rest"
	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/framework/observability"
)

// RouterOptions зависимости роутера
type RouterOptions struct {
	ServiceName    string
	Health         *observability.HealthRegistry
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
}

// NewRouter собирает gin роутер с проверкой запросов по OpenAPI документу
func NewRouter(ctx context.Context, handler *Handler, opts RouterOptions) (*gin.Engine, error) {
	validator, err := rest.NewOpenAPIValidator(ctx, OpenAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to create openapi validator: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.CorrelationIDMiddleware())
	if opts.ServiceName != "" {
		router.Use(observability.HTTPTracingMiddleware(opts.ServiceName))
	}
	router.Use(rest.MetricsMiddleware(opts.Metrics))

	if opts.Health != nil {
		router.GET("/health", opts.Health.Handler())
	}
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	api := router.Group("/", validator.Middleware())
	api.POST("/orders", handler.PlaceOrder)
	api.POST("/skus/:sku/restock", handler.RestockSku)
	api.GET("/skus/:sku", handler.GetStock)
	api.GET("/allocations/:orderId/:sku", handler.GetAllocation)
	api.GET("/allocations/:orderId/:sku/events", handler.ListAllocationEvents)

	return router, nil
}
