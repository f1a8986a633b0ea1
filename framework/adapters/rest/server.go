// Package rest HTTP сервер на gin с жизненным циклом core.Lifecycle.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/metrics"
)

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Validate проверяет корректность конфигурации
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DefaultServerConfig возвращает конфигурацию по умолчанию
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server HTTP сервер
type Server struct {
	config  ServerConfig
	router  *gin.Engine
	logger  *zap.Logger
	server  *http.Server
	mu      sync.Mutex
	running bool
}

// NewServer создает сервер поверх готового роутера
func NewServer(config ServerConfig, router *gin.Engine, logger *zap.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{config: config, router: router, logger: logger.Named("http")}, nil
}

// Start запускает прием соединений (реализация core.Lifecycle)
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.running = true

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("http server started", zap.Int("port", s.config.Port))
	return nil
}

// Stop останавливает сервер, дожидаясь завершения запросов (реализация core.Lifecycle)
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// IsRunning проверяет, запущен ли сервер (реализация core.Lifecycle)
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Name возвращает имя компонента (реализация core.Component)
func (s *Server) Name() string {
	return "rest-server"
}

// Type возвращает тип компонента (реализация core.Component)
func (s *Server) Type() core.ComponentType {
	return core.ComponentTypeTransport
}

// MetricsMiddleware записывает результат каждого запроса
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordTransport(c.Request.Context(), "http", c.Request.Method+" "+route, c.Writer.Status() < http.StatusInternalServerError)
	}
}
