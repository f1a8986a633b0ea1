// Copyright 2024 Potter Framework Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akriventsev/stockflow/framework/core"
)

// HealthCheck интерфейс для health checks
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthCheckResult результат health check
type HealthCheckResult struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
}

// CheckResult результат отдельной проверки
type CheckResult struct {
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// FuncHealthCheck проверка на основе функции (БД, брокер и т.п.)
type FuncHealthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// NewFuncHealthCheck создает проверку с указанным именем
func NewFuncHealthCheck(name string, check func(ctx context.Context) error) *FuncHealthCheck {
	return &FuncHealthCheck{name: name, check: check}
}

// Name возвращает имя проверки
func (h *FuncHealthCheck) Name() string {
	return h.name
}

// Check выполняет проверку
func (h *FuncHealthCheck) Check(ctx context.Context) error {
	if h.check == nil {
		return nil
	}
	return h.check(ctx)
}

// HealthRegistry набор проверок здоровья сервиса
type HealthRegistry struct {
	mu     sync.RWMutex
	checks []HealthCheck
}

// NewHealthRegistry создает пустой реестр проверок
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{}
}

// Register регистрирует health check
func (r *HealthRegistry) Register(check HealthCheck) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, check)
}

// RegisterComponent регистрирует проверку компонента, если он реализует core.HealthCheckable.
// Возвращает false для компонентов без проверки здоровья.
func (r *HealthRegistry) RegisterComponent(name string, component interface{}) bool {
	hc, ok := component.(core.HealthCheckable)
	if !ok {
		return false
	}
	r.Register(NewFuncHealthCheck(name, hc.HealthCheck))
	return true
}

// Run выполняет все проверки
func (r *HealthRegistry) Run(ctx context.Context) HealthCheckResult {
	r.mu.RLock()
	checks := r.checks
	r.mu.RUnlock()

	result := HealthCheckResult{
		Status:    "healthy",
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now(),
	}

	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)

		cr := CheckResult{Status: "healthy", Duration: time.Since(start)}
		if err != nil {
			cr.Status = "unhealthy"
			cr.Message = err.Error()
			result.Status = "unhealthy"
		}
		result.Checks[check.Name()] = cr
	}

	return result
}

// Handler возвращает Gin handler для health check
func (r *HealthRegistry) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		result := r.Run(ctx)
		if result.Status != "healthy" {
			c.JSON(http.StatusServiceUnavailable, result)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
