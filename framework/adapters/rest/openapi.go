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

package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator валидатор HTTP запросов по OpenAPI документу
type OpenAPIValidator struct {
	spec   *openapi3.T
	router routers.Router
}

// NewOpenAPIValidator загружает и проверяет OpenAPI документ
func NewOpenAPIValidator(ctx context.Context, document []byte) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	spec, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := spec.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	router, err := legacy.NewRouter(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	return &OpenAPIValidator{spec: spec, router: router}, nil
}

// Middleware отклоняет запросы, не соответствующие документу, с кодом 400.
// Пути, не описанные в документе, пропускаются без проверки.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, pathParams, err := v.router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    &openapi3filter.Options{MultiError: true},
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "validation_failed",
				"details": formatValidationError(err),
			})
			return
		}
		c.Next()
	}
}

// Spec возвращает загруженный документ
func (v *OpenAPIValidator) Spec() *openapi3.T {
	return v.spec
}

// ValidationError ошибка валидации одного поля
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func formatValidationError(err error) []ValidationError {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		result := make([]ValidationError, 0, len(multi))
		for _, e := range multi {
			result = append(result, singleValidationError(e))
		}
		return result
	}
	return []ValidationError{singleValidationError(err)}
}

func singleValidationError(err error) ValidationError {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		return ValidationError{
			Field:   strings.Join(schemaErr.JSONPointer(), "."),
			Message: schemaErr.Reason,
		}
	}
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Parameter != nil {
		return ValidationError{Field: reqErr.Parameter.Name, Message: reqErr.Error()}
	}
	return ValidationError{Message: err.Error()}
}
