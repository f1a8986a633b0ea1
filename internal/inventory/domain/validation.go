package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxUnits верхняя граница количества единиц и остатка SKU (INTEGER в схеме)
const MaxUnits = math.MaxInt32

// Цена хранится как NUMERIC(18,4): не более 14 знаков целой части и 4 дробной
const (
	priceIntegerDigits  = 14
	priceFractionDigits = 4
)

var (
	validate   = validator.New()
	priceLimit = decimal.New(1, priceIntegerDigits)
)

// validateStruct проверяет теги validate и возвращает ошибку с перечнем полей
func validateStruct(name string, v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid %s: %v", name, fields)
		}
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("price must not be negative, got %s", price.String())
	}
	if price.GreaterThanOrEqual(priceLimit) {
		return fmt.Errorf("price must be less than %s, got %s", priceLimit.String(), price.String())
	}
	if !price.Equal(price.Truncate(priceFractionDigits)) {
		return fmt.Errorf("price must have at most %d fractional digits, got %s", priceFractionDigits, price.String())
	}
	return nil
}

func validateTimestamps(createdAt, updatedAt time.Time) error {
	if createdAt.IsZero() {
		return errors.New("createdAt is required")
	}
	if updatedAt.IsZero() {
		return errors.New("updatedAt is required")
	}
	return nil
}
