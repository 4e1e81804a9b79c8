package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places every store keeps for money.
const PriceScale = 2

type Product struct {
	ID          int64
	Name        string
	SKU         string
	Price       decimal.Decimal
	Description string
	CreatedAt   time.Time
}

// ValidatePrice rejects negative amounts and amounts with more precision
// than the stores keep.
func ValidatePrice(field string, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%s %s cannot be negative: %w", field, price, ErrInvalidArgument)
	}
	if !price.Equal(price.Round(PriceScale)) {
		return fmt.Errorf("%s %s has more than %d decimal places: %w", field, price, PriceScale, ErrInvalidArgument)
	}
	return nil
}
