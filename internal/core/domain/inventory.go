package domain

import (
	"fmt"
	"time"
)

const DefaultLocation = "Main Warehouse"

type Inventory struct {
	ID        int64
	ProductID int64
	Quantity  int
	Location  string
	Version   int // bumped on every ledger write
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChangeReason string

const (
	ReasonSale         ChangeReason = "sale"
	ReasonRestock      ChangeReason = "restock"
	ReasonDamage       ChangeReason = "damage"
	ReasonAdjustment   ChangeReason = "adjustment"
	ReasonInitialStock ChangeReason = "initial_stock"
)

var changeReasons = []ChangeReason{
	ReasonSale, ReasonRestock, ReasonDamage, ReasonAdjustment, ReasonInitialStock,
}

func ParseChangeReason(s string) (ChangeReason, error) {
	for _, r := range changeReasons {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("change reason %q must be one of %v: %w", s, changeReasons, ErrInvalidArgument)
}

// InventoryHistory is an append-only record of one quantity change.
// NewQuantity-OldQuantity always equals Delta.
type InventoryHistory struct {
	ID          int64
	ProductID   int64
	OldQuantity int
	NewQuantity int
	Delta       int
	Reason      ChangeReason
	Actor       string
	Note        string
	CreatedAt   time.Time
}
