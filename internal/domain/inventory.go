package domain

import (
	"errors"
	"fmt"
	"time"
)

// StockChangeType classifies an inventory ledger entry.
type StockChangeType string

const (
	StockInbound    StockChangeType = "inbound"
	StockOutbound   StockChangeType = "outbound"
	StockAdjustment StockChangeType = "adjustment"
	StockInitial    StockChangeType = "initial"
)

// ParseStockChangeType converts s into a StockChangeType.
func ParseStockChangeType(s string) (StockChangeType, error) {
	switch c := StockChangeType(s); c {
	case StockInbound, StockOutbound, StockAdjustment, StockInitial:
		return c, nil
	default:
		return "", fmt.Errorf("unknown stock change type %q", s)
	}
}

// InventoryChange is one entry in a product's stock ledger.
type InventoryChange struct {
	ID             string          `json:"id" db:"id"`
	ProductID      string          `json:"product_id" db:"product_id"`
	ChangedBy      string          `json:"changed_by" db:"changed_by"`
	ChangeType     StockChangeType `json:"change_type" db:"change_type"`
	QuantityChange int             `json:"quantity_change" db:"quantity_change"`
	PreviousStock  int             `json:"previous_stock" db:"previous_stock"`
	NewStock       int             `json:"new_stock" db:"new_stock"`
	Reason         string          `json:"reason,omitempty" db:"reason"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// ErrNegativeStock is returned when a change would leave stock below zero.
var ErrNegativeStock = errors.New("stock cannot be negative")

// NextStock returns the stock level after applying a change of this type.
// Inbound adds quantity, outbound removes it, adjustment and initial set the
// level to quantity.
func (c StockChangeType) NextStock(current, quantity int) (int, error) {
	if quantity < 0 {
		return 0, fmt.Errorf("quantity must not be negative: %w", ErrNegativeStock)
	}

	var next int
	switch c {
	case StockInbound:
		next = current + quantity
	case StockOutbound:
		next = current - quantity
	case StockAdjustment, StockInitial:
		next = quantity
	default:
		return 0, fmt.Errorf("unknown stock change type %q", c)
	}

	if next < 0 {
		return 0, ErrNegativeStock
	}
	return next, nil
}
