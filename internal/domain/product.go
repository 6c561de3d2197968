package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog.
// OriginalPrice is only set on priced copies produced by the pricing engine.
type Product struct {
	ID            string           `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	Category      string           `json:"category" db:"category"`
	Description   string           `json:"description" db:"description"`
	Price         decimal.Decimal  `json:"price" db:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty" db:"-"`
	ImageURL      string           `json:"image_url,omitempty" db:"image_url"`
	Stock         int              `json:"stock" db:"stock"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// Discounted reports whether a pricing pass lowered the price of p.
func (p Product) Discounted() bool {
	return p.OriginalPrice != nil && p.Price.LessThan(*p.OriginalPrice)
}
