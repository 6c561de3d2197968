package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryAll is the rule category sentinel that matches every product.
const CategoryAll = "all"

// DiscountType is the price transformation a rule performs.
type DiscountType string

const (
	// DiscountPercentage takes DiscountValue percent off the running price.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts DiscountValue from the running price.
	DiscountFixed DiscountType = "fixed"
	// DiscountSet replaces the running price with DiscountValue.
	DiscountSet DiscountType = "set"
)

// ParseDiscountType converts s into a DiscountType, rejecting unknown kinds.
func ParseDiscountType(s string) (DiscountType, error) {
	switch t := DiscountType(s); t {
	case DiscountPercentage, DiscountFixed, DiscountSet:
		return t, nil
	default:
		return "", fmt.Errorf("unknown discount type %q", s)
	}
}

// Valid reports whether t is one of the known discount types.
func (t DiscountType) Valid() bool {
	_, err := ParseDiscountType(string(t))
	return err == nil
}

func (t DiscountType) String() string {
	return string(t)
}

// UnmarshalJSON rejects unknown discount types at decode time.
func (t *DiscountType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("discount type must be a string: %w", err)
	}
	parsed, err := ParseDiscountType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer.
func (t DiscountType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown discount type %q", string(t))
	}
	return string(t), nil
}

// Scan implements sql.Scanner.
func (t *DiscountType) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into DiscountType", src)
	}
	parsed, err := ParseDiscountType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// PriceRule is a time-bounded, priority-ordered discount policy.
type PriceRule struct {
	ID            string          `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Type          DiscountType    `json:"type" db:"type"`
	DiscountValue decimal.Decimal `json:"discount_value" db:"discount_value"`
	ProductIDs    []string        `json:"product_ids" db:"product_ids"`
	Category      string          `json:"category" db:"category"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty" db:"end_date"`
	Priority      int             `json:"priority" db:"priority"`
	Exclusive     bool            `json:"exclusive" db:"exclusive"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
