// Package pricing evaluates time-bounded discount rules against catalog
// products. Everything in this package is pure: inputs are never mutated
// and no I/O is performed, so calls may run concurrently without locking.
package pricing

import (
	"cmp"
	"slices"
	"time"

	"parts-depot/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// IsActive reports whether rule is in effect at now. Both window bounds are
// inclusive and a missing end date leaves the window open.
func IsActive(rule domain.PriceRule, now time.Time) bool {
	if now.Before(rule.StartDate) {
		return false
	}
	return rule.EndDate == nil || !now.After(*rule.EndDate)
}

// SelectActiveRules returns the rules in effect at now, keeping their order.
// An empty result means no pricing transformation applies.
func SelectActiveRules(rules []domain.PriceRule, now time.Time) []domain.PriceRule {
	active := make([]domain.PriceRule, 0, len(rules))
	for _, rule := range rules {
		if IsActive(rule, now) {
			active = append(active, rule)
		}
	}
	return active
}

// RuleApplies reports whether rule targets product, either by explicit id or
// by category. An empty rule category never matches by category.
func RuleApplies(rule domain.PriceRule, product domain.Product) bool {
	if slices.Contains(rule.ProductIDs, product.ID) {
		return true
	}
	if rule.Category == "" {
		return false
	}
	return rule.Category == domain.CategoryAll || rule.Category == product.Category
}

// SortByPriority returns a copy of rules ordered by ascending priority.
// Rules sharing a priority keep their relative order.
func SortByPriority(rules []domain.PriceRule) []domain.PriceRule {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b domain.PriceRule) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return sorted
}

// ApplyPriceRules prices products against the rules active right now.
// Batches that must agree on one instant should call ApplyPriceRulesAt.
func ApplyPriceRules(products []domain.Product, rules []domain.PriceRule) []domain.Product {
	return ApplyPriceRulesAt(products, rules, time.Now())
}

// ApplyPriceRulesAt prices every product against the rules active at now.
//
// When no rule is active the input slice is returned as is, without
// OriginalPrice. Otherwise each product gets a fresh copy whose Price is the
// result of running the matching rules in priority order and whose
// OriginalPrice holds the catalog price. Discounts compound, so applying the
// result a second time is not a no-op.
func ApplyPriceRulesAt(products []domain.Product, rules []domain.PriceRule, now time.Time) []domain.Product {
	active := SelectActiveRules(rules, now)
	if len(active) == 0 {
		return products
	}
	sorted := SortByPriority(active)

	priced := make([]domain.Product, len(products))
	for i, product := range products {
		original := product.Price
		product.Price = evaluate(product, sorted, nil)
		product.OriginalPrice = &original
		priced[i] = product
	}
	return priced
}

// Step is one rule application recorded by Explain.
type Step struct {
	RuleID      string              `json:"rule_id"`
	RuleName    string              `json:"rule_name"`
	Type        domain.DiscountType `json:"type"`
	Value       decimal.Decimal     `json:"discount_value"`
	Priority    int                 `json:"priority"`
	PriceBefore decimal.Decimal     `json:"price_before"`
	PriceAfter  decimal.Decimal     `json:"price_after"`
	Exclusive   bool                `json:"exclusive"`
}

// Breakdown explains how a product's effective price was derived.
type Breakdown struct {
	ProductID   string          `json:"product_id"`
	BasePrice   decimal.Decimal `json:"base_price"`
	FinalPrice  decimal.Decimal `json:"final_price"`
	ActiveRules int             `json:"active_rules"`
	Steps       []Step          `json:"steps"`
	Clamped     bool            `json:"clamped"`
}

// Explain runs the same evaluation as ApplyPriceRulesAt for a single product
// and records every rule that changed its price.
func Explain(product domain.Product, rules []domain.PriceRule, now time.Time) Breakdown {
	sorted := SortByPriority(SelectActiveRules(rules, now))
	steps := []Step{}
	final := evaluate(product, sorted, &steps)

	clamped := false
	if len(steps) > 0 && steps[len(steps)-1].PriceAfter.IsNegative() {
		clamped = true
	}

	return Breakdown{
		ProductID:   product.ID,
		BasePrice:   product.Price,
		FinalPrice:  final,
		ActiveRules: len(sorted),
		Steps:       steps,
		Clamped:     clamped,
	}
}

// evaluate runs product through rules, which must already be active and
// sorted. When steps is non-nil every applied rule is appended to it.
func evaluate(product domain.Product, rules []domain.PriceRule, steps *[]Step) decimal.Decimal {
	price := product.Price
	for _, rule := range rules {
		if !RuleApplies(rule, product) {
			continue
		}

		before := price
		price = transform(price, rule)

		if steps != nil {
			*steps = append(*steps, Step{
				RuleID:      rule.ID,
				RuleName:    rule.Name,
				Type:        rule.Type,
				Value:       rule.DiscountValue,
				Priority:    rule.Priority,
				PriceBefore: before,
				PriceAfter:  price,
				Exclusive:   rule.Exclusive,
			})
		}

		if rule.Exclusive {
			break
		}
	}

	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

func transform(price decimal.Decimal, rule domain.PriceRule) decimal.Decimal {
	switch rule.Type {
	case domain.DiscountPercentage:
		return price.Mul(decimal.NewFromInt(1).Sub(rule.DiscountValue.Div(hundred)))
	case domain.DiscountFixed:
		return price.Sub(rule.DiscountValue)
	case domain.DiscountSet:
		return rule.DiscountValue
	default:
		return price
	}
}
