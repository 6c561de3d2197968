package pricing

import (
	"parts-depot/internal/domain"

	"github.com/shopspring/decimal"
)

// gradeDiscounts maps each customer grade to its flat discount rate.
var gradeDiscounts = map[domain.CustomerGrade]decimal.Decimal{
	domain.GradeA: decimal.RequireFromString("0.10"),
	domain.GradeB: decimal.RequireFromString("0.05"),
	domain.GradeC: decimal.Zero,
}

// GradeDiscountRate returns the flat discount rate for grade. Unknown or
// empty grades get no discount.
func GradeDiscountRate(grade domain.CustomerGrade) decimal.Decimal {
	rate, ok := gradeDiscounts[grade]
	if !ok {
		return decimal.Zero
	}
	return rate
}

// CalculateDiscountedPrice applies the customer-grade flat discount to price.
// It is independent of the rule engine and is never combined with it.
func CalculateDiscountedPrice(price decimal.Decimal, grade domain.CustomerGrade) decimal.Decimal {
	rate, ok := gradeDiscounts[grade]
	if !ok {
		return price
	}
	return price.Mul(decimal.NewFromInt(1).Sub(rate))
}
