package pricing

import (
	"testing"
	"time"

	"parts-depot/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evalTime = time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC)

func product(id, category string, price int64) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      "product " + id,
		Category:  category,
		Price:     decimal.NewFromInt(price),
		Stock:     10,
		CreatedAt: evalTime.Add(-48 * time.Hour),
	}
}

func rule(id string, typ domain.DiscountType, value int64, priority int) domain.PriceRule {
	return domain.PriceRule{
		ID:            id,
		Name:          "rule " + id,
		Type:          typ,
		DiscountValue: decimal.NewFromInt(value),
		Category:      domain.CategoryAll,
		StartDate:     evalTime.Add(-24 * time.Hour),
		Priority:      priority,
	}
}

func assertPrice(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "expected price %s, got %s", want, got)
}

func TestIsActiveWindowBounds(t *testing.T) {
	r := rule("r1", domain.DiscountPercentage, 10, 1)

	r.StartDate = evalTime
	assert.True(t, IsActive(r, evalTime), "start date is inclusive")
	assert.False(t, IsActive(r, evalTime.Add(-time.Microsecond)))

	end := evalTime
	r.StartDate = evalTime.Add(-time.Hour)
	r.EndDate = &end
	assert.True(t, IsActive(r, evalTime), "end date is inclusive")
	assert.False(t, IsActive(r, evalTime.Add(time.Microsecond)))
}

func TestSelectActiveRules(t *testing.T) {
	expired := rule("expired", domain.DiscountFixed, 100, 1)
	end := evalTime.Add(-time.Hour)
	expired.EndDate = &end

	future := rule("future", domain.DiscountFixed, 100, 1)
	future.StartDate = evalTime.Add(time.Hour)

	current := rule("current", domain.DiscountFixed, 100, 2)
	openEnded := rule("open", domain.DiscountFixed, 100, 0)

	active := SelectActiveRules([]domain.PriceRule{expired, current, future, openEnded}, evalTime)
	require.Len(t, active, 2)
	assert.Equal(t, "current", active[0].ID)
	assert.Equal(t, "open", active[1].ID)

	assert.Empty(t, SelectActiveRules(nil, evalTime))
}

func TestRuleApplies(t *testing.T) {
	gas := product("p1", "refrigerant-gas", 45000)

	byID := rule("r1", domain.DiscountFixed, 1, 1)
	byID.Category = "equipment"
	byID.ProductIDs = []string{"p1"}
	assert.True(t, RuleApplies(byID, gas), "explicit id wins over unrelated category")

	byCategory := rule("r2", domain.DiscountFixed, 1, 1)
	byCategory.Category = "refrigerant-gas"
	byCategory.ProductIDs = []string{"other"}
	assert.True(t, RuleApplies(byCategory, gas))

	all := rule("r3", domain.DiscountFixed, 1, 1)
	assert.True(t, RuleApplies(all, gas))

	unrelated := rule("r4", domain.DiscountFixed, 1, 1)
	unrelated.Category = "parts"
	assert.False(t, RuleApplies(unrelated, gas))

	empty := rule("r5", domain.DiscountFixed, 1, 1)
	empty.Category = ""
	assert.False(t, RuleApplies(empty, gas), "empty category never matches by category")
	assert.False(t, RuleApplies(empty, product("p2", "", 1)), "empty category must not match an uncategorised product")
}

func TestApplyPriceRulesWithoutRulesReturnsInput(t *testing.T) {
	products := []domain.Product{product("p1", "parts", 1000), product("p2", "equipment", 2000)}

	out := ApplyPriceRulesAt(products, nil, evalTime)
	assert.Equal(t, products, out)
	for _, p := range out {
		assert.Nil(t, p.OriginalPrice)
	}

	inactive := rule("r1", domain.DiscountPercentage, 50, 1)
	inactive.StartDate = evalTime.Add(time.Hour)
	out = ApplyPriceRulesAt(products, []domain.PriceRule{inactive}, evalTime)
	assert.Equal(t, products, out)
	for _, p := range out {
		assert.Nil(t, p.OriginalPrice)
	}
}

func TestApplyPriceRulesPriorityOrdering(t *testing.T) {
	products := []domain.Product{product("p1", "parts", 1000)}
	rules := []domain.PriceRule{
		rule("ten", domain.DiscountPercentage, 10, 2),
		rule("twenty", domain.DiscountPercentage, 20, 1),
	}

	out := ApplyPriceRulesAt(products, rules, evalTime)
	require.Len(t, out, 1)
	assertPrice(t, "720", out[0].Price)
	require.NotNil(t, out[0].OriginalPrice)
	assertPrice(t, "1000", *out[0].OriginalPrice)
}

func TestApplyPriceRulesExclusiveShortCircuit(t *testing.T) {
	a := rule("a", domain.DiscountPercentage, 10, 1)
	a.Exclusive = true
	b := rule("b", domain.DiscountPercentage, 50, 2)

	out := ApplyPriceRulesAt([]domain.Product{product("x", "parts", 1000)}, []domain.PriceRule{b, a}, evalTime)
	assertPrice(t, "900", out[0].Price)
}

func TestApplyPriceRulesExclusiveIsPerProduct(t *testing.T) {
	exclusive := rule("gas-only", domain.DiscountPercentage, 10, 1)
	exclusive.Category = "refrigerant-gas"
	exclusive.Exclusive = true
	everyone := rule("everyone", domain.DiscountFixed, 100, 2)

	out := ApplyPriceRulesAt(
		[]domain.Product{product("gas", "refrigerant-gas", 1000), product("pump", "equipment", 1000)},
		[]domain.PriceRule{exclusive, everyone},
		evalTime,
	)
	assertPrice(t, "900", out[0].Price)
	assertPrice(t, "900", out[1].Price)
}

func TestApplyPriceRulesSetOverride(t *testing.T) {
	pct := rule("pct", domain.DiscountPercentage, 10, 1)
	set := rule("set", domain.DiscountSet, 30000, 2)

	out := ApplyPriceRulesAt([]domain.Product{product("r32", "refrigerant-gas", 45000)}, []domain.PriceRule{pct, set}, evalTime)
	assertPrice(t, "30000", out[0].Price)
	assertPrice(t, "45000", *out[0].OriginalPrice)
}

func TestApplyPriceRulesSetThenDiscount(t *testing.T) {
	set := rule("set", domain.DiscountSet, 30000, 1)
	fixed := rule("fixed", domain.DiscountFixed, 5000, 2)

	out := ApplyPriceRulesAt([]domain.Product{product("r32", "refrigerant-gas", 45000)}, []domain.PriceRule{fixed, set}, evalTime)
	assertPrice(t, "25000", out[0].Price)
}

func TestApplyPriceRulesClampsAtZero(t *testing.T) {
	fixed := rule("huge", domain.DiscountFixed, 5000, 1)
	pct := rule("over", domain.DiscountPercentage, 150, 2)

	out := ApplyPriceRulesAt([]domain.Product{product("p1", "parts", 1000)}, []domain.PriceRule{fixed}, evalTime)
	assertPrice(t, "0", out[0].Price)
	assert.False(t, out[0].Price.IsNegative())

	out = ApplyPriceRulesAt([]domain.Product{product("p1", "parts", 1000)}, []domain.PriceRule{pct}, evalTime)
	assertPrice(t, "0", out[0].Price)
}

func TestApplyPriceRulesIsNotIdempotent(t *testing.T) {
	rules := []domain.PriceRule{rule("ten", domain.DiscountPercentage, 10, 1)}
	once := ApplyPriceRulesAt([]domain.Product{product("p1", "parts", 1000)}, rules, evalTime)
	twice := ApplyPriceRulesAt(once, rules, evalTime)

	assertPrice(t, "900", once[0].Price)
	assertPrice(t, "810", twice[0].Price)
}

func TestApplyPriceRulesStableForEqualPriority(t *testing.T) {
	set := rule("set", domain.DiscountSet, 500, 1)
	fixed := rule("fixed", domain.DiscountFixed, 100, 1)

	out := ApplyPriceRulesAt([]domain.Product{product("p1", "parts", 1000)}, []domain.PriceRule{set, fixed}, evalTime)
	assertPrice(t, "400", out[0].Price)

	out = ApplyPriceRulesAt([]domain.Product{product("p1", "parts", 1000)}, []domain.PriceRule{fixed, set}, evalTime)
	assertPrice(t, "500", out[0].Price)
}

func TestApplyPriceRulesAddsOriginalPriceToUnmatchedProducts(t *testing.T) {
	gasOnly := rule("gas", domain.DiscountPercentage, 10, 1)
	gasOnly.Category = "refrigerant-gas"

	out := ApplyPriceRulesAt([]domain.Product{product("pump", "equipment", 1000)}, []domain.PriceRule{gasOnly}, evalTime)
	assertPrice(t, "1000", out[0].Price)
	require.NotNil(t, out[0].OriginalPrice)
	assert.False(t, out[0].Discounted())
}

func TestApplyPriceRulesDoesNotMutateInput(t *testing.T) {
	products := []domain.Product{product("p1", "parts", 1000)}
	rules := []domain.PriceRule{rule("b", domain.DiscountFixed, 1, 2), rule("a", domain.DiscountFixed, 1, 1)}

	_ = ApplyPriceRulesAt(products, rules, evalTime)
	assertPrice(t, "1000", products[0].Price)
	assert.Nil(t, products[0].OriginalPrice)
	assert.Equal(t, "b", rules[0].ID, "rule order must be left untouched")
}

func TestExplain(t *testing.T) {
	a := rule("a", domain.DiscountPercentage, 20, 1)
	b := rule("b", domain.DiscountFixed, 100, 2)
	b.Exclusive = true
	c := rule("c", domain.DiscountSet, 1, 3)
	skipped := rule("parts", domain.DiscountSet, 1, 0)
	skipped.Category = "parts"

	bd := Explain(product("p1", "equipment", 1000), []domain.PriceRule{c, b, a, skipped}, evalTime)
	assert.Equal(t, "p1", bd.ProductID)
	assert.Equal(t, 4, bd.ActiveRules)
	require.Len(t, bd.Steps, 2)
	assert.Equal(t, "a", bd.Steps[0].RuleID)
	assertPrice(t, "800", bd.Steps[0].PriceAfter)
	assert.Equal(t, "b", bd.Steps[1].RuleID)
	assert.True(t, bd.Steps[1].Exclusive)
	assertPrice(t, "700", bd.FinalPrice)
	assert.False(t, bd.Clamped)

	bd = Explain(product("p1", "equipment", 50), []domain.PriceRule{b}, evalTime)
	assertPrice(t, "0", bd.FinalPrice)
	assert.True(t, bd.Clamped)
}

func TestCalculateDiscountedPrice(t *testing.T) {
	price := decimal.NewFromInt(1000)

	assertPrice(t, "1000", CalculateDiscountedPrice(price, ""))
	assertPrice(t, "900", CalculateDiscountedPrice(price, domain.GradeA))
	assertPrice(t, "950", CalculateDiscountedPrice(price, domain.GradeB))
	assertPrice(t, "1000", CalculateDiscountedPrice(price, domain.GradeC))
	assertPrice(t, "1000", CalculateDiscountedPrice(price, domain.CustomerGrade("Z")))

	assertPrice(t, "0.1", GradeDiscountRate(domain.GradeA))
	assertPrice(t, "0", GradeDiscountRate(""))
}
