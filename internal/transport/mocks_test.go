package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"parts-depot/internal/config"
	"parts-depot/internal/domain"
	"parts-depot/internal/metrics"
	"parts-depot/internal/middleware"
	"parts-depot/internal/repository"
	"parts-depot/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

var (
	testNow        = time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC)
	errStorageDown = errors.New("connection refused")
)

// memoryStore backs every repository interface with maps.
type memoryStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	rules    []domain.PriceRule
	grades   map[string]domain.CustomerGradeAssignment
	ledger   []domain.InventoryChange
	seq      int
	failList bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products: make(map[string]domain.Product),
		grades:   make(map[string]domain.CustomerGradeAssignment),
	}
}

func (s *memoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

type productRepo struct{ *memoryStore }

func (r productRepo) Create(ctx context.Context, p *domain.Product, createdBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = r.nextID("product")
	}
	r.products[p.ID] = *p
	if p.Stock > 0 {
		r.ledger = append(r.ledger, domain.InventoryChange{ID: r.nextID("change"), ProductID: p.ID, ChangedBy: createdBy, ChangeType: domain.StockInitial, QuantityChange: p.Stock, NewStock: p.Stock})
	}
	return nil
}

func (r productRepo) Update(ctx context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.products[p.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	updated := *p
	updated.Stock = stored.Stock
	r.products[p.ID] = updated
	return nil
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(r.products, id)
	return nil
}

func (r productRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (r productRepo) List(ctx context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList {
		return nil, errStorageDown
	}
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

type inventoryRepo struct{ *memoryStore }

func (r inventoryRepo) AdjustStock(ctx context.Context, productID string, changeType domain.StockChangeType, quantity int, changedBy, reason string) (*domain.InventoryChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	next, err := changeType.NextStock(p.Stock, quantity)
	if err != nil {
		return nil, err
	}
	change := domain.InventoryChange{
		ID: r.nextID("change"), ProductID: productID, ChangedBy: changedBy, ChangeType: changeType,
		QuantityChange: next - p.Stock, PreviousStock: p.Stock, NewStock: next, Reason: reason,
	}
	p.Stock = next
	r.products[productID] = p
	r.ledger = append(r.ledger, change)
	return &change, nil
}

func (r inventoryRepo) ListHistory(ctx context.Context, productID string, limit int) ([]domain.InventoryChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.InventoryChange{}
	for i := len(r.ledger) - 1; i >= 0; i-- {
		if r.ledger[i].ProductID == productID {
			out = append(out, r.ledger[i])
		}
	}
	return out, nil
}

type ruleRepo struct{ *memoryStore }

func (r ruleRepo) Create(ctx context.Context, rule *domain.PriceRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule.ID = r.nextID("rule")
	r.rules = append(r.rules, *rule)
	return nil
}

func (r ruleRepo) Update(ctx context.Context, rule *domain.PriceRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == rule.ID {
			r.rules[i] = *rule
			return nil
		}
	}
	return repository.ErrPriceRuleNotFound
}

func (r ruleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return nil
		}
	}
	return repository.ErrPriceRuleNotFound
}

func (r ruleRepo) FindByID(ctx context.Context, id string) (*domain.PriceRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.ID == id {
			return &rule, nil
		}
	}
	return nil, repository.ErrPriceRuleNotFound
}

func (r ruleRepo) List(ctx context.Context) ([]domain.PriceRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PriceRule{}, r.rules...), nil
}

type gradeRepo struct{ *memoryStore }

func (r gradeRepo) Get(ctx context.Context, userID string) (*domain.CustomerGradeAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.grades[userID]
	if !ok {
		return nil, repository.ErrCustomerGradeNotFound
	}
	return &a, nil
}

func (r gradeRepo) Set(ctx context.Context, a *domain.CustomerGradeAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grades[a.UserID] = *a
	return nil
}

func (r gradeRepo) List(ctx context.Context) ([]domain.CustomerGradeAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.CustomerGradeAssignment{}
	for _, a := range r.grades {
		out = append(out, a)
	}
	return out, nil
}

// testAPI wires every handler onto one router, the way the server does.
type testAPI struct {
	store  *memoryStore
	router chi.Router
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := newMemoryStore()
	logger := zap.NewNop()

	pricingService := service.NewPricingService(
		productRepo{store}, ruleRepo{store}, gradeRepo{store}, nil,
		metrics.NewRecorder(),
		config.PricingConfig{
			FreeShippingThreshold: decimal.NewFromInt(100000),
			ShippingFee:           decimal.NewFromInt(3000),
			DefaultRulePriority:   100,
		},
		logger,
		service.WithClock(func() time.Time { return testNow }),
	)
	productService := service.NewProductService(productRepo{store}, inventoryRepo{store})
	ruleService := service.NewPriceRuleService(ruleRepo{store}, 100)
	gradeService := service.NewCustomerGradeService(gradeRepo{store})

	auth := middleware.AuthMiddleware(testSecret, logger)
	admin := middleware.RequireAdmin(logger)

	r := chi.NewRouter()
	NewCatalogHandler(pricingService, logger).RegisterRoutes(r, auth)
	NewPriceRuleHandler(ruleService, logger).RegisterRoutes(r, auth, admin)
	NewProductHandler(productService, pricingService, logger).RegisterRoutes(r, auth, admin)
	NewCustomerGradeHandler(gradeService, logger).RegisterRoutes(r, auth, admin)

	return &testAPI{store: store, router: r}
}

func (a *testAPI) seedProduct(id, name, category string, price int64, stock int) {
	a.store.products[id] = domain.Product{
		ID: id, Name: name, Category: category,
		Price: decimal.NewFromInt(price), Stock: stock,
		CreatedAt: testNow.Add(-time.Hour), UpdatedAt: testNow.Add(-time.Hour),
	}
}

func (a *testAPI) seedRule(rule domain.PriceRule) {
	a.store.rules = append(a.store.rules, rule)
}

func (a *testAPI) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, userID, role, grade string) string {
	t.Helper()
	claims := jwt.MapClaims{"user_id": userID, "role": role, "exp": time.Now().Add(time.Hour).Unix()}
	if grade != "" {
		claims["grade"] = grade
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + token
}
