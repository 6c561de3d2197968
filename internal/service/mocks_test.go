package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parts-depot/internal/cache"
	"parts-depot/internal/domain"
	"parts-depot/internal/repository"
)

var errStorageDown = errors.New("connection refused")

// Mock repositories for testing
type mockProductRepository struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	order    []string
	ledger   []domain.InventoryChange
	fail     bool
}

func newMockProductRepository(products ...domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: make(map[string]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = &p
		m.order = append(m.order, p.ID)
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product, createdBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStorageDown
	}
	if product.ID == "" {
		product.ID = "generated-" + product.Name
	}
	stored := *product
	m.products[product.ID] = &stored
	m.order = append(m.order, product.ID)
	if product.Stock > 0 {
		m.ledger = append(m.ledger, domain.InventoryChange{
			ProductID: product.ID, ChangedBy: createdBy, ChangeType: domain.StockInitial,
			QuantityChange: product.Stock, NewStock: product.Stock,
		})
	}
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.products[product.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	stock := stored.Stock
	*stored = *product
	stored.Stock = stock
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStorageDown
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStorageDown
	}
	out := []domain.Product{}
	for _, id := range m.order {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

// AdjustStock lets the product mock double as the inventory repository.
func (m *mockProductRepository) AdjustStock(ctx context.Context, productID string, changeType domain.StockChangeType, quantity int, changedBy, reason string) (*domain.InventoryChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	next, err := changeType.NextStock(p.Stock, quantity)
	if err != nil {
		return nil, err
	}
	change := domain.InventoryChange{
		ProductID: productID, ChangedBy: changedBy, ChangeType: changeType,
		QuantityChange: next - p.Stock, PreviousStock: p.Stock, NewStock: next, Reason: reason,
	}
	p.Stock = next
	m.ledger = append(m.ledger, change)
	return &change, nil
}

func (m *mockProductRepository) ListHistory(ctx context.Context, productID string, limit int) ([]domain.InventoryChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.InventoryChange{}
	for i := len(m.ledger) - 1; i >= 0; i-- {
		if m.ledger[i].ProductID == productID {
			out = append(out, m.ledger[i])
		}
	}
	return out, nil
}

type mockPriceRuleRepository struct {
	mu    sync.Mutex
	rules []domain.PriceRule
	fail  bool
	seq   int
}

func newMockPriceRuleRepository(rules ...domain.PriceRule) *mockPriceRuleRepository {
	return &mockPriceRuleRepository{rules: rules}
}

func (m *mockPriceRuleRepository) Create(ctx context.Context, rule *domain.PriceRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStorageDown
	}
	m.seq++
	if rule.ID == "" {
		rule.ID = fmt.Sprintf("rule-%d", m.seq)
	}
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *mockPriceRuleRepository) Update(ctx context.Context, rule *domain.PriceRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == rule.ID {
			m.rules[i] = *rule
			return nil
		}
	}
	return repository.ErrPriceRuleNotFound
}

func (m *mockPriceRuleRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return repository.ErrPriceRuleNotFound
}

func (m *mockPriceRuleRepository) FindByID(ctx context.Context, id string) (*domain.PriceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			copied := r
			return &copied, nil
		}
	}
	return nil, repository.ErrPriceRuleNotFound
}

func (m *mockPriceRuleRepository) List(ctx context.Context) ([]domain.PriceRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStorageDown
	}
	return append([]domain.PriceRule{}, m.rules...), nil
}

type mockCustomerGradeRepository struct {
	mu     sync.Mutex
	grades map[string]domain.CustomerGradeAssignment
	fail   bool
}

func newMockCustomerGradeRepository() *mockCustomerGradeRepository {
	return &mockCustomerGradeRepository{grades: make(map[string]domain.CustomerGradeAssignment)}
}

func (m *mockCustomerGradeRepository) Get(ctx context.Context, userID string) (*domain.CustomerGradeAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errStorageDown
	}
	a, ok := m.grades[userID]
	if !ok {
		return nil, repository.ErrCustomerGradeNotFound
	}
	return &a, nil
}

func (m *mockCustomerGradeRepository) Set(ctx context.Context, assignment *domain.CustomerGradeAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStorageDown
	}
	m.grades[assignment.UserID] = *assignment
	return nil
}

func (m *mockCustomerGradeRepository) List(ctx context.Context) ([]domain.CustomerGradeAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.CustomerGradeAssignment{}
	for _, a := range m.grades {
		out = append(out, a)
	}
	return out, nil
}

type mockSnapshotStore struct {
	mu      sync.Mutex
	rules   *cache.Snapshot[domain.PriceRule]
	catalog *cache.Snapshot[domain.Product]
	saves   int
}

func (m *mockSnapshotStore) SaveRules(ctx context.Context, rules []domain.PriceRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.rules = &cache.Snapshot[domain.PriceRule]{Items: append([]domain.PriceRule{}, rules...), SavedAt: time.Now()}
	return nil
}

func (m *mockSnapshotStore) LoadRules(ctx context.Context) (*cache.Snapshot[domain.PriceRule], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rules == nil {
		return nil, cache.ErrSnapshotMissing
	}
	return m.rules, nil
}

func (m *mockSnapshotStore) SaveCatalog(ctx context.Context, products []domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.catalog = &cache.Snapshot[domain.Product]{Items: append([]domain.Product{}, products...), SavedAt: time.Now()}
	return nil
}

func (m *mockSnapshotStore) LoadCatalog(ctx context.Context) (*cache.Snapshot[domain.Product], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.catalog == nil {
		return nil, cache.ErrSnapshotMissing
	}
	return m.catalog, nil
}
