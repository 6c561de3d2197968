package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"parts-depot/internal/cache"
	"parts-depot/internal/config"
	"parts-depot/internal/domain"
	"parts-depot/internal/metrics"
	"parts-depot/internal/pricing"
	"parts-depot/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	ErrCatalogUnavailable = errors.New("pricing unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidQuote       = errors.New("invalid quote")
)

// CatalogQuery narrows and orders a priced catalog listing.
type CatalogQuery struct {
	Category  string
	Search    string
	SortBy    string // price, name or created_at
	SortOrder string // asc or desc
	Page      int
	PageSize  int
}

// CatalogPage is one page of priced products.
type CatalogPage struct {
	Products      []domain.Product `json:"products"`
	Total         int              `json:"total"`
	Page          int              `json:"page"`
	PageSize      int              `json:"page_size"`
	RulesSource   string           `json:"rules_source"`
	CatalogSource string           `json:"catalog_source"`
	PricedAt      time.Time        `json:"priced_at"`
}

type PricedProduct struct {
	domain.Product
	RulesSource string    `json:"rules_source"`
	PricedAt    time.Time `json:"priced_at"`
}

type PriceBreakdown struct {
	pricing.Breakdown
	RulesSource string    `json:"rules_source"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

type QuoteItem struct {
	ProductID string
	Quantity  int
}

type QuoteLine struct {
	ProductID         string           `json:"product_id"`
	Name              string           `json:"name"`
	Quantity          int              `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	OriginalUnitPrice *decimal.Decimal `json:"original_unit_price,omitempty"`
	LineTotal         decimal.Decimal  `json:"line_total"`
}

type Quote struct {
	Lines        []QuoteLine     `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingFee  decimal.Decimal `json:"shipping_fee"`
	FreeShipping bool            `json:"free_shipping"`
	Total        decimal.Decimal `json:"total"`
	RulesSource  string          `json:"rules_source"`
	PricedAt     time.Time       `json:"priced_at"`
}

// GradePrice previews the customer-grade discount. It is never combined
// with rule pricing.
type GradePrice struct {
	Grade           domain.CustomerGrade `json:"grade,omitempty"`
	GradeSource     string               `json:"grade_source"`
	Rate            decimal.Decimal      `json:"rate"`
	Price           decimal.Decimal      `json:"price"`
	DiscountedPrice decimal.Decimal      `json:"discounted_price"`
}

// PricingService serves rule-priced views of the catalog.
type PricingService interface {
	ListProducts(ctx context.Context, query CatalogQuery) (*CatalogPage, error)
	GetProduct(ctx context.Context, id string) (*PricedProduct, error)
	Quote(ctx context.Context, items []QuoteItem) (*Quote, error)
	Breakdown(ctx context.Context, productID string) (*PriceBreakdown, error)
	// GradePrice resolves userID's grade from the grade store, then from
	// tokenGrade, and applies the flat grade discount to price.
	GradePrice(ctx context.Context, userID, tokenGrade string, price decimal.Decimal) (*GradePrice, error)
}

// PricingOption customises a PricingService.
type PricingOption func(*pricingService)

// WithClock replaces the wall clock used to pick active rules.
func WithClock(now func() time.Time) PricingOption {
	return func(s *pricingService) {
		s.now = now
	}
}

type pricingService struct {
	productRepo repository.ProductRepository
	ruleRepo    repository.PriceRuleRepository
	gradeRepo   repository.CustomerGradeRepository
	snapshots   cache.SnapshotStore
	recorder    *metrics.Recorder
	cfg         config.PricingConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewPricingService creates a new instance of PricingService. snapshots may
// be nil, in which case storage failures are not masked.
func NewPricingService(
	productRepo repository.ProductRepository,
	ruleRepo repository.PriceRuleRepository,
	gradeRepo repository.CustomerGradeRepository,
	snapshots cache.SnapshotStore,
	recorder *metrics.Recorder,
	cfg config.PricingConfig,
	logger *zap.Logger,
	opts ...PricingOption,
) PricingService {
	s := &pricingService{
		productRepo: productRepo,
		ruleRepo:    ruleRepo,
		gradeRepo:   gradeRepo,
		snapshots:   snapshots,
		recorder:    recorder,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *pricingService) ListProducts(ctx context.Context, query CatalogQuery) (*CatalogPage, error) {
	catalog, err := s.pricedCatalog(ctx)
	if err != nil {
		return nil, err
	}

	filtered := filterCatalog(catalog.products, query.Category, query.Search)
	sortCatalog(filtered, query.SortBy, query.SortOrder)

	page, pageSize := normalizePage(query.Page, query.PageSize)
	total := len(filtered)
	from := min((page-1)*pageSize, total)
	to := min(from+pageSize, total)

	return &CatalogPage{
		Products:      filtered[from:to],
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
		RulesSource:   catalog.rulesSource,
		CatalogSource: catalog.catalogSource,
		PricedAt:      catalog.pricedAt,
	}, nil
}

type catalogView struct {
	products      []domain.Product
	rulesSource   string
	catalogSource string
	pricedAt      time.Time
}

// pricedCatalog loads products and rules concurrently and prices the whole
// catalog against a single instant.
func (s *pricingService) pricedCatalog(ctx context.Context) (*catalogView, error) {
	start := time.Now()

	var (
		products      []domain.Product
		catalogSource string
		rules         []domain.PriceRule
		rulesSource   string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, catalogSource, err = s.loadCatalog(gctx)
		return err
	})
	g.Go(func() error {
		rules, rulesSource = s.loadRules(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now()
	return &catalogView{
		products:      s.price(products, rules, rulesSource, now, start),
		rulesSource:   rulesSource,
		catalogSource: catalogSource,
		pricedAt:      now,
	}, nil
}

func (s *pricingService) GetProduct(ctx context.Context, id string) (*PricedProduct, error) {
	start := time.Now()

	product, rules, rulesSource, err := s.loadProductAndRules(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	priced := s.price([]domain.Product{*product}, rules, rulesSource, now, start)

	return &PricedProduct{Product: priced[0], RulesSource: rulesSource, PricedAt: now}, nil
}

func (s *pricingService) Breakdown(ctx context.Context, productID string) (*PriceBreakdown, error) {
	product, rules, rulesSource, err := s.loadProductAndRules(ctx, productID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &PriceBreakdown{
		Breakdown:   pricing.Explain(*product, rules, now),
		RulesSource: rulesSource,
		EvaluatedAt: now,
	}, nil
}

func (s *pricingService) Quote(ctx context.Context, items []QuoteItem) (*Quote, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidQuote)
	}

	// merge repeated products so stock is checked against the full quantity
	order := []string{}
	quantities := map[string]int{}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for %s must be at least 1", ErrInvalidQuote, item.ProductID)
		}
		if _, seen := quantities[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	catalog, err := s.pricedCatalog(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Product, len(catalog.products))
	for _, p := range catalog.products {
		byID[p.ID] = p
	}

	quote := &Quote{
		Lines:       make([]QuoteLine, 0, len(order)),
		Subtotal:    decimal.Zero,
		RulesSource: catalog.rulesSource,
		PricedAt:    catalog.pricedAt,
	}
	for _, id := range order {
		product, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", repository.ErrProductNotFound, id)
		}
		qty := quantities[id]
		if qty > product.Stock {
			return nil, fmt.Errorf("%w: %s has %d in stock, %d requested", ErrInsufficientStock, product.Name, product.Stock, qty)
		}

		line := QuoteLine{
			ProductID:         id,
			Name:              product.Name,
			Quantity:          qty,
			UnitPrice:         product.Price,
			OriginalUnitPrice: product.OriginalPrice,
			LineTotal:         product.Price.Mul(decimal.NewFromInt(int64(qty))),
		}
		quote.Lines = append(quote.Lines, line)
		quote.Subtotal = quote.Subtotal.Add(line.LineTotal)
	}

	quote.FreeShipping = quote.Subtotal.GreaterThanOrEqual(s.cfg.FreeShippingThreshold)
	quote.ShippingFee = s.cfg.ShippingFee
	if quote.FreeShipping {
		quote.ShippingFee = decimal.Zero
	}
	quote.Total = quote.Subtotal.Add(quote.ShippingFee)

	return quote, nil
}

func (s *pricingService) GradePrice(ctx context.Context, userID, tokenGrade string, price decimal.Decimal) (*GradePrice, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidQuote)
	}

	result := &GradePrice{GradeSource: "none", Price: price}

	assignment, err := s.gradeRepo.Get(ctx, userID)
	switch {
	case err == nil:
		result.Grade = assignment.Grade
		result.GradeSource = "store"
	case errors.Is(err, repository.ErrCustomerGradeNotFound):
	default:
		s.logger.Warn("Customer grade lookup failed, using token claim",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	if result.Grade == "" && tokenGrade != "" {
		if grade, err := domain.ParseCustomerGrade(tokenGrade); err == nil {
			result.Grade = grade
			result.GradeSource = "token"
		}
	}

	result.Rate = pricing.GradeDiscountRate(result.Grade)
	result.DiscountedPrice = pricing.CalculateDiscountedPrice(price, result.Grade)
	return result, nil
}

func (s *pricingService) price(products []domain.Product, rules []domain.PriceRule, source string, now, start time.Time) []domain.Product {
	priced := pricing.ApplyPriceRulesAt(products, rules, now)

	discounted := 0
	for _, p := range priced {
		if p.Discounted() {
			discounted++
		}
	}
	s.recorder.RecordEvaluation(source, len(priced), discounted, time.Since(start))

	return priced
}

func (s *pricingService) loadProductAndRules(ctx context.Context, id string) (*domain.Product, []domain.PriceRule, string, error) {
	var (
		product     *domain.Product
		rules       []domain.PriceRule
		rulesSource string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		product, err = s.findProduct(gctx, id)
		return err
	})
	g.Go(func() error {
		rules, rulesSource = s.loadRules(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, "", err
	}

	return product, rules, rulesSource, nil
}

// loadRules never fails: it degrades to the snapshot and then to no rules.
func (s *pricingService) loadRules(ctx context.Context) ([]domain.PriceRule, string) {
	rules, err := s.ruleRepo.List(ctx)
	if err == nil {
		if s.snapshots != nil {
			if err := s.snapshots.SaveRules(ctx, rules); err != nil {
				s.logger.Warn("Failed to refresh rules snapshot", zap.Error(err))
			}
		}
		return rules, metrics.SourceLive
	}

	s.logger.Error("Failed to load price rules", zap.Error(err))

	if s.snapshots != nil {
		snap, snapErr := s.snapshots.LoadRules(ctx)
		if snapErr == nil {
			s.logger.Warn("Serving price rules from snapshot", zap.Time("saved_at", snap.SavedAt))
			s.recorder.RecordFallback("rules", metrics.SourceSnapshot)
			return snap.Items, metrics.SourceSnapshot
		}
		if !errors.Is(snapErr, cache.ErrSnapshotMissing) {
			s.logger.Error("Failed to load rules snapshot", zap.Error(snapErr))
		}
	}

	s.logger.Warn("No price rules available, serving catalog prices")
	s.recorder.RecordFallback("rules", metrics.SourceNone)
	return nil, metrics.SourceNone
}

func (s *pricingService) loadCatalog(ctx context.Context) ([]domain.Product, string, error) {
	products, err := s.productRepo.List(ctx)
	if err == nil {
		if s.snapshots != nil {
			if err := s.snapshots.SaveCatalog(ctx, products); err != nil {
				s.logger.Warn("Failed to refresh catalog snapshot", zap.Error(err))
			}
		}
		return products, metrics.SourceLive, nil
	}

	s.logger.Error("Failed to load catalog", zap.Error(err))

	snap, snapErr := s.catalogSnapshot(ctx)
	if snapErr != nil {
		s.recorder.RecordFallback("catalog", metrics.SourceNone)
		return nil, "", snapErr
	}

	s.logger.Warn("Serving catalog from snapshot", zap.Time("saved_at", snap.SavedAt))
	s.recorder.RecordFallback("catalog", metrics.SourceSnapshot)
	return snap.Items, metrics.SourceSnapshot, nil
}

func (s *pricingService) findProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err == nil {
		return product, nil
	}
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, err
	}

	s.logger.Error("Failed to load product", zap.String("product_id", id), zap.Error(err))

	snap, snapErr := s.catalogSnapshot(ctx)
	if snapErr != nil {
		s.recorder.RecordFallback("catalog", metrics.SourceNone)
		return nil, snapErr
	}
	s.recorder.RecordFallback("catalog", metrics.SourceSnapshot)

	for _, p := range snap.Items {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (s *pricingService) catalogSnapshot(ctx context.Context) (*cache.Snapshot[domain.Product], error) {
	if s.snapshots == nil {
		return nil, ErrCatalogUnavailable
	}

	snap, err := s.snapshots.LoadCatalog(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrSnapshotMissing) {
			s.logger.Error("Failed to load catalog snapshot", zap.Error(err))
		}
		return nil, ErrCatalogUnavailable
	}
	return snap, nil
}

func filterCatalog(products []domain.Product, category, search string) []domain.Product {
	search = strings.ToLower(strings.TrimSpace(search))
	filterCategory := category != "" && category != domain.CategoryAll

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if filterCategory && p.Category != category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func sortCatalog(products []domain.Product, sortBy, sortOrder string) {
	var compare func(a, b domain.Product) int
	switch sortBy {
	case "name":
		compare = func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) }
	case "created_at":
		compare = func(a, b domain.Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		compare = func(a, b domain.Product) int { return a.Price.Cmp(b.Price) }
	}

	if strings.EqualFold(sortOrder, "desc") {
		asc := compare
		compare = func(a, b domain.Product) int { return cmp.Compare(0, asc(a, b)) }
	}

	slices.SortStableFunc(products, compare)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
