package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parts-depot/internal/domain"
	"parts-depot/internal/pricing"
	"parts-depot/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPriceRule = errors.New("invalid price rule")
)

// PriceRuleInput carries the editable fields of a rule. A nil Priority takes
// the configured default.
type PriceRuleInput struct {
	Name          string
	Type          domain.DiscountType
	DiscountValue decimal.Decimal
	ProductIDs    []string
	Category      string
	StartDate     *time.Time
	EndDate       *time.Time
	Priority      *int
	Exclusive     bool
}

// PriceRuleView is a stored rule with its activity evaluated at request time.
type PriceRuleView struct {
	domain.PriceRule
	Active bool `json:"active"`
}

// PriceRuleService defines the interface for price rule administration
type PriceRuleService interface {
	List(ctx context.Context) ([]PriceRuleView, error)
	Get(ctx context.Context, id string) (*PriceRuleView, error)
	Create(ctx context.Context, input PriceRuleInput) (*domain.PriceRule, error)
	Update(ctx context.Context, id string, input PriceRuleInput) (*domain.PriceRule, error)
	Delete(ctx context.Context, id string) error
}

type priceRuleService struct {
	ruleRepo        repository.PriceRuleRepository
	defaultPriority int
	now             func() time.Time
}

// NewPriceRuleService creates a new instance of PriceRuleService
func NewPriceRuleService(ruleRepo repository.PriceRuleRepository, defaultPriority int) PriceRuleService {
	return &priceRuleService{
		ruleRepo:        ruleRepo,
		defaultPriority: defaultPriority,
		now:             time.Now,
	}
}

func (s *priceRuleService) List(ctx context.Context) ([]PriceRuleView, error) {
	rules, err := s.ruleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list price rules: %w", err)
	}

	now := s.now()
	views := make([]PriceRuleView, len(rules))
	for i, rule := range rules {
		views[i] = PriceRuleView{PriceRule: rule, Active: pricing.IsActive(rule, now)}
	}
	return views, nil
}

func (s *priceRuleService) Get(ctx context.Context, id string) (*PriceRuleView, error) {
	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PriceRuleView{PriceRule: *rule, Active: pricing.IsActive(*rule, s.now())}, nil
}

func (s *priceRuleService) Create(ctx context.Context, input PriceRuleInput) (*domain.PriceRule, error) {
	rule := &domain.PriceRule{}
	if err := s.apply(rule, input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create price rule: %w", err)
	}
	return rule, nil
}

func (s *priceRuleService) Update(ctx context.Context, id string, input PriceRuleInput) (*domain.PriceRule, error) {
	rule, err := s.ruleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.apply(rule, input); err != nil {
		return nil, err
	}
	rule.UpdatedAt = s.now().UTC()

	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		if errors.Is(err, repository.ErrPriceRuleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update price rule: %w", err)
	}
	return rule, nil
}

func (s *priceRuleService) Delete(ctx context.Context, id string) error {
	return s.ruleRepo.Delete(ctx, id)
}

// apply validates input and copies it onto rule.
func (s *priceRuleService) apply(rule *domain.PriceRule, input PriceRuleInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPriceRule)
	}
	if !input.Type.Valid() {
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidPriceRule, input.Type)
	}
	if input.DiscountValue.IsNegative() {
		return fmt.Errorf("%w: discount_value must not be negative", ErrInvalidPriceRule)
	}
	if input.StartDate == nil || input.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", ErrInvalidPriceRule)
	}
	if input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return fmt.Errorf("%w: end_date must not be before start_date", ErrInvalidPriceRule)
	}

	productIDs := make([]string, 0, len(input.ProductIDs))
	for _, id := range input.ProductIDs {
		if id = strings.TrimSpace(id); id != "" {
			productIDs = append(productIDs, id)
		}
	}

	priority := s.defaultPriority
	if input.Priority != nil {
		priority = *input.Priority
	}

	rule.Name = name
	rule.Type = input.Type
	rule.DiscountValue = input.DiscountValue
	rule.ProductIDs = productIDs
	rule.Category = strings.TrimSpace(input.Category)
	rule.StartDate = input.StartDate.UTC()
	rule.EndDate = nil
	if input.EndDate != nil {
		end := input.EndDate.UTC()
		rule.EndDate = &end
	}
	rule.Priority = priority
	rule.Exclusive = input.Exclusive

	return nil
}
