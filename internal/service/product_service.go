package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parts-depot/internal/domain"
	"parts-depot/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidProduct     = errors.New("invalid product")
	ErrInvalidStockChange = errors.New("invalid stock change")
)

// ProductInput carries the editable fields of a product. Stock is only read
// on creation.
type ProductInput struct {
	Name        string
	Category    string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Stock       int
}

// ProductService defines the interface for catalog administration
type ProductService interface {
	Create(ctx context.Context, input ProductInput, actor string) (*domain.Product, error)
	Update(ctx context.Context, id string, input ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, changeType domain.StockChangeType, quantity int, actor, reason string) (*domain.InventoryChange, error)
	History(ctx context.Context, id string, limit int) ([]domain.InventoryChange, error)
}

type productService struct {
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, inventoryRepo repository.InventoryRepository) ProductService {
	return &productService{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
	}
}

func validateProduct(input ProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if input.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if input.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	return nil
}

func (s *productService) Create(ctx context.Context, input ProductInput, actor string) (*domain.Product, error) {
	if err := validateProduct(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		Name:        strings.TrimSpace(input.Name),
		Category:    strings.TrimSpace(input.Category),
		Description: input.Description,
		Price:       input.Price,
		ImageURL:    input.ImageURL,
		Stock:       input.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.productRepo.Create(ctx, product, actor); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

func (s *productService) Update(ctx context.Context, id string, input ProductInput) (*domain.Product, error) {
	// stock is not editable here, so any value passes validation
	input.Stock = 0
	if err := validateProduct(input); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Name = strings.TrimSpace(input.Name)
	product.Category = strings.TrimSpace(input.Category)
	product.Description = input.Description
	product.Price = input.Price
	product.ImageURL = input.ImageURL
	product.UpdatedAt = time.Now().UTC()

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id string) error {
	return s.productRepo.Delete(ctx, id)
}

func (s *productService) AdjustStock(ctx context.Context, id string, changeType domain.StockChangeType, quantity int, actor, reason string) (*domain.InventoryChange, error) {
	switch changeType {
	case domain.StockInbound, domain.StockOutbound, domain.StockAdjustment:
	default:
		return nil, fmt.Errorf("%w: change type %q", ErrInvalidStockChange, changeType)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidStockChange)
	}

	change, err := s.inventoryRepo.AdjustStock(ctx, id, changeType, quantity, actor, reason)
	if err != nil {
		if errors.Is(err, domain.ErrNegativeStock) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientStock, err)
		}
		return nil, err
	}
	return change, nil
}

func (s *productService) History(ctx context.Context, id string, limit int) ([]domain.InventoryChange, error) {
	if _, err := s.productRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.inventoryRepo.ListHistory(ctx, id, limit)
}
