package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"parts-depot/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrPriceRuleNotFound = errors.New("price rule not found")
)

// PriceRuleRepository defines the interface for price rule data access
type PriceRuleRepository interface {
	Create(ctx context.Context, rule *domain.PriceRule) error
	Update(ctx context.Context, rule *domain.PriceRule) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.PriceRule, error)
	// List returns every rule, active or not, newest first.
	List(ctx context.Context) ([]domain.PriceRule, error)
}

type priceRuleRepository struct {
	db *sql.DB
}

// NewPriceRuleRepository creates a new instance of PriceRuleRepository
func NewPriceRuleRepository(db *sql.DB) PriceRuleRepository {
	return &priceRuleRepository{db: db}
}

const priceRuleColumns = `id, name, type, discount_value, product_ids, category, start_date, end_date, priority, exclusive, created_at, updated_at`

func scanPriceRule(row rowScanner) (*domain.PriceRule, error) {
	rule := &domain.PriceRule{}
	var productIDs []byte
	var endDate sql.NullTime

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Type,
		&rule.DiscountValue,
		&productIDs,
		&rule.Category,
		&rule.StartDate,
		&endDate,
		&rule.Priority,
		&rule.Exclusive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.ProductIDs = []string{}
	if len(productIDs) > 0 {
		if err := json.Unmarshal(productIDs, &rule.ProductIDs); err != nil {
			return nil, fmt.Errorf("failed to decode product ids: %w", err)
		}
	}
	if endDate.Valid {
		t := endDate.Time
		rule.EndDate = &t
	}

	return rule, nil
}

func encodeProductIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to encode product ids: %w", err)
	}
	return string(b), nil
}

func endDateParam(rule *domain.PriceRule) sql.NullTime {
	if rule.EndDate == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *rule.EndDate, Valid: true}
}

func (r *priceRuleRepository) Create(ctx context.Context, rule *domain.PriceRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	productIDs, err := encodeProductIDs(rule.ProductIDs)
	if err != nil {
		return err
	}
	endDate := endDateParam(rule)

	query := `
		INSERT INTO price_rules (` + priceRuleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		rule.ID,
		rule.Name,
		rule.Type,
		rule.DiscountValue,
		productIDs,
		rule.Category,
		rule.StartDate,
		endDate,
		rule.Priority,
		rule.Exclusive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create price rule: %w", err)
	}

	return nil
}

func (r *priceRuleRepository) Update(ctx context.Context, rule *domain.PriceRule) error {
	if !validID(rule.ID) {
		return ErrPriceRuleNotFound
	}

	productIDs, err := encodeProductIDs(rule.ProductIDs)
	if err != nil {
		return err
	}
	endDate := endDateParam(rule)

	query := `
		UPDATE price_rules
		SET name = $2, type = $3, discount_value = $4, product_ids = $5, category = $6,
		    start_date = $7, end_date = $8, priority = $9, exclusive = $10, updated_at = $11
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		rule.ID,
		rule.Name,
		rule.Type,
		rule.DiscountValue,
		productIDs,
		rule.Category,
		rule.StartDate,
		endDate,
		rule.Priority,
		rule.Exclusive,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update price rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrPriceRuleNotFound
	}

	return nil
}

func (r *priceRuleRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrPriceRuleNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM price_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete price rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrPriceRuleNotFound
	}

	return nil
}

func (r *priceRuleRepository) FindByID(ctx context.Context, id string) (*domain.PriceRule, error) {
	if !validID(id) {
		return nil, ErrPriceRuleNotFound
	}

	query := `SELECT ` + priceRuleColumns + ` FROM price_rules WHERE id = $1`

	rule, err := scanPriceRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPriceRuleNotFound
		}
		return nil, fmt.Errorf("failed to find price rule by ID: %w", err)
	}

	return rule, nil
}

func (r *priceRuleRepository) List(ctx context.Context) ([]domain.PriceRule, error) {
	query := `SELECT ` + priceRuleColumns + ` FROM price_rules ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list price rules: %w", err)
	}
	defer rows.Close()

	rules := []domain.PriceRule{}
	for rows.Next() {
		rule, err := scanPriceRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price rules: %w", err)
	}

	return rules, nil
}
