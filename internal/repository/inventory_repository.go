package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parts-depot/internal/domain"

	"github.com/google/uuid"
)

// InventoryRepository moves stock and keeps its ledger.
type InventoryRepository interface {
	// AdjustStock locks the product row, applies change type and quantity,
	// and records the ledger entry in the same transaction.
	AdjustStock(ctx context.Context, productID string, changeType domain.StockChangeType, quantity int, changedBy, reason string) (*domain.InventoryChange, error)
	ListHistory(ctx context.Context, productID string, limit int) ([]domain.InventoryChange, error)
}

type inventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) AdjustStock(ctx context.Context, productID string, changeType domain.StockChangeType, quantity int, changedBy, reason string) (*domain.InventoryChange, error) {
	if !validID(productID) {
		return nil, ErrProductNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to lock product stock: %w", err)
	}

	next, err := changeType.NextStock(current, quantity)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1`, productID, next, now)
	if err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}

	change := &domain.InventoryChange{
		ProductID:      productID,
		ChangedBy:      changedBy,
		ChangeType:     changeType,
		QuantityChange: next - current,
		PreviousStock:  current,
		NewStock:       next,
		Reason:         reason,
		CreatedAt:      now,
	}
	if err := insertInventoryChange(ctx, tx, change); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stock change: %w", err)
	}

	return change, nil
}

func (r *inventoryRepository) ListHistory(ctx context.Context, productID string, limit int) ([]domain.InventoryChange, error) {
	if !validID(productID) {
		return nil, ErrProductNotFound
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, product_id, changed_by, change_type, quantity_change, previous_stock, new_stock, reason, created_at
		FROM inventory_history
		WHERE product_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory history: %w", err)
	}
	defer rows.Close()

	history := []domain.InventoryChange{}
	for rows.Next() {
		var c domain.InventoryChange
		var changeType string
		err := rows.Scan(
			&c.ID,
			&c.ProductID,
			&c.ChangedBy,
			&changeType,
			&c.QuantityChange,
			&c.PreviousStock,
			&c.NewStock,
			&c.Reason,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory change: %w", err)
		}
		c.ChangeType = domain.StockChangeType(changeType)
		history = append(history, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory history: %w", err)
	}

	return history, nil
}

func insertInventoryChange(ctx context.Context, tx *sql.Tx, change *domain.InventoryChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}

	query := `
		INSERT INTO inventory_history (id, product_id, changed_by, change_type, quantity_change, previous_stock, new_stock, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := tx.ExecContext(
		ctx,
		query,
		change.ID,
		change.ProductID,
		change.ChangedBy,
		string(change.ChangeType),
		change.QuantityChange,
		change.PreviousStock,
		change.NewStock,
		change.Reason,
		change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record inventory change: %w", err)
	}

	return nil
}
