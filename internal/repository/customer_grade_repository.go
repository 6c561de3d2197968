package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"parts-depot/internal/domain"
)

var (
	ErrCustomerGradeNotFound = errors.New("customer grade not found")
)

// CustomerGradeRepository stores grades keyed by auth-provider user id.
type CustomerGradeRepository interface {
	Get(ctx context.Context, userID string) (*domain.CustomerGradeAssignment, error)
	// Set inserts or replaces the grade for assignment.UserID.
	Set(ctx context.Context, assignment *domain.CustomerGradeAssignment) error
	List(ctx context.Context) ([]domain.CustomerGradeAssignment, error)
}

type customerGradeRepository struct {
	db *sql.DB
}

func NewCustomerGradeRepository(db *sql.DB) CustomerGradeRepository {
	return &customerGradeRepository{db: db}
}

func (r *customerGradeRepository) Get(ctx context.Context, userID string) (*domain.CustomerGradeAssignment, error) {
	query := `
		SELECT user_id, grade, updated_by, updated_at
		FROM customer_grades
		WHERE user_id = $1
	`

	a := &domain.CustomerGradeAssignment{}
	var grade string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&a.UserID, &grade, &a.UpdatedBy, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCustomerGradeNotFound
		}
		return nil, fmt.Errorf("failed to find customer grade: %w", err)
	}
	a.Grade = domain.CustomerGrade(grade)

	return a, nil
}

func (r *customerGradeRepository) Set(ctx context.Context, assignment *domain.CustomerGradeAssignment) error {
	query := `
		INSERT INTO customer_grades (user_id, grade, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET grade = EXCLUDED.grade, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		assignment.UserID,
		string(assignment.Grade),
		assignment.UpdatedBy,
		assignment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set customer grade: %w", err)
	}

	return nil
}

func (r *customerGradeRepository) List(ctx context.Context) ([]domain.CustomerGradeAssignment, error) {
	query := `
		SELECT user_id, grade, updated_by, updated_at
		FROM customer_grades
		ORDER BY updated_at DESC, user_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer grades: %w", err)
	}
	defer rows.Close()

	grades := []domain.CustomerGradeAssignment{}
	for rows.Next() {
		var a domain.CustomerGradeAssignment
		var grade string
		if err := rows.Scan(&a.UserID, &grade, &a.UpdatedBy, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer grade: %w", err)
		}
		a.Grade = domain.CustomerGrade(grade)
		grades = append(grades, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating customer grades: %w", err)
	}

	return grades, nil
}
