package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parts-depot/internal/domain"
	"parts-depot/internal/repository"
)

var (
	ErrInvalidCustomerGrade = errors.New("invalid customer grade")
)

type CustomerGradeService interface {
	List(ctx context.Context) ([]domain.CustomerGradeAssignment, error)
	Get(ctx context.Context, userID string) (*domain.CustomerGradeAssignment, error)
	Set(ctx context.Context, userID string, grade domain.CustomerGrade, actor string) (*domain.CustomerGradeAssignment, error)
}

type customerGradeService struct {
	gradeRepo repository.CustomerGradeRepository
}

func NewCustomerGradeService(gradeRepo repository.CustomerGradeRepository) CustomerGradeService {
	return &customerGradeService{gradeRepo: gradeRepo}
}

func (s *customerGradeService) List(ctx context.Context) ([]domain.CustomerGradeAssignment, error) {
	return s.gradeRepo.List(ctx)
}

func (s *customerGradeService) Get(ctx context.Context, userID string) (*domain.CustomerGradeAssignment, error) {
	return s.gradeRepo.Get(ctx, userID)
}

func (s *customerGradeService) Set(ctx context.Context, userID string, grade domain.CustomerGrade, actor string) (*domain.CustomerGradeAssignment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidCustomerGrade)
	}
	if _, err := domain.ParseCustomerGrade(string(grade)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCustomerGrade, err)
	}

	assignment := &domain.CustomerGradeAssignment{
		UserID:    userID,
		Grade:     grade,
		UpdatedBy: actor,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.gradeRepo.Set(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to set customer grade: %w", err)
	}
	return assignment, nil
}
