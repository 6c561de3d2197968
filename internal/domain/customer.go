package domain

import (
	"fmt"
	"time"
)

// CustomerGrade is the coarse customer tier used for flat display discounts.
type CustomerGrade string

const (
	GradeA CustomerGrade = "A"
	GradeB CustomerGrade = "B"
	GradeC CustomerGrade = "C"
)

// ParseCustomerGrade converts s into a CustomerGrade.
func ParseCustomerGrade(s string) (CustomerGrade, error) {
	switch g := CustomerGrade(s); g {
	case GradeA, GradeB, GradeC:
		return g, nil
	default:
		return "", fmt.Errorf("unknown customer grade %q", s)
	}
}

// CustomerGradeAssignment records the grade an administrator gave a customer.
// UserID is the identifier issued by the external auth provider.
type CustomerGradeAssignment struct {
	UserID    string        `json:"user_id" db:"user_id"`
	Grade     CustomerGrade `json:"grade" db:"grade"`
	UpdatedBy string        `json:"updated_by" db:"updated_by"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}
