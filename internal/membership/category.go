// internal/membership/category.go
package membership

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a category name is not recognised.
var ErrUnknownCategory = errors.New("unknown patron category")

// Category determines a patron's lending policy.
type Category string

const (
	Student Category = "student"
	Faculty Category = "faculty"
	General Category = "general"
)

// Policy is the lending rule set attached to a category.
type Policy struct {
	BorrowingLimit   int
	LoanDurationDays int
}

var policies = map[Category]Policy{
	Student: {BorrowingLimit: 3, LoanDurationDays: 14},
	Faculty: {BorrowingLimit: 5, LoanDurationDays: 30},
	General: {BorrowingLimit: 2, LoanDurationDays: 7},
}

// Categories lists every known category.
func Categories() []Category {
	return []Category{Student, Faculty, General}
}

// Policy returns the lending policy for c. Registration rejects unknown
// categories, so the General fallback only serves the zero Category of a
// Patron or Profile built without one.
func (c Category) Policy() Policy {
	if p, ok := policies[c]; ok {
		return p
	}
	return policies[General]
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := policies[c]
	return ok
}

func (c Category) String() string { return string(c) }

// ParseCategory converts a case-insensitive name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}
