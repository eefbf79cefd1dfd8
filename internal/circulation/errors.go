// internal/circulation/errors.go
package circulation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrIneligiblePatron = errors.New("patron is not eligible to borrow")
	ErrLimitExceeded    = errors.New("borrowing limit reached")
	ErrUnavailable      = errors.New("no copies available")
	ErrAlreadyReturned  = errors.New("loan already returned")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// Entity names the kind of record a lookup refers to.
type Entity string

const (
	EntityPatron Entity = "patron"
	EntityBook   Entity = "book"
	EntityLoan   Entity = "loan"
)

// NotFoundError reports a lookup of an id that does not exist.
type NotFoundError struct {
	Entity Entity
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IneligibilityReason explains why a patron may not borrow.
type IneligibilityReason string

const (
	ReasonInactive         IneligibilityReason = "inactive"
	ReasonOutstandingFines IneligibilityReason = "outstanding_fines"
)

// IneligiblePatronError reports a borrow attempt by a patron who is
// inactive or owes fines.
type IneligiblePatronError struct {
	PatronID int
	Reason   IneligibilityReason
	Fines    decimal.Decimal
}

func (e *IneligiblePatronError) Error() string {
	if e.Reason == ReasonInactive {
		return fmt.Sprintf("patron %d is inactive", e.PatronID)
	}
	return fmt.Sprintf("patron %d has outstanding fines of %s", e.PatronID, e.Fines.StringFixed(2))
}

func (e *IneligiblePatronError) Is(target error) bool { return target == ErrIneligiblePatron }

// LimitExceededError reports a patron already holding as many open loans
// as their category allows.
type LimitExceededError struct {
	PatronID int
	Limit    int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("patron %d has reached the limit of %d loans", e.PatronID, e.Limit)
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// UnavailableError reports a book with no copies left on the shelf.
type UnavailableError struct {
	BookID int
	Title  string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("book %d (%q) has no copies available", e.BookID, e.Title)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// AlreadyReturnedError reports a second return of the same loan.
type AlreadyReturnedError struct {
	LoanID int
}

func (e *AlreadyReturnedError) Error() string {
	return fmt.Sprintf("loan %d has already been returned", e.LoanID)
}

func (e *AlreadyReturnedError) Is(target error) bool { return target == ErrAlreadyReturned }

// reason maps an error to a short label for metrics and logs.
func reason(err error) string {
	var ineligible *IneligiblePatronError
	switch {
	case errors.As(err, &ineligible):
		return string(ineligible.Reason)
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrAlreadyReturned):
		return "already_returned"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}
