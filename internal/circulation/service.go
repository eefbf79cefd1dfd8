// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"librarydesk/internal/catalog"
	"librarydesk/internal/membership"

	"github.com/shopspring/decimal"
)

// Service defines the interface for the circulation desk. It owns the
// books, patrons and loans; every operation either fully succeeds or
// leaves them unchanged.
type Service interface {
	RegisterBook(ctx context.Context, details catalog.Details) (int, error)
	RegisterPatron(ctx context.Context, profile membership.Profile) (int, error)
	Borrow(ctx context.Context, patronID, bookID int) (*Checkout, error)
	ReturnLoan(ctx context.Context, loanID int, now time.Time) (*ReturnReceipt, error)
	AssessFine(ctx context.Context, patronID int, amount decimal.Decimal) error
	SetPatronActive(ctx context.Context, patronID int, active bool) error

	Book(ctx context.Context, id int) (catalog.Summary, error)
	Patron(ctx context.Context, id int) (membership.Summary, error)
	Loan(ctx context.Context, id int) (Record, error)
	OpenLoans(ctx context.Context, patronID int) ([]Record, error)
	Search(ctx context.Context, term string) []catalog.Summary
	Report(ctx context.Context) Report
}

// Report aggregates the current state of the collections.
type Report struct {
	Titles          int             `json:"titles"`
	TotalCopies     int             `json:"total_copies"`
	AvailableCopies int             `json:"available_copies"`
	LentCopies      int             `json:"lent_copies"`
	Patrons         int             `json:"patrons"`
	ActivePatrons   int             `json:"active_patrons"`
	TotalFines      decimal.Decimal `json:"total_fines"`
	TotalLoans      int             `json:"total_loans"`
	OpenLoans       int             `json:"open_loans"`
	ClosedLoans     int             `json:"closed_loans"`
}
