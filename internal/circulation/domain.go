// internal/circulation/domain.go
package circulation

import (
	"time"

	"librarydesk/internal/catalog"
	"librarydesk/internal/membership"

	"github.com/shopspring/decimal"
)

// DailyFineRate is charged for every started day a loan is overdue.
var DailyFineRate = decimal.RequireFromString("0.50")

const day = 24 * time.Hour

const (
	statusActive   = "active"
	statusReturned = "returned"
)

// Loan binds one patron to one borrowed copy of a book. The patron and
// book are owned by the service; the loan only refers to them.
type Loan struct {
	id          int
	patron      *membership.Patron
	book        *catalog.Book
	borrowedAt  time.Time
	dueAt       time.Time
	returned    bool
	returnedAt  time.Time
	fineCharged decimal.Decimal
	version     int
}

// newLoan opens a loan for a patron and book that have already been
// validated and whose copy has already been taken off the shelf.
func newLoan(id int, patron *membership.Patron, book *catalog.Book, borrowedAt time.Time) *Loan {
	return &Loan{
		id:          id,
		patron:      patron,
		book:        book,
		borrowedAt:  borrowedAt,
		dueAt:       borrowedAt.Add(time.Duration(patron.LoanDurationDays()) * day),
		fineCharged: decimal.Zero,
	}
}

func (l *Loan) ID() int { return l.id }
func (l *Loan) DueAt() time.Time { return l.dueAt }
func (l *Loan) Returned() bool { return l.returned }

// OverdueDays counts the 24-hour days between the due date and now,
// rounding any partial day up. It is zero when now is not after the due date.
func (l *Loan) OverdueDays(now time.Time) int64 {
	if !now.After(l.dueAt) {
		return 0
	}
	late := now.Sub(l.dueAt)
	days := int64(late / day)
	if late%day != 0 {
		days++
	}
	return days
}

// FineAt is the fine a return at now would charge.
func (l *Loan) FineAt(now time.Time) decimal.Decimal {
	return DailyFineRate.Mul(decimal.NewFromInt(l.OverdueDays(now)))
}

// CloseReturn marks the loan returned at now, puts the copy back and
// charges the patron for any overdue days. It returns the fine charged.
func (l *Loan) CloseReturn(now time.Time) (decimal.Decimal, error) {
	if l.returned {
		return decimal.Zero, &AlreadyReturnedError{LoanID: l.id}
	}

	l.returned = true
	l.returnedAt = now
	l.book.Return()

	fine := l.FineAt(now)
	if fine.IsPositive() {
		l.patron.ChargeFine(fine)
	}
	l.fineCharged = fine
	return fine, nil
}

// Record is a read-only view of a loan.
type Record struct {
	ID          int             `json:"id"`
	PatronID    int             `json:"patron_id"`
	BookID      int             `json:"book_id"`
	BorrowedAt  time.Time       `json:"borrowed_at"`
	DueAt       time.Time       `json:"due_at"`
	ReturnedAt  time.Time       `json:"returned_at,omitempty"`
	FineCharged decimal.Decimal `json:"fine_charged"`
	Status      string          `json:"status"`
	Version     int             `json:"version"`
}

// Record returns a snapshot of the loan.
func (l *Loan) Record() Record {
	status := statusActive
	if l.returned {
		status = statusReturned
	}
	return Record{
		ID:          l.id,
		PatronID:    l.patron.ID(),
		BookID:      l.book.ID(),
		BorrowedAt:  l.borrowedAt,
		DueAt:       l.dueAt,
		ReturnedAt:  l.returnedAt,
		FineCharged: l.fineCharged,
		Status:      status,
		Version:     l.version,
	}
}

// Checkout is the outcome of a successful borrow.
type Checkout struct {
	LoanID     int                 `json:"loan_id"`
	PatronID   int                 `json:"patron_id"`
	PatronName string              `json:"patron_name"`
	Category   membership.Category `json:"category"`
	LoanDays   int                 `json:"loan_days"`
	BookID     int                 `json:"book_id"`
	BookTitle  string              `json:"book_title"`
	BorrowedAt time.Time           `json:"borrowed_at"`
	DueAt      time.Time           `json:"due_at"`
}

func (l *Loan) checkout() *Checkout {
	return &Checkout{
		LoanID:     l.id,
		PatronID:   l.patron.ID(),
		PatronName: l.patron.Name(),
		Category:   l.patron.Category(),
		LoanDays:   l.patron.LoanDurationDays(),
		BookID:     l.book.ID(),
		BookTitle:  l.book.Title(),
		BorrowedAt: l.borrowedAt,
		DueAt:      l.dueAt,
	}
}

// ReturnReceipt is the outcome of a successful return.
type ReturnReceipt struct {
	LoanID           int             `json:"loan_id"`
	PatronID         int             `json:"patron_id"`
	PatronName       string          `json:"patron_name"`
	BookID           int             `json:"book_id"`
	BookTitle        string          `json:"book_title"`
	ReturnedAt       time.Time       `json:"returned_at"`
	OverdueDays      int64           `json:"overdue_days"`
	Fine             decimal.Decimal `json:"fine"`
	OutstandingFines decimal.Decimal `json:"outstanding_fines"`
}

const (
	EventBookRegistered      = "BookRegistered"
	EventPatronRegistered    = "PatronRegistered"
	EventPatronStatusChanged = "PatronStatusChanged"
	EventFineAssessed        = "FineAssessed"
	EventLoanOpened          = "LoanOpened"
	EventLoanClosed          = "LoanClosed"
)

const (
	aggregateBook   = "book"
	aggregatePatron = "patron"
	aggregateLoan   = "loan"
)

// LoanOpenedEvent is recorded when a book is lent.
type LoanOpenedEvent struct {
	LoanID     int       `json:"loan_id"`
	PatronID   int       `json:"patron_id"`
	BookID     int       `json:"book_id"`
	BorrowedAt time.Time `json:"borrowed_at"`
	DueAt      time.Time `json:"due_at"`
}

// LoanClosedEvent is recorded when a book comes back.
type LoanClosedEvent struct {
	LoanID      int             `json:"loan_id"`
	PatronID    int             `json:"patron_id"`
	BookID      int             `json:"book_id"`
	ReturnedAt  time.Time       `json:"returned_at"`
	OverdueDays int64           `json:"overdue_days"`
	Fine        decimal.Decimal `json:"fine"`
}
