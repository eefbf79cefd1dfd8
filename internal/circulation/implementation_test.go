package circulation

import (
	"context"
	"testing"
	"time"

	"librarydesk/internal/catalog"
	"librarydesk/internal/journal"
	"librarydesk/internal/membership"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) Service {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(opts...)
}

func registerBook(t *testing.T, svc Service, title string, copies int) int {
	t.Helper()
	id, err := svc.RegisterBook(context.Background(), catalog.Details{
		Title:    title,
		Author:   "Author of " + title,
		Year:     2000,
		Copies:   copies,
		Category: "fiction",
		Price:    decimal.RequireFromString("45.00"),
	})
	require.NoError(t, err)
	return id
}

func registerPatron(t *testing.T, svc Service, name string, category membership.Category) int {
	t.Helper()
	id, err := svc.RegisterPatron(context.Background(), membership.Profile{
		Name:       name,
		NationalID: "12345678901",
		Phone:      "48999999999",
		Category:   category,
	})
	require.NoError(t, err)
	return id
}

func TestRegisterAllocatesSequentialIDs(t *testing.T) {
	svc := newTestService(t)

	assert.Equal(t, 1, registerBook(t, svc, "Clean Code", 3))
	assert.Equal(t, 2, registerBook(t, svc, "1984", 2))
	assert.Equal(t, 1, registerPatron(t, svc, "Ana Silva", membership.Student))
	assert.Equal(t, 2, registerPatron(t, svc, "Carlos Santos", membership.Faculty))
}

func TestRegisterBookRejectsInvalidDetails(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RegisterBook(context.Background(), catalog.Details{Title: "Broken", Copies: -1})
	assert.ErrorIs(t, err, catalog.ErrInvalidBook)

	assert.Equal(t, 1, registerBook(t, svc, "Sapiens", 4))
	assert.Equal(t, 1, svc.Report(context.Background()).Titles)
}

func TestRegisterPatronRejectsUnknownCategory(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RegisterPatron(context.Background(), membership.Profile{Name: "Diego", Category: "visitor"})

	assert.ErrorIs(t, err, membership.ErrUnknownCategory)
	assert.Equal(t, 0, svc.Report(context.Background()).Patrons)
}

func TestStudentBorrowsAndReturnsLate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	bookID := registerBook(t, svc, "O Hobbit", 2)
	patronID := registerPatron(t, svc, "Ana Silva", membership.Student)

	checkout, err := svc.Borrow(ctx, patronID, bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, checkout.LoanID)
	assert.Equal(t, testNow.Add(14 * day), checkout.DueAt)
	assert.Equal(t, membership.Student, checkout.Category)
	assert.Equal(t, 14, checkout.LoanDays)
	assert.Equal(t, "O Hobbit", checkout.BookTitle)

	book, err := svc.Book(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, book.Available)

	receipt, err := svc.ReturnLoan(ctx, checkout.LoanID, checkout.DueAt.Add(5 * day))
	require.NoError(t, err)
	assert.Equal(t, "2.50", receipt.Fine.StringFixed(2))
	assert.Equal(t, int64(5), receipt.OverdueDays)
	assert.Equal(t, "2.50", receipt.OutstandingFines.StringFixed(2))
	assert.Equal(t, "Ana Silva", receipt.PatronName)
	assert.Equal(t, "O Hobbit", receipt.BookTitle)

	book, err = svc.Book(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 2, book.Available)

	_, err = svc.Borrow(ctx, patronID, bookID)
	var ineligible *IneligiblePatronError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, ReasonOutstandingFines, ineligible.Reason)
}

func TestReturnOnTimeChargesNothing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	bookID := registerBook(t, svc, "Clean Code", 3)
	patronID := registerPatron(t, svc, "Ana Silva", membership.Student)

	checkout, err := svc.Borrow(ctx, patronID, bookID)
	require.NoError(t, err)

	receipt, err := svc.ReturnLoan(ctx, checkout.LoanID, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, receipt.Fine.IsZero())
	assert.Equal(t, int64(0), receipt.OverdueDays)

	patron, err := svc.Patron(ctx, patronID)
	require.NoError(t, err)
	assert.True(t, patron.Fines.IsZero())

	_, err = svc.Borrow(ctx, patronID, bookID)
	assert.NoError(t, err)
}

func TestFacultyWithFineCannotBorrow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	bookID := registerBook(t, svc, "1984", 2)
	patronID := registerPatron(t, svc, "Carlos Santos", membership.Faculty)
	require.NoError(t, svc.AssessFine(ctx, patronID, decimal.RequireFromString("15.50")))

	checkout, err := svc.Borrow(ctx, patronID, bookID)

	assert.Nil(t, checkout)
	var ineligible *IneligiblePatronError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, ReasonOutstandingFines, ineligible.Reason)
	assert.Equal(t, "15.50", ineligible.Fines.StringFixed(2))
	assert.ErrorIs(t, err, ErrIneligiblePatron)

	report := svc.Report(ctx)
	assert.Equal(t, 0, report.TotalLoans)
	book, err := svc.Book(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 2, book.Available)
}

func TestInactivePatronCannotBorrow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	bookID := registerBook(t, svc, "Sapiens", 4)
	patronID := registerPatron(t, svc, "Beatriz Costa", membership.General)
	require.NoError(t, svc.SetPatronActive(ctx, patronID, false))
	require.NoError(t, svc.AssessFine(ctx, patronID, decimal.RequireFromString("1")))

	_, err := svc.Borrow(ctx, patronID, bookID)

	var ineligible *IneligiblePatronError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, ReasonInactive, ineligible.Reason)

	report := svc.Report(ctx)
	assert.Equal(t, 0, report.ActivePatrons)

	require.NoError(t, svc.SetPatronActive(ctx, patronID, true))
	_, err = svc.Borrow(ctx, patronID, bookID)
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, ReasonOutstandingFines, ineligible.Reason)
}

func TestBorrowUnknownIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	bookID := registerBook(t, svc, "Sapiens", 1)
	patronID := registerPatron(t, svc, "Ana Silva", membership.Student)

	testCases := []struct {
		name     string
		patronID int
		bookID   int
		entity   Entity
		id       int
	}{
		{"missing patron", 42, bookID, EntityPatron, 42},
		{"missing book", patronID, 42, EntityBook, 42},
		{"both missing", 41, 42, EntityPatron, 41},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Borrow(ctx, tt.patronID, tt.bookID)

			var notFound *NotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, tt.entity, notFound.Entity)
			assert.Equal(t, tt.id, notFound.ID)
		})
	}

	book, err := svc.Book(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, book.Available)
}

func TestBorrowingLimitPerCategory(t *testing.T) {
	testCases := []struct {
		category membership.Category
		limit    int
	}{
		{membership.Student, 3},
		{membership.Faculty, 5},
		{membership.General, 2},
	}

	for _, tt := range testCases {
		t.Run(tt.category.String(), func(t *testing.T) {
			ctx := context.Background()
			svc := newTestService(t)
			bookID := registerBook(t, svc, "Design Patterns", 10)
			patronID := registerPatron(t, svc, "Diego Souza", tt.category)

			for i := 0; i < tt.limit; i++ {
				_, err := svc.Borrow(ctx, patronID, bookID)
				require.NoError(t, err)
			}

			_, err := svc.Borrow(ctx, patronID, bookID)
			var limitErr *LimitExceededError
			require.ErrorAs(t, err, &limitErr)
			assert.Equal(t, tt.limit, limitErr.Limit)

			book, err := svc.Book(ctx, bookID)
			require.NoError(t, err)
			assert.Equal(t, 10-tt.limit, book.Available)

			open, err := svc.OpenLoans(ctx, patronID)
			require.NoError(t, err)
			assert.Len(t, open, tt.limit)

			_, err = svc.ReturnLoan(ctx, open[0].ID, testNow)
			require.NoError(t, err)
			_, err = svc.Borrow(ctx, patronID, bookID)
			assert.NoError(t, err)
		})
	}
}

func TestThirdBorrowOfTwoCopyBookIsUnavailable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	bookID := registerBook(t, svc, "Design Patterns", 2)
	first := registerPatron(t, svc, "Ana Silva", membership.Student)
	second := registerPatron(t, svc, "Beatriz Costa", membership.General)
	third := registerPatron(t, svc, "Diego Souza", membership.Faculty)

	_, err := svc.Borrow(ctx, first, bookID)
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, second, bookID)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, third, bookID)

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, bookID, unavailable.BookID)
	book, err := svc.Book(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 0, book.Available)
	assert.Equal(t, 2, svc.Report(ctx).OpenLoans)
}

func TestDoubleReturnIsRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	bookID := registerBook(t, svc, "1984", 1)
	patronID := registerPatron(t, svc, "Beatriz Costa", membership.General)

	checkout, err := svc.Borrow(ctx, patronID, bookID)
	require.NoError(t, err)
	late := checkout.DueAt.Add(2 * day)
	_, err = svc.ReturnLoan(ctx, checkout.LoanID, late)
	require.NoError(t, err)

	receipt, err := svc.ReturnLoan(ctx, checkout.LoanID, late.Add(30 * day))

	assert.Nil(t, receipt)
	var already *AlreadyReturnedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, checkout.LoanID, already.LoanID)

	patron, err := svc.Patron(ctx, patronID)
	require.NoError(t, err)
	assert.Equal(t, "1.00", patron.Fines.StringFixed(2))
	book, err := svc.Book(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, book.Available)

	loan, err := svc.Loan(ctx, checkout.LoanID)
	require.NoError(t, err)
	assert.Equal(t, "1.00", loan.FineCharged.StringFixed(2))
	assert.Equal(t, late, loan.ReturnedAt)
	assert.Equal(t, 2, loan.Version)
}

func TestReturnUnknownLoan(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ReturnLoan(context.Background(), 7, testNow)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, EntityLoan, notFound.Entity)
	assert.Equal(t, 7, notFound.ID)
}

func TestLookupsOfUnknownIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Book(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Patron(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Loan(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.OpenLoans(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.SetPatronActive(ctx, 1, false), ErrNotFound)
	assert.ErrorIs(t, svc.AssessFine(ctx, 1, decimal.NewFromInt(1)), ErrNotFound)
}

func TestAssessFineRequiresPositiveAmount(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	patronID := registerPatron(t, svc, "Ana Silva", membership.Student)

	assert.ErrorIs(t, svc.AssessFine(ctx, patronID, decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, svc.AssessFine(ctx, patronID, decimal.NewFromInt(-3)), ErrInvalidAmount)

	patron, err := svc.Patron(ctx, patronID)
	require.NoError(t, err)
	assert.True(t, patron.Fines.IsZero())
}

func TestSearchAndReport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	code := registerBook(t, svc, "Clean Code", 3)
	registerBook(t, svc, "1984", 2)
	coder := registerBook(t, svc, "The Clean Coder", 1)
	ana := registerPatron(t, svc, "Ana Silva", membership.Student)
	carlos := registerPatron(t, svc, "Carlos Santos", membership.Faculty)
	require.NoError(t, svc.AssessFine(ctx, carlos, decimal.RequireFromString("15.50")))

	first, err := svc.Borrow(ctx, ana, code)
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, ana, coder)
	require.NoError(t, err)
	_, err = svc.ReturnLoan(ctx, first.LoanID, first.DueAt.Add(day))
	require.NoError(t, err)

	results := svc.Search(ctx, "CLEAN")
	require.Len(t, results, 2)
	assert.Equal(t, code, results[0].ID)
	assert.Equal(t, 3, results[0].Available)
	assert.Equal(t, coder, results[1].ID)
	assert.Equal(t, 0, results[1].Available)
	assert.Empty(t, svc.Search(ctx, "tolkien"))

	report := svc.Report(ctx)
	assert.Equal(t, 3, report.Titles)
	assert.Equal(t, 6, report.TotalCopies)
	assert.Equal(t, 5, report.AvailableCopies)
	assert.Equal(t, 1, report.LentCopies)
	assert.Equal(t, 2, report.Patrons)
	assert.Equal(t, 2, report.ActivePatrons)
	assert.Equal(t, "16.00", report.TotalFines.StringFixed(2))
	assert.Equal(t, 2, report.TotalLoans)
	assert.Equal(t, 1, report.OpenLoans)
	assert.Equal(t, 1, report.ClosedLoans)
}

func TestEventsAreJournaled(t *testing.T) {
	ctx := context.Background()
	j := journal.New()
	svc := newTestService(t, WithJournal(j))
	bookID := registerBook(t, svc, "Clean Code", 1)
	patronID := registerPatron(t, svc, "Ana Silva", membership.Student)
	require.NoError(t, svc.SetPatronActive(ctx, patronID, false))
	require.NoError(t, svc.SetPatronActive(ctx, patronID, false))
	require.NoError(t, svc.SetPatronActive(ctx, patronID, true))

	checkout, err := svc.Borrow(ctx, patronID, bookID)
	require.NoError(t, err)
	_, err = svc.ReturnLoan(ctx, checkout.LoanID, checkout.DueAt.Add(time.Hour))
	require.NoError(t, err)

	var types []string
	for _, e := range j.Stream(ctx, 0, 0) {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		EventBookRegistered,
		EventPatronRegistered,
		EventPatronStatusChanged,
		EventPatronStatusChanged,
		EventLoanOpened,
		EventLoanClosed,
	}, types)

	loanEvents := j.Load(ctx, aggregateLoan, "1", 0, 0)
	require.Len(t, loanEvents, 2)
	var closed LoanClosedEvent
	require.NoError(t, loanEvents[1].Decode(&closed))
	assert.Equal(t, int64(1), closed.OverdueDays)
	assert.Equal(t, "0.50", closed.Fine.StringFixed(2))
}

func TestFailedCheckoutRecordIsCompensated(t *testing.T) {
	ctx := context.Background()
	j := journal.New()
	stale, err := journal.NewEvent(EventLoanOpened, LoanOpenedEvent{LoanID: 1})
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, aggregateLoan, "1", 0, stale))

	svc := newTestService(t, WithJournal(j))
	bookID := registerBook(t, svc, "Clean Code", 1)
	patronID := registerPatron(t, svc, "Ana Silva", membership.Student)

	_, err = svc.Borrow(ctx, patronID, bookID)

	assert.ErrorIs(t, err, journal.ErrConcurrencyConflict)
	book, err := svc.Book(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, book.Available)
	assert.Equal(t, 0, svc.Report(ctx).TotalLoans)
}

func TestRegistrationLimiter(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, WithRegistrationLimiter(rate.NewLimiter(rate.Every(time.Hour), 2)))

	registerBook(t, svc, "Clean Code", 1)
	registerPatron(t, svc, "Ana Silva", membership.Student)

	_, err := svc.RegisterBook(ctx, catalog.Details{Title: "1984", Copies: 2})
	assert.ErrorIs(t, err, ErrRateLimited)
	_, err = svc.RegisterPatron(ctx, membership.Profile{Name: "Carlos", Category: membership.Faculty})
	assert.ErrorIs(t, err, ErrRateLimited)

	report := svc.Report(ctx)
	assert.Equal(t, 1, report.Titles)
	assert.Equal(t, 1, report.Patrons)
}
