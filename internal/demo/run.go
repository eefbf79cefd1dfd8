// internal/demo/run.go
package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/membership"

	"github.com/shopspring/decimal"
)

// ErrUnexpectedOutcome is returned when a scripted step does not turn out
// the way the script expects.
var ErrUnexpectedOutcome = errors.New("unexpected demo outcome")

const day = 24 * time.Hour

// Run walks a seeded service through the demo scenario and writes every
// checkout, rejection and receipt to w.
func Run(ctx context.Context, svc circulation.Service, w io.Writer) error {
	p := &printer{w: w}
	if err := run(ctx, svc, p); err != nil {
		return err
	}
	return p.err
}

func run(ctx context.Context, svc circulation.Service, p *printer) error {
	// Step 1: A student borrows a book
	p.section("Student borrows Clean Code")
	first, err := svc.Borrow(ctx, 1, 1)
	if err != nil {
		return fmt.Errorf("%w: first checkout: %w", ErrUnexpectedOutcome, err)
	}
	p.checkout(first)

	// Step 2: A patron with an outstanding fine is turned away
	p.section("Faculty member with a fine tries to borrow 1984")
	if err := expectRejection(ctx, svc, p, 2, 2, circulation.ErrIneligiblePatron); err != nil {
		return err
	}

	// Step 3: Search the catalog
	p.section("Search the catalog")
	p.search("code", svc.Search(ctx, "code"))

	// Step 4: Return on time
	p.section("Return on time")
	receipt, err := svc.ReturnLoan(ctx, first.LoanID, first.BorrowedAt.Add(3 * day))
	if err != nil {
		return fmt.Errorf("%w: on-time return: %w", ErrUnexpectedOutcome, err)
	}
	p.receipt(receipt)

	// Step 5: Return five days late
	p.section("Return five days late")
	late, err := svc.Borrow(ctx, 1, 4)
	if err != nil {
		return fmt.Errorf("%w: second checkout: %w", ErrUnexpectedOutcome, err)
	}
	p.checkout(late)
	receipt, err = svc.ReturnLoan(ctx, late.LoanID, late.DueAt.Add(5 * day))
	if err != nil {
		return fmt.Errorf("%w: late return: %w", ErrUnexpectedOutcome, err)
	}
	p.receipt(receipt)

	// Step 6: The fresh fine blocks the next borrow
	p.section("Student with a fresh fine tries to borrow 1984")
	if err := expectRejection(ctx, svc, p, 1, 2, circulation.ErrIneligiblePatron); err != nil {
		return err
	}

	// Step 7: Returning the same loan again is refused
	p.section("Return the same loan again")
	_, err = svc.ReturnLoan(ctx, late.LoanID, late.DueAt.Add(6 * day))
	if !errors.Is(err, circulation.ErrAlreadyReturned) {
		return fmt.Errorf("%w: double return gave %v", ErrUnexpectedOutcome, err)
	}
	p.rejection(err)

	// Step 8: Grow the collection and membership
	p.section("Register a new book and a new patron")
	bookID, err := svc.RegisterBook(ctx, catalog.Details{
		Title:    "Design Patterns",
		Author:   "Gang of Four",
		Year:     1994,
		Copies:   2,
		Category: "tecnologia",
		Price:    decimal.RequireFromString("120.00"),
	})
	if err != nil {
		return fmt.Errorf("%w: register book: %w", ErrUnexpectedOutcome, err)
	}
	p.printf("Book %q registered (ID %d)\n", "Design Patterns", bookID)

	patronID, err := svc.RegisterPatron(ctx, membership.Profile{
		Name:       "Diego Souza",
		NationalID: "55566677788",
		Phone:      "48966666666",
		Category:   membership.Student,
	})
	if err != nil {
		return fmt.Errorf("%w: register patron: %w", ErrUnexpectedOutcome, err)
	}
	p.printf("Patron %q (%s) registered (ID %d)\n", "Diego Souza", membership.Student, patronID)

	// Step 9: Report
	p.section("Library report")
	p.report(svc.Report(ctx))
	return nil
}

func expectRejection(ctx context.Context, svc circulation.Service, p *printer, patronID, bookID int, want error) error {
	checkout, err := svc.Borrow(ctx, patronID, bookID)
	if err == nil {
		return fmt.Errorf("%w: patron %d was lent %q", ErrUnexpectedOutcome, patronID, checkout.BookTitle)
	}
	if !errors.Is(err, want) {
		return fmt.Errorf("%w: %w", ErrUnexpectedOutcome, err)
	}
	p.rejection(err)
	return nil
}
