// internal/demo/render.go
package demo

import (
	"fmt"
	"io"
	"strings"

	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
)

const (
	dateLayout   = "2006-01-02"
	receiptWidth = 38
)

// printer writes demo output and keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) section(title string) {
	p.printf("\n--- %s ---\n", title)
}

func (p *printer) checkout(c *circulation.Checkout) {
	p.printf("LENT: %q to %s (loan %d)\n", c.BookTitle, c.PatronName, c.LoanID)
	p.printf("Category: %s | Loan days: %d\n", c.Category, c.LoanDays)
	p.printf("Due: %s\n", c.DueAt.Format(dateLayout))
}

func (p *printer) rejection(err error) {
	p.printf("REJECTED: %v\n", err)
}

func (p *printer) receipt(r *circulation.ReturnReceipt) {
	border := strings.Repeat("=", receiptWidth)
	p.printf("+%s+\n", border)
	p.printf("| %-*s |\n", receiptWidth-2, "RETURN RECEIPT")
	p.printf("+%s+\n", border)
	p.printf("| %-*s |\n", receiptWidth-2, "Patron: "+r.PatronName)
	p.printf("| %-*s |\n", receiptWidth-2, "Book: "+r.BookTitle)
	p.printf("| %-*s |\n", receiptWidth-2, "Returned: "+r.ReturnedAt.Format(dateLayout))
	p.printf("| %-*s |\n", receiptWidth-2, fmt.Sprintf("Days overdue: %d", r.OverdueDays))
	p.printf("| %-*s |\n", receiptWidth-2, "Fine: "+r.Fine.StringFixed(2))
	p.printf("| %-*s |\n", receiptWidth-2, "Outstanding fines: "+r.OutstandingFines.StringFixed(2))
	p.printf("+%s+\n", border)
}

func (p *printer) search(term string, results []catalog.Summary) {
	p.printf("Search %q\n", term)
	for _, b := range results {
		state := "available"
		if b.Available == 0 {
			state = "unavailable"
		}
		p.printf("  [%d] %s by %s (%d, %s) %d/%d copies, %s, %s\n",
			b.ID, b.Title, b.Author, b.Year, b.Category,
			b.Available, b.TotalCopies, b.Price.StringFixed(2), state)
	}
	if len(results) == 0 {
		p.printf("  no books found\n")
		return
	}
	p.printf("  %d book(s) found\n", len(results))
}

func (p *printer) report(r circulation.Report) {
	p.printf("Collection: %d titles | %d copies | %d available | %d lent\n",
		r.Titles, r.TotalCopies, r.AvailableCopies, r.LentCopies)
	p.printf("Patrons: %d total | %d active | %s in fines\n",
		r.Patrons, r.ActivePatrons, r.TotalFines.StringFixed(2))
	p.printf("Loans: %d total | %d open | %d closed\n",
		r.TotalLoans, r.OpenLoans, r.ClosedLoans)
}
