// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidBook is returned when book details fail validation.
var ErrInvalidBook = errors.New("invalid book")

// Details describes a title being added to the catalog.
type Details struct {
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Year     int             `json:"year"`
	Copies   int             `json:"copies"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

// Validate reports whether the details can back a catalog entry.
func (d Details) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidBook)
	}
	if d.Copies < 0 {
		return fmt.Errorf("%w: copies must not be negative, got %d", ErrInvalidBook, d.Copies)
	}
	if d.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative, got %s", ErrInvalidBook, d.Price.StringFixed(2))
	}
	return nil
}

// Book is a title in the collection together with its copy counts.
// Only Borrow and Return change the available count.
type Book struct {
	id        int
	details   Details
	available int
}

// NewBook creates a book with every copy available.
func NewBook(id int, d Details) (*Book, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Book{id: id, details: d, available: d.Copies}, nil
}

func (b *Book) ID() int { return b.id }
func (b *Book) Title() string { return b.details.Title }
func (b *Book) Author() string { return b.details.Author }
func (b *Book) TotalCopies() int { return b.details.Copies }
func (b *Book) Available() int { return b.available }
func (b *Book) Details() Details { return b.details }
func (b *Book) HasAvailable() bool { return b.available > 0 }

// Borrow takes one copy off the shelf. It returns false and changes
// nothing when no copy is available.
func (b *Book) Borrow() bool {
	if b.available <= 0 {
		return false
	}
	b.available--
	return true
}

// Return puts one copy back. The caller guarantees a matching Borrow.
func (b *Book) Return() {
	b.available++
}

// Summary is a read-only view of a book.
type Summary struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Year        int             `json:"year"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	TotalCopies int             `json:"total_copies"`
	Available   int             `json:"available"`
}

// Summary returns a snapshot of the book.
func (b *Book) Summary() Summary {
	return Summary{
		ID:          b.id,
		Title:       b.details.Title,
		Author:      b.details.Author,
		Year:        b.details.Year,
		Category:    b.details.Category,
		Price:       b.details.Price,
		TotalCopies: b.details.Copies,
		Available:   b.available,
	}
}

// BookRegisteredEvent is recorded when a title enters the catalog.
type BookRegisteredEvent struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	TotalCopies int    `json:"total_copies"`
}

// RegisteredEvent returns the event describing the book's registration.
func (b *Book) RegisteredEvent() BookRegisteredEvent {
	return BookRegisteredEvent{
		ID:          b.id,
		Title:       b.details.Title,
		Author:      b.details.Author,
		TotalCopies: b.details.Copies,
	}
}
