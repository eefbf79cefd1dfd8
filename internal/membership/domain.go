// internal/membership/domain.go
package membership

import (
	"github.com/shopspring/decimal"
)

// Profile holds the identifying details of a patron.
type Profile struct {
	Name       string   `json:"name"`
	NationalID string   `json:"national_id"`
	Phone      string   `json:"phone"`
	Category   Category `json:"category"`
}

// Patron is a registered library user. Fines only ever grow; there is no
// payment operation.
type Patron struct {
	id      int
	profile Profile
	active  bool
	fines   decimal.Decimal
}

// NewPatron creates an active patron with no fines.
func NewPatron(id int, p Profile) *Patron {
	return &Patron{id: id, profile: p, active: true, fines: decimal.Zero}
}

func (p *Patron) ID() int { return p.id }
func (p *Patron) Name() string { return p.profile.Name }
func (p *Patron) Category() Category { return p.profile.Category }
func (p *Patron) Active() bool { return p.active }
func (p *Patron) Fines() decimal.Decimal { return p.fines }

// BorrowingLimit is the maximum number of simultaneously open loans.
func (p *Patron) BorrowingLimit() int {
	return p.profile.Category.Policy().BorrowingLimit
}

// LoanDurationDays is the number of days a loan runs before it is overdue.
func (p *Patron) LoanDurationDays() int {
	return p.profile.Category.Policy().LoanDurationDays
}

// IsEligible reports whether the patron may open a new loan. Any
// outstanding fine, however small, blocks borrowing.
func (p *Patron) IsEligible() bool {
	return p.active && p.fines.IsZero()
}

// ChargeFine adds amount to the outstanding fines. Non-positive amounts are ignored.
func (p *Patron) ChargeFine(amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	p.fines = p.fines.Add(amount)
}

func (p *Patron) Activate() { p.active = true }
func (p *Patron) Deactivate() { p.active = false }

// Summary is a read-only view of a patron.
type Summary struct {
	ID               int             `json:"id"`
	Name             string          `json:"name"`
	NationalID       string          `json:"national_id"`
	Phone            string          `json:"phone"`
	Category         Category        `json:"category"`
	Active           bool            `json:"active"`
	Fines            decimal.Decimal `json:"fines"`
	BorrowingLimit   int             `json:"borrowing_limit"`
	LoanDurationDays int             `json:"loan_duration_days"`
}

// Summary returns a snapshot of the patron.
func (p *Patron) Summary() Summary {
	policy := p.profile.Category.Policy()
	return Summary{
		ID:               p.id,
		Name:             p.profile.Name,
		NationalID:       p.profile.NationalID,
		Phone:            p.profile.Phone,
		Category:         p.profile.Category,
		Active:           p.active,
		Fines:            p.fines,
		BorrowingLimit:   policy.BorrowingLimit,
		LoanDurationDays: policy.LoanDurationDays,
	}
}

// PatronRegisteredEvent is recorded when a new patron registers.
type PatronRegisteredEvent struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// FineAssessedEvent is recorded when a fine is charged outside a return.
type FineAssessedEvent struct {
	ID     int             `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Total  decimal.Decimal `json:"total"`
}

// StatusChangedEvent is recorded when a patron is activated or deactivated.
type StatusChangedEvent struct {
	ID     int  `json:"id"`
	Active bool `json:"active"`
}
