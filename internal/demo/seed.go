// internal/demo/seed.go
package demo

import (
	"context"
	"fmt"

	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/membership"

	"github.com/shopspring/decimal"
)

// Books is the starting collection of the demo desk.
var Books = []catalog.Details{
	{Title: "Clean Code", Author: "Robert Martin", Year: 2008, Copies: 3, Category: "tecnologia", Price: decimal.RequireFromString("89.90")},
	{Title: "1984", Author: "George Orwell", Year: 1949, Copies: 2, Category: "ficcao", Price: decimal.RequireFromString("45.00")},
	{Title: "Sapiens", Author: "Yuval Harari", Year: 2011, Copies: 4, Category: "historia", Price: decimal.RequireFromString("65.50")},
	{Title: "O Hobbit", Author: "Tolkien", Year: 1937, Copies: 2, Category: "fantasia", Price: decimal.RequireFromString("55.00")},
}

// Member is a seeded patron along with any fine they start out owing.
type Member struct {
	Profile membership.Profile
	Fine    decimal.Decimal
}

// Members are the starting patrons of the demo desk.
var Members = []Member{
	{Profile: membership.Profile{Name: "Ana Silva", NationalID: "12345678901", Phone: "48999999999", Category: membership.Student}},
	{Profile: membership.Profile{Name: "Carlos Santos", NationalID: "98765432100", Phone: "48988888888", Category: membership.Faculty}, Fine: decimal.RequireFromString("15.50")},
	{Profile: membership.Profile{Name: "Beatriz Costa", NationalID: "11122233344", Phone: "48977777777", Category: membership.General}},
}

// Seed registers Books and Members on an empty service, so the books get
// IDs 1 to 4 and the patrons IDs 1 to 3.
func Seed(ctx context.Context, svc circulation.Service) error {
	for _, d := range Books {
		if _, err := svc.RegisterBook(ctx, d); err != nil {
			return fmt.Errorf("failed to seed book %q: %w", d.Title, err)
		}
	}

	for _, m := range Members {
		id, err := svc.RegisterPatron(ctx, m.Profile)
		if err != nil {
			return fmt.Errorf("failed to seed patron %q: %w", m.Profile.Name, err)
		}
		if m.Fine.IsPositive() {
			if err := svc.AssessFine(ctx, id, m.Fine); err != nil {
				return fmt.Errorf("failed to seed fine for %q: %w", m.Profile.Name, err)
			}
		}
	}
	return nil
}
