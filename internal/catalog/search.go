// internal/catalog/search.go
package catalog

import "strings"

// Matches reports whether term occurs in the title or author, ignoring case.
func (b *Book) Matches(term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(b.details.Title), term) ||
		strings.Contains(strings.ToLower(b.details.Author), term)
}

// Search returns summaries of the books matching term, in the order given.
func Search(books []*Book, term string) []Summary {
	results := make([]Summary, 0)
	for _, b := range books {
		if b.Matches(term) {
			results = append(results, b.Summary())
		}
	}
	return results
}
