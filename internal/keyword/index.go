// Package keyword provides page-level keyword search over the loaded corpus.
package keyword

import (
	"context"
)

// Page is one indexed document page.
type Page struct {
	Document string `json:"document"`
	Number   int    `json:"page"`
	Content  string `json:"content"`
}

// SearchOptions optional parameters for page search. Nil means use defaults.
type SearchOptions struct {
	// Document restricts hits to pages of one manifest entry.
	Document string
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// PageIndex defines page indexing and search operations.
type PageIndex interface {
	IndexPages(ctx context.Context, pages []Page) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, uint64, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single page hit.
type Result struct {
	ID        string
	Document  string
	Page      int
	Score     float64
	Fragments []string
}

// TermDictionary provides access to the term dictionary for spell checking.
type TermDictionary interface {
	// Terms returns every indexed content term with its document frequency.
	Terms() (map[string]int, error)
}
