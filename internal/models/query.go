package models

import (
	"fmt"
	"strings"
)

// SearchQuery is a page search request over the loaded corpus.
type SearchQuery struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit,omitempty"`
	Document string `json:"document,omitempty"` // restrict hits to one manifest name
	Fuzzy    bool   `json:"fuzzy,omitempty"`    // tolerate typos in query terms
}

// Validate trims the query and normalizes the limit to [1,100], defaulting to 10.
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
