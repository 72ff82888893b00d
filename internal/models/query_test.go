package models

import (
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name      string
		query     *SearchQuery
		wantErr   bool
		wantLimit int
	}{
		{"empty query", &SearchQuery{Query: ""}, true, 0},
		{"whitespace query", &SearchQuery{Query: "  \t"}, true, 0},
		{"valid query", &SearchQuery{Query: "grafos", Limit: 5}, false, 5},
		{"sets default limit", &SearchQuery{Query: "x", Limit: 0}, false, 10},
		{"negative limit", &SearchQuery{Query: "x", Limit: -3}, false, 10},
		{"caps limit at 100", &SearchQuery{Query: "x", Limit: 200}, false, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.query.Limit, tt.wantLimit)
			}
		})
	}
}

func TestSearchQuery_ValidateTrims(t *testing.T) {
	q := &SearchQuery{Query: "  algoritmos  "}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	if q.Query != "algoritmos" {
		t.Errorf("Query = %q, want trimmed", q.Query)
	}
}
