package keyword

import (
	"sort"
	"strings"
)

// Speller suggests corrections for query terms absent from the index.
type Speller struct {
	terms       map[string]int
	maxDistance int
}

// NewSpeller loads the term dictionary once. The speller is tied to the index
// state at creation time.
func NewSpeller(dict TermDictionary, maxDistance int) (*Speller, error) {
	terms, err := dict.Terms()
	if err != nil {
		return nil, err
	}
	if maxDistance <= 0 {
		maxDistance = 2
	}
	return &Speller{terms: terms, maxDistance: maxDistance}, nil
}

// Correct returns the query with each unknown term replaced by its best
// suggestion, and whether anything changed.
func (s *Speller) Correct(query string) (string, bool) {
	terms := tokenizeQuery(query)
	changed := false
	for i, term := range terms {
		if _, ok := s.terms[term]; ok {
			continue
		}
		if best := s.Suggest(term); len(best) > 0 {
			terms[i] = best[0]
			changed = true
		}
	}
	return strings.Join(terms, " "), changed
}

// Suggest returns dictionary terms within the edit distance, closest and most
// frequent first.
func (s *Speller) Suggest(term string) []string {
	term = strings.ToLower(term)
	type candidate struct {
		term     string
		distance int
		freq     int
	}
	var found []candidate
	n := len([]rune(term))
	for t, freq := range s.terms {
		if t == term {
			continue
		}
		diff := len([]rune(t)) - n
		if diff < 0 {
			diff = -diff
		}
		if diff > s.maxDistance {
			continue
		}
		if d := levenshtein(term, t); d <= s.maxDistance {
			found = append(found, candidate{term: t, distance: d, freq: freq})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].distance != found[j].distance {
			return found[i].distance < found[j].distance
		}
		if found[i].freq != found[j].freq {
			return found[i].freq > found[j].freq
		}
		return found[i].term < found[j].term
	})
	out := make([]string, len(found))
	for i, c := range found {
		out[i] = c.term
	}
	return out
}

// levenshtein is the rune-level edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
