package keyword

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/hyperjump/examchat/internal/corpus"
	"github.com/hyperjump/examchat/internal/models"
)

// CorpusSource provides the current corpus.
type CorpusSource interface {
	Corpus() *corpus.Corpus
}

// Searcher answers page searches over whatever corpus the source currently
// holds, rebuilding its index when the corpus is reloaded.
type Searcher struct {
	source CorpusSource
	logger *zap.Logger

	mu      sync.Mutex
	built   *corpus.Corpus
	index   *BleveIndex
	speller *Speller
}

// NewSearcher creates a searcher. The index is built lazily on first search.
func NewSearcher(source CorpusSource, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{source: source, logger: logger}
}

// Search runs a page search. When an exact search finds nothing, it retries
// with fuzzy matching and reports spelling suggestions.
func (s *Searcher) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}
	index, speller, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	opts := &SearchOptions{Document: query.Document, FuzzyEnabled: query.Fuzzy}
	results, total, err := index.Search(ctx, query.Query, query.Limit, opts)
	if err != nil {
		return nil, err
	}

	resp := &models.SearchResponse{Query: query.Query}
	if total == 0 && !query.Fuzzy {
		if corrected, ok := speller.Correct(query.Query); ok {
			resp.Suggestions = []string{corrected}
		}
		opts.FuzzyEnabled = true
		results, total, err = index.Search(ctx, query.Query, query.Limit, opts)
		if err != nil {
			return nil, err
		}
		resp.AutoFuzzy = total > 0
	}

	resp.Hits = make([]*models.SearchHit, len(results))
	for i, r := range results {
		resp.Hits[i] = &models.SearchHit{
			Document:  r.Document,
			Page:      r.Page,
			Score:     r.Score,
			Fragments: r.Fragments,
			Rank:      i + 1,
		}
	}
	resp.Total = total
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

// current returns an index over the source's corpus, rebuilding it if the
// corpus changed since the last build.
func (s *Searcher) current(ctx context.Context) (*BleveIndex, *Speller, error) {
	c := s.source.Corpus()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil && s.built == c {
		return s.index, s.speller, nil
	}

	index, err := NewMemoryIndex()
	if err != nil {
		return nil, nil, err
	}
	pages := corpusPages(c)
	if err := index.IndexPages(ctx, pages); err != nil {
		_ = index.Close()
		return nil, nil, fmt.Errorf("index corpus pages: %w", err)
	}
	speller, err := NewSpeller(index, 2)
	if err != nil {
		_ = index.Close()
		return nil, nil, err
	}
	if s.index != nil {
		_ = s.index.Close()
	}
	s.index, s.speller, s.built = index, speller, c
	s.logger.Debug("page index built", zap.Int("pages", len(pages)))
	return index, speller, nil
}

// Close releases the current index.
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index, s.speller, s.built = nil, nil, nil
	return err
}

func corpusPages(c *corpus.Corpus) []Page {
	if c == nil {
		return nil
	}
	var pages []Page
	for _, d := range c.Documents {
		for _, p := range d.Pages {
			pages = append(pages, Page{Document: d.Name, Number: p.Number, Content: collapseSpace(p.Text)})
		}
	}
	return pages
}

// collapseSpace trims text and folds every whitespace run into one space so
// highlighted fragments read as prose.
func collapseSpace(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
			continue
		}
		b.WriteRune(r)
		wasSpace = false
	}
	return b.String()
}
