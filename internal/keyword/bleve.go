package keyword

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

const fragmentField = "content"

// BleveIndex implements PageIndex using an in-memory Bleve index.
type BleveIndex struct {
	index bleve.Index
}

var (
	_ PageIndex      = (*BleveIndex)(nil)
	_ TermDictionary = (*BleveIndex)(nil)
)

// NewMemoryIndex creates an empty in-memory index. Page text is rebuilt from the
// corpus on every load, so nothing is persisted.
func NewMemoryIndex() (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	pageMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so that Portuguese and
	// English terms both match as written.
	contentMapping := bleve.NewTextFieldMapping()
	contentMapping.Analyzer = standard.Name
	contentMapping.IncludeTermVectors = true
	pageMapping.AddFieldMappingsAt("content", contentMapping)

	documentMapping := bleve.NewTextFieldMapping()
	documentMapping.Analyzer = keywordanalyzer.Name
	pageMapping.AddFieldMappingsAt("document", documentMapping)
	pageMapping.AddFieldMappingsAt("page", bleve.NewNumericFieldMapping())

	im.AddDocumentMapping("page", pageMapping)
	im.DefaultType = "page"
	im.DefaultMapping = pageMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// PageID returns the index ID of a page.
func PageID(document string, page int) string {
	return fmt.Sprintf("%s#%d", document, page)
}

// IndexPages indexes pages in one batch.
func (b *BleveIndex) IndexPages(ctx context.Context, pages []Page) error {
	batch := b.index.NewBatch()
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := pages[i]
		if err := batch.Index(PageID(p.Document, p.Number), p); err != nil {
			return fmt.Errorf("failed to index page %d of %s: %w", p.Number, p.Document, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search runs a match (or fuzzy) query over page content and returns up to limit
// hits with highlighted fragments, plus the total number of matching pages.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, uint64, error) {
	fuzziness := 2
	var fuzzy bool
	var document string
	if opts != nil {
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
		document = opts.Document
	}

	var q blevequery.Query
	if fuzzy {
		q = buildFuzzyQuery(query, fuzziness, "content")
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("content")
		q = mq
	}
	if document != "" {
		dq := bleve.NewTermQuery(document)
		dq.SetField("document")
		q = bleve.NewConjunctionQuery(q, dq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"document", "page"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(fragmentField)

	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		r := &Result{ID: hit.ID, Score: hit.Score, Fragments: hit.Fragments[fragmentField]}
		if v, ok := hit.Fields["document"].(string); ok {
			r.Document = v
		}
		if v, ok := hit.Fields["page"].(float64); ok {
			r.Page = int(v)
		}
		out[i] = r
	}
	return out, results.Total, nil
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(field)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed pages.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Terms returns the content term dictionary with per-term page frequencies.
func (b *BleveIndex) Terms() (map[string]int, error) {
	dict, err := b.index.FieldDict("content")
	if err != nil {
		return nil, fmt.Errorf("failed to read term dictionary: %w", err)
	}
	defer dict.Close()

	terms := make(map[string]int)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		terms[entry.Term] = int(entry.Count)
	}
	return terms, nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
