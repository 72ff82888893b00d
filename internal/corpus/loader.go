package corpus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperjump/examchat/internal/extract"
	"go.uber.org/zap"
)

// PageExtractor returns the pages of the document at path.
type PageExtractor interface {
	ExtractPages(path string) ([]extract.Page, error)
}

// Loader builds a Corpus from a Manifest.
type Loader struct {
	extractor PageExtractor
	maxChars  int
	logger    *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMaxChars overrides the corpus cutoff (DefaultMaxChars).
func WithMaxChars(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxChars = n
		}
	}
}

// WithLogger sets the logger used for per-document load notices.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader that reads documents through extractor.
func NewLoader(extractor PageExtractor, opts ...LoaderOption) *Loader {
	l := &Loader{
		extractor: extractor,
		maxChars:  DefaultMaxChars,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxChars returns the corpus cutoff in characters.
func (l *Loader) MaxChars() int {
	return l.maxChars
}

// Load reads every manifest entry in order. Missing or unreadable documents are
// recorded in Failed and never stop the remaining entries. Blank or failing pages
// are skipped. The combined text is cut hard at MaxChars characters.
func (l *Loader) Load(m Manifest) *Corpus {
	c := &Corpus{
		Key:      m.Key(),
		Loaded:   []Loaded{},
		Failed:   []Failure{},
		LoadedAt: time.Now(),
	}
	var full strings.Builder
	for _, entry := range m {
		if _, err := os.Stat(entry.Path); err != nil {
			reason := ReasonUnreadable
			if errors.Is(err, fs.ErrNotExist) {
				reason = ReasonNotFound
			}
			l.fail(c, entry, reason, err)
			continue
		}
		pages, err := l.extractor.ExtractPages(entry.Path)
		if err != nil {
			l.fail(c, entry, ReasonUnreadable, err)
			continue
		}

		doc := Document{Name: entry.Name}
		var text strings.Builder
		fmt.Fprintf(&text, "\n\n--- DOCUMENT: %s (%d pages) ---\n\n", entry.Name, len(pages))
		for _, p := range pages {
			if p.Blank() {
				if p.Err != nil {
					l.logger.Debug("page skipped", zap.String("document", entry.Name), zap.Int("page", p.Number), zap.Error(p.Err))
				}
				continue
			}
			fmt.Fprintf(&text, "[Page %d]\n%s\n\n", p.Number, p.Text)
			doc.Pages = append(doc.Pages, PageText{Number: p.Number, Text: p.Text})
		}
		text.WriteString("\n\n")

		full.WriteString(text.String())
		c.Documents = append(c.Documents, doc)
		c.Loaded = append(c.Loaded, Loaded{
			Name:  entry.Name,
			Path:  entry.Path,
			Pages: len(pages),
			Chars: utf8.RuneCountInString(text.String()),
		})
		l.logger.Info("document loaded", zap.String("name", entry.Name), zap.String("path", entry.Path), zap.Int("pages", len(pages)))
	}

	combined := full.String()
	c.TotalChars = utf8.RuneCountInString(combined)
	c.Text, c.Truncated = TruncateChars(combined, l.maxChars)
	return c
}

func (l *Loader) fail(c *Corpus, entry Entry, reason FailureReason, err error) {
	c.Failed = append(c.Failed, Failure{Name: entry.Name, Path: entry.Path, Reason: reason, Err: err})
	l.logger.Warn("document not loaded",
		zap.String("name", entry.Name),
		zap.String("path", entry.Path),
		zap.String("reason", string(reason)),
		zap.Error(err),
	)
}
