package corpus

import "time"

// DefaultMaxChars is the hard cutoff for the combined corpus text.
const DefaultMaxChars = 150000

// FailureReason classifies why a document contributed nothing.
type FailureReason string

const (
	// ReasonNotFound means the manifest path does not exist.
	ReasonNotFound FailureReason = "not_found"
	// ReasonUnreadable means the file exists but could not be opened or parsed.
	ReasonUnreadable FailureReason = "unreadable"
)

// Loaded describes a document that contributed to the corpus.
type Loaded struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Pages int    `json:"pages"`
	Chars int    `json:"chars"`
}

// Failure describes a document that could not be loaded.
type Failure struct {
	Name   string        `json:"name"`
	Path   string        `json:"path"`
	Reason FailureReason `json:"reason"`
	Err    error         `json:"-"`
}

// Message returns a human-readable reason, including the underlying error if any.
func (f Failure) Message() string {
	if f.Reason == ReasonNotFound {
		return f.Name + " (not found)"
	}
	if f.Err != nil {
		return f.Name + " (error: " + f.Err.Error() + ")"
	}
	return f.Name + " (" + string(f.Reason) + ")"
}

// PageText is one non-blank page kept for page-level search.
type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Document holds the kept pages of one loaded document.
type Document struct {
	Name  string     `json:"name"`
	Pages []PageText `json:"pages"`
}

// Corpus is the combined, truncated text of a manifest plus what loaded and what failed.
type Corpus struct {
	Key        string     `json:"key"`
	Text       string     `json:"-"`
	Loaded     []Loaded   `json:"loaded"`
	Failed     []Failure  `json:"failed"`
	Documents  []Document `json:"-"`
	TotalChars int        `json:"total_chars"`
	Truncated  bool       `json:"truncated"`
	LoadedAt   time.Time  `json:"loaded_at"`
}

// Prefix returns at most n characters of the corpus text.
func (c *Corpus) Prefix(n int) string {
	if c == nil {
		return ""
	}
	s, _ := TruncateChars(c.Text, n)
	return s
}

// TruncateChars cuts s to its first n characters (runes) with no regard for word or
// sentence boundaries. It reports whether anything was cut. n <= 0 yields "".
func TruncateChars(s string, n int) (string, bool) {
	if n <= 0 {
		// Nothing fits, so any non-empty input counts as cut.
		return "", s != ""
	}
	if len(s) <= n {
		// Byte length bounds rune count.
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
