package corpus

import (
	"unicode/utf8"

	"github.com/hyperjump/examchat/internal/models"
)

// Status summarizes the corpus for display. contextChars is the per-turn prefix
// size, reported so users can see how much of the text a question actually sees.
func (c *Corpus) Status(contextChars int) *models.CorpusStatus {
	if c == nil {
		return &models.CorpusStatus{Documents: []models.DocumentStatus{}}
	}
	st := &models.CorpusStatus{
		Key:          c.Key,
		Documents:    make([]models.DocumentStatus, 0, len(c.Loaded)+len(c.Failed)),
		LoadedCount:  len(c.Loaded),
		FailedCount:  len(c.Failed),
		TotalChars:   c.TotalChars,
		ContextChars: min(contextChars, utf8.RuneCountInString(c.Text)),
		Truncated:    c.Truncated,
		LoadedAt:     c.LoadedAt,
	}
	for _, l := range c.Loaded {
		st.Documents = append(st.Documents, models.DocumentStatus{
			Name: l.Name, Path: l.Path, Loaded: true, Pages: l.Pages, Chars: l.Chars,
		})
	}
	for _, f := range c.Failed {
		d := models.DocumentStatus{Name: f.Name, Path: f.Path, Reason: string(f.Reason)}
		if f.Err != nil {
			d.Error = f.Err.Error()
		}
		st.Documents = append(st.Documents, d)
	}
	return st
}
