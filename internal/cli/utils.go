// Package cli provides output formatting for the examchat command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/hyperjump/examchat/internal/models"
	"github.com/hyperjump/examchat/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a -output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	errMark  = color.New(color.FgRed).SprintFunc()
	heading  = color.New(color.Bold).SprintFunc()
	dim      = color.New(color.Faint).SprintFunc()
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes page search hits to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d pages in %dms\n", response.Total, response.QueryTime)
	if len(response.Suggestions) > 0 {
		fmt.Fprintf(w, "Did you mean: %s\n", strings.Join(response.Suggestions, ", "))
	}
	if response.AutoFuzzy {
		fmt.Fprintln(w, dim("(no exact matches; showing fuzzy matches)"))
	}
	fmt.Fprintln(w)
	for _, hit := range response.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s, page %d %s\n", hit.Rank, heading(hit.Document), hit.Page, dim(fmt.Sprintf("(score %.4f)", hit.Score)))
		for _, f := range hit.Fragments {
			fmt.Fprintf(w, "   %s\n", utils.Truncate(strings.Join(strings.Fields(f), " "), 200))
		}
	}
	if len(response.Hits) > 0 {
		fmt.Fprintln(w)
	}
	return nil
}

// WriteCorpusStatus writes which documents loaded and which failed.
func WriteCorpusStatus(w io.Writer, status *models.CorpusStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintln(w, heading("Documents"))
	for _, d := range status.Documents {
		if d.Loaded {
			fmt.Fprintf(w, "  %s %s (%s, %d chars)\n", okMark("✓"), d.Name, utils.Plural(d.Pages, "page", "pages"), d.Chars)
			continue
		}
		detail := strings.ReplaceAll(d.Reason, "_", " ")
		if d.Error != "" {
			detail = "error: " + d.Error
		}
		fmt.Fprintf(w, "  %s %s (%s)\n", warnMark("!"), d.Name, detail)
	}
	fmt.Fprintf(w, "\nLoaded %d of %d documents\n", status.LoadedCount, status.LoadedCount+status.FailedCount)
	fmt.Fprintf(w, "Context: %d chars", status.TotalChars)
	if status.Truncated {
		fmt.Fprintf(w, " %s", warnMark("(truncated)"))
	}
	fmt.Fprintf(w, ", %d sent per question\n", status.ContextChars)
	return nil
}

// WriteExports lists archived transcript exports.
func WriteExports(w io.Writer, exports []*models.Export, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, exports)
	}
	if len(exports) == 0 {
		fmt.Fprintln(w, "No exports.")
		return nil
	}
	for _, e := range exports {
		fmt.Fprintf(w, "%s  %s  %s  %s\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.Filename, utils.Plural(e.Entries, "entry", "entries"))
	}
	return nil
}

// WriteAnswer writes a finished non-streamed answer.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintln(w, resp.Answer)
	WriteAnswerFooter(w, resp.Model, resp.ElapsedMS)
	return nil
}

// WriteAnswerFooter writes the timing line shown after an answer.
func WriteAnswerFooter(w io.Writer, model string, elapsedMS int64) {
	fmt.Fprintf(w, "\n%s\n", dim(fmt.Sprintf("Answered in %.1fs with %s", float64(elapsedMS)/1000, model)))
}

// WriteError writes an error and the guidance for it.
func WriteError(w io.Writer, err error, guidance string) {
	fmt.Fprintf(w, "%s %v\n", errMark("error:"), err)
	if guidance != "" {
		fmt.Fprintf(w, "%s\n", guidance)
	}
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
