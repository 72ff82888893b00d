// Package extract provides page-oriented text extraction for manifest documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Page is the text of one unit of a document: a PDF page, a spreadsheet sheet,
// or a whole plain-text file. Err is set when that unit alone could not be read.
type Page struct {
	Number int
	Text   string
	Err    error
}

// Blank reports whether the page contributes nothing to a corpus.
func (p Page) Blank() bool {
	return p.Err != nil || strings.TrimSpace(p.Text) == ""
}

// Extractor extracts text pages from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages reads the file at path and returns its pages in order.
// A document-level error means the file could not be read or opened at all;
// per-page failures are reported on the Page instead.
func (e *Extractor) ExtractPages(path string) ([]Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractPagesBytes(content, ext)
}

// ExtractPagesBytes extracts pages from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractPagesBytes(content []byte, ext string) ([]Page, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		// Unknown extension: treat as plain text
		return extractPlain(content)
	}
}
