package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a single page, validating it is valid UTF-8.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) ([]Page, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\ufffd")
	}
	return []Page{{Number: 1, Text: text}}, nil
}
