package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/examchat/internal/extract"
)

type fakeExtractor struct {
	pages map[string][]extract.Page
	errs  map[string]error
	calls int
}

func (f *fakeExtractor) ExtractPages(path string) ([]extract.Page, error) {
	f.calls++
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	return f.pages[path], nil
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_allMissing(t *testing.T) {
	dir := t.TempDir()
	m := NewManifest(
		Entry{Name: "A", Path: filepath.Join(dir, "a.pdf")},
		Entry{Name: "B", Path: filepath.Join(dir, "b.pdf")},
		Entry{Name: "C", Path: filepath.Join(dir, "c.pdf")},
	)
	c := NewLoader(&fakeExtractor{}).Load(m)
	if c.Text != "" {
		t.Errorf("text: got %q, want empty", c.Text)
	}
	if len(c.Loaded) != 0 {
		t.Errorf("loaded: got %v", c.Loaded)
	}
	if len(c.Failed) != len(m) {
		t.Fatalf("failed: got %d, want %d", len(c.Failed), len(m))
	}
	for i, f := range c.Failed {
		if f.Name != m[i].Name || f.Reason != ReasonNotFound {
			t.Errorf("failure %d: got %+v", i, f)
		}
	}
}

func TestLoad_singleMissingExample(t *testing.T) {
	c := NewLoader(&fakeExtractor{}).Load(NewManifest(Entry{Name: "A", Path: "missing.pdf"}))
	if c.Text != "" || len(c.Loaded) != 0 || len(c.Failed) != 1 || c.Failed[0].Name != "A" {
		t.Errorf("got text=%q loaded=%v failed=%v", c.Text, c.Loaded, c.Failed)
	}
	if got := c.Failed[0].Message(); got != "A (not found)" {
		t.Errorf("Message() = %q", got)
	}
}

func TestLoad_headersPagesAndOrder(t *testing.T) {
	dir := t.TempDir()
	exam := touch(t, dir, "exam.pdf")
	key := touch(t, dir, "key.pdf")
	ext := &fakeExtractor{pages: map[string][]extract.Page{
		exam: {
			{Number: 1, Text: "Question 1"},
			{Number: 2, Text: "   \n"},
			{Number: 3, Text: "garbled", Err: errors.New("bad stream")},
			{Number: 4, Text: "Question 2"},
		},
		key: {{Number: 1, Text: "9: C"}},
	}}
	m := NewManifest(
		Entry{Name: "Exam", Path: exam},
		Entry{Name: "Missing", Path: filepath.Join(dir, "nope.pdf")},
		Entry{Name: "Key", Path: key},
	)
	c := NewLoader(ext).Load(m)

	want := "\n\n--- DOCUMENT: Exam (4 pages) ---\n\n" +
		"[Page 1]\nQuestion 1\n\n" +
		"[Page 4]\nQuestion 2\n\n" +
		"\n\n" +
		"\n\n--- DOCUMENT: Key (1 pages) ---\n\n" +
		"[Page 1]\n9: C\n\n" +
		"\n\n"
	if c.Text != want {
		t.Errorf("text:\ngot  %q\nwant %q", c.Text, want)
	}
	if len(c.Loaded) != 2 || c.Loaded[0].Name != "Exam" || c.Loaded[1].Name != "Key" {
		t.Errorf("loaded: got %+v", c.Loaded)
	}
	if c.Loaded[0].Pages != 4 {
		t.Errorf("page count: got %d", c.Loaded[0].Pages)
	}
	if len(c.Failed) != 1 || c.Failed[0].Name != "Missing" {
		t.Errorf("failed: got %+v", c.Failed)
	}
	if len(c.Documents) != 2 || len(c.Documents[0].Pages) != 2 {
		t.Errorf("documents: got %+v", c.Documents)
	}
	if c.Truncated {
		t.Error("small corpus should not be truncated")
	}
}

func TestLoad_extractionErrorIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	broken := touch(t, dir, "broken.pdf")
	ok := touch(t, dir, "ok.txt")
	ext := &fakeExtractor{
		pages: map[string][]extract.Page{ok: {{Number: 1, Text: "fine"}}},
		errs:  map[string]error{broken: errors.New("open PDF: malformed")},
	}
	c := NewLoader(ext).Load(NewManifest(Entry{Name: "Broken", Path: broken}, Entry{Name: "Ok", Path: ok}))
	if len(c.Failed) != 1 || c.Failed[0].Reason != ReasonUnreadable {
		t.Fatalf("failed: got %+v", c.Failed)
	}
	if !strings.Contains(c.Failed[0].Message(), "malformed") {
		t.Errorf("Message() = %q", c.Failed[0].Message())
	}
	if len(c.Loaded) != 1 || !strings.Contains(c.Text, "fine") {
		t.Errorf("ok document not loaded: %+v", c.Loaded)
	}
}

func TestLoad_hardTruncation(t *testing.T) {
	dir := t.TempDir()
	big := touch(t, dir, "big.pdf")
	pages := make([]extract.Page, 100)
	for i := range pages {
		pages[i] = extract.Page{Number: i + 1, Text: strings.Repeat("ab", 50000)}
	}
	ext := &fakeExtractor{pages: map[string][]extract.Page{big: pages}}

	c := NewLoader(ext).Load(NewManifest(Entry{Name: "Big", Path: big}))
	if n := utf8.RuneCountInString(c.Text); n != DefaultMaxChars {
		t.Errorf("text length: got %d, want %d", n, DefaultMaxChars)
	}
	if !c.Truncated {
		t.Error("expected Truncated")
	}
	if c.TotalChars <= DefaultMaxChars*10 {
		t.Errorf("total chars should reflect the untruncated size: %d", c.TotalChars)
	}
}

func TestLoad_truncationCountsCharacters(t *testing.T) {
	dir := t.TempDir()
	doc := touch(t, dir, "accents.txt")
	ext := &fakeExtractor{pages: map[string][]extract.Page{doc: {{Number: 1, Text: strings.Repeat("questão ", 100)}}}}

	c := NewLoader(ext, WithMaxChars(50)).Load(NewManifest(Entry{Name: "Prova", Path: doc}))
	if n := utf8.RuneCountInString(c.Text); n != 50 {
		t.Errorf("rune count: got %d, want 50", n)
	}
	if !utf8.ValidString(c.Text) {
		t.Error("truncation split a multi-byte character")
	}
}

func TestManifest_Key(t *testing.T) {
	a := NewManifest(Entry{Name: "A", Path: "a.pdf"}, Entry{Name: "B", Path: "b.pdf"})
	same := NewManifest(Entry{Name: "A", Path: "./a.pdf"}, Entry{Name: "B", Path: "b.pdf"})
	reordered := NewManifest(Entry{Name: "B", Path: "b.pdf"}, Entry{Name: "A", Path: "a.pdf"})
	if a.Key() != same.Key() {
		t.Error("equivalent manifests should share a key")
	}
	if a.Key() == reordered.Key() {
		t.Error("order is part of manifest identity")
	}
	if !strings.HasPrefix(a.Key(), "manifest:") {
		t.Errorf("key prefix: %s", a.Key())
	}
}

func TestTruncateChars(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		n       int
		want    string
		wantCut bool
	}{
		{"shorter", "abc", 5, "abc", false},
		{"exact", "abc", 3, "abc", false},
		{"cut", "abcdef", 3, "abc", true},
		{"multibyte", "ãéíõú", 2, "ãé", true},
		{"multibyte fits", "ãé", 2, "ãé", false},
		{"zero", "abc", 0, "", true},
		{"empty", "", 0, "", false},
		{"negative", "abc", -1, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := TruncateChars(tt.in, tt.n)
			if got != tt.want || cut != tt.wantCut {
				t.Errorf("TruncateChars(%q, %d) = %q, %v; want %q, %v", tt.in, tt.n, got, cut, tt.want, tt.wantCut)
			}
		})
	}
}
