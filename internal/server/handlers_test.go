package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/examchat/internal/chat"
	"github.com/hyperjump/examchat/internal/config"
	"github.com/hyperjump/examchat/internal/corpus"
	"github.com/hyperjump/examchat/internal/extract"
	"github.com/hyperjump/examchat/internal/keyword"
	"github.com/hyperjump/examchat/internal/llm"
	"github.com/hyperjump/examchat/internal/models"
	"github.com/hyperjump/examchat/internal/secrets"
	"github.com/hyperjump/examchat/internal/storage"
)

type testEnv struct {
	handler http.Handler
	store   *storage.SQLiteStorage
	apiHits atomic.Int32
}

type envOptions struct {
	apiKey   string
	status   int
	fragment []string
	// stall keeps the upstream response open after the fragments, so the
	// call times out mid-stream.
	stall bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	dir := t.TempDir()
	examPath := filepath.Join(dir, "exam.txt")
	if err := os.WriteFile(examPath, []byte("Question 1: describe photosynthesis in plant cells."), 0644); err != nil {
		t.Fatal(err)
	}
	manifest := corpus.NewManifest(
		corpus.Entry{Name: "Exam", Path: examPath},
		corpus.Entry{Name: "Answers", Path: filepath.Join(dir, "answers.pdf")},
	)
	library := corpus.NewLibrary(manifest, corpus.NewLoader(extract.NewExtractor()), corpus.NewCache(1))

	env := &testEnv{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.apiHits.Add(1)
		if opts.status != 0 {
			w.WriteHeader(opts.status)
			fmt.Fprint(w, `{"error":{"message":"upstream failure"}}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range opts.fragment {
			b, _ := json.Marshal(f)
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", b)
		}
		if opts.stall {
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(api.Close)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Chat.Endpoint = api.URL
	cfg.Storage.DatabasePath = filepath.Join(dir, "exports.db")

	keys := secrets.NewFileStore(filepath.Join(dir, "secrets"))
	if opts.apiKey != "" {
		if err := keys.Put(context.Background(), secrets.APIKeyName, opts.apiKey); err != nil {
			t.Fatal(err)
		}
	}
	timeout := 5 * time.Second
	if opts.stall {
		timeout = 200 * time.Millisecond
	}
	client := llm.NewClient(llm.WithEndpoint(api.URL), llm.WithTimeout(timeout))
	service := chat.NewService(library, client, keys, &cfg.Chat, nil)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	searcher := keyword.NewSearcher(library, nil)
	t.Cleanup(func() { _ = searcher.Close() })

	srv := NewServer(library, searcher, service, chat.NewRegistry(time.Hour), store, cfg, nil)
	env.handler = srv.Handler()
	env.store = store
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/sessions", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d", rec.Code)
	}
	var view models.SessionView
	decode(t, rec, &view)
	if view.ID == "" || view.Turns != 0 || len(view.Transcript) != 0 {
		t.Fatalf("unexpected new session: %+v", view)
	}
	return view.ID
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleCorpus(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/corpus"},
		{http.MethodPost, "/api/v1/corpus/reload"},
	} {
		rec := env.do(t, tc.method, tc.path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s: status %d", tc.method, tc.path, rec.Code)
		}
		var status models.CorpusStatus
		decode(t, rec, &status)
		if status.LoadedCount != 1 || status.FailedCount != 1 {
			t.Errorf("%s: loaded=%d failed=%d, want 1 and 1", tc.path, status.LoadedCount, status.FailedCount)
		}
		if len(status.Documents) != 2 || status.Documents[0].Name != "Exam" || status.Documents[1].Loaded {
			t.Errorf("%s: documents = %+v", tc.path, status.Documents)
		}
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.createSession(t)
	rec := env.do(t, http.MethodGet, "/api/v1/status", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	decode(t, rec, &body)
	if body["sessions"] != float64(1) {
		t.Errorf("sessions = %v, want 1", body["sessions"])
	}
	if body["documents_loaded"] != float64(1) {
		t.Errorf("documents_loaded = %v, want 1", body["documents_loaded"])
	}
	if _, ok := body["disk_usage_bytes"]; !ok {
		t.Error("expected disk_usage_bytes in status")
	}
}

func TestHandleSuggestionsAndModels(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodGet, "/api/v1/suggestions", nil, nil)
	var sugg struct {
		Suggestions []string `json:"suggestions"`
	}
	decode(t, rec, &sugg)
	if len(sugg.Suggestions) != 5 {
		t.Errorf("got %d suggestions, want 5", len(sugg.Suggestions))
	}

	rec = env.do(t, http.MethodGet, "/api/v1/models", nil, nil)
	var m struct {
		Default string   `json:"default"`
		Models  []string `json:"models"`
	}
	decode(t, rec, &m)
	if m.Default == "" || len(m.Models) == 0 {
		t.Errorf("models = %+v", m)
	}
}

func TestHandleSearch(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodGet, "/api/v1/corpus/search?q=photosynthesis&limit=5", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	decode(t, rec, &resp)
	if resp.Total != 1 || len(resp.Hits) != 1 {
		t.Fatalf("total=%d hits=%d, want 1", resp.Total, len(resp.Hits))
	}
	if resp.Hits[0].Document != "Exam" || resp.Hits[0].Page != 1 {
		t.Errorf("hit = %+v", resp.Hits[0])
	}

	for _, path := range []string{
		"/api/v1/corpus/search",
		"/api/v1/corpus/search?q=%20",
		"/api/v1/corpus/search?q=cells&limit=abc",
		"/api/v1/corpus/search?q=cells&fuzzy=maybe",
	} {
		if rec := env.do(t, http.MethodGet, path, nil, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, envOptions{apiKey: "sk-stored", fragment: []string{"Photosynthesis ", "is covered."}})
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/ask", models.AskRequest{Question: "What does question 1 cover?"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ask: status %d: %s", rec.Code, rec.Body.String())
	}
	var answer models.AskResponse
	decode(t, rec, &answer)
	if answer.Answer != "Photosynthesis is covered." || answer.Turns != 1 || answer.SessionID != id {
		t.Errorf("answer = %+v", answer)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, nil)
	var view models.SessionView
	decode(t, rec, &view)
	if len(view.Transcript) != 2 || view.Transcript[0].Role != "user" || view.Transcript[1].Role != "assistant" {
		t.Fatalf("transcript = %+v", view.Transcript)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/export", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("export content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "conversation_"+id+".md") {
		t.Errorf("export disposition = %q", cd)
	}
	md := rec.Body.String()
	if !strings.Contains(md, "**USER:** What does question 1 cover?") || !strings.Contains(md, "**ASSISTANT:** Photosynthesis is covered.") {
		t.Errorf("export body = %q", md)
	}
	exportID := rec.Header().Get("X-Export-ID")
	if exportID == "" {
		t.Fatal("export was not archived")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/exports/"+exportID, nil, nil)
	var archived models.Export
	decode(t, rec, &archived)
	if archived.Content != md || archived.SessionID != id {
		t.Errorf("archived export = %+v", archived)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/exports?session="+id, nil, nil)
	var list struct {
		Exports []*models.Export `json:"exports"`
	}
	decode(t, rec, &list)
	if len(list.Exports) != 1 {
		t.Errorf("exports by session = %d, want 1", len(list.Exports))
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/clear", nil, nil)
	decode(t, rec, &view)
	if len(view.Transcript) != 0 || view.Turns != 0 {
		t.Errorf("after clear: %+v", view)
	}

	if rec := env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, nil); rec.Code != http.StatusOK {
		t.Errorf("delete: status %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", rec.Code)
	}
}

func TestHandleAsk_eventStream(t *testing.T) {
	env := newTestEnv(t, envOptions{fragment: []string{"one ", "two"}})
	id := env.createSession(t)
	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/ask",
		models.AskRequest{Question: "Count"},
		map[string]string{"Accept": "text/event-stream", apiKeyHeader: "sk-header"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"event: fragment\ndata: {\"content\":\"one \"}\n\n",
		"event: fragment\ndata: {\"content\":\"two\"}\n\n",
		"event: done\n",
		`"answer":"one two"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q:\n%s", want, body)
		}
	}
}

func TestHandleAsk_eventStreamFailsAfterFragments(t *testing.T) {
	env := newTestEnv(t, envOptions{apiKey: "sk", fragment: []string{"partial "}, stall: true})
	id := env.createSession(t)
	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/ask",
		models.AskRequest{Question: "Count"},
		map[string]string{"Accept": "text/event-stream"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	fragment := strings.Index(body, "event: fragment\ndata: {\"content\":\"partial \"}\n\n")
	failure := strings.Index(body, "event: error\n")
	if fragment < 0 || failure < fragment {
		t.Fatalf("want fragment then error event:\n%s", body)
	}
	if strings.Contains(body, "event: done") {
		t.Errorf("failed turn reported done:\n%s", body)
	}
	if !strings.Contains(body[failure:], `"kind":"timeout"`) {
		t.Errorf("error event missing timeout kind:\n%s", body[failure:])
	}

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil, nil)
	var view models.SessionView
	decode(t, rec, &view)
	if len(view.Transcript) != 1 || view.Transcript[0].Role != "user" {
		t.Errorf("transcript = %+v", view.Transcript)
	}
}

func TestHandleSummary(t *testing.T) {
	env := newTestEnv(t, envOptions{apiKey: "sk", fragment: []string{"## Summary"}})
	id := env.createSession(t)
	rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/summary", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var answer models.AskResponse
	decode(t, rec, &answer)
	if answer.Answer != "## Summary" || answer.Turns != 0 {
		t.Errorf("summary = %+v", answer)
	}
}

func TestHandleAsk_errors(t *testing.T) {
	tests := []struct {
		name       string
		opts       envOptions
		question   string
		header     map[string]string
		wantStatus int
		wantKind   string
		wantCalls  int
	}{
		{"missing key", envOptions{}, "Hi", nil, http.StatusUnauthorized, "", 0},
		{"empty question", envOptions{apiKey: "sk"}, "   ", nil, http.StatusBadRequest, "", 0},
		{"upstream failure", envOptions{apiKey: "sk", status: http.StatusInternalServerError}, "Hi", nil, http.StatusBadGateway, "request_failed", 1},
		{"upstream failure streamed", envOptions{apiKey: "sk", status: http.StatusUnauthorized}, "Hi",
			map[string]string{"Accept": "text/event-stream"}, http.StatusBadGateway, "request_failed", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.opts)
			id := env.createSession(t)
			rec := env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/ask", models.AskRequest{Question: tt.question}, tt.header)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var body errorResponse
			decode(t, rec, &body)
			if body.Error == "" || body.Guidance == "" {
				t.Errorf("error body = %+v", body)
			}
			if body.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", body.Kind, tt.wantKind)
			}
			if got := int(env.apiHits.Load()); got != tt.wantCalls {
				t.Errorf("API calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestHandleAsk_unknownSession(t *testing.T) {
	env := newTestEnv(t, envOptions{apiKey: "sk"})
	rec := env.do(t, http.MethodPost, "/api/v1/sessions/nope/ask", models.AskRequest{Question: "Hi"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleAsk_invalidBody(t *testing.T) {
	env := newTestEnv(t, envOptions{apiKey: "sk"})
	id := env.createSession(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/ask", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleExport_emptyTranscript(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := env.createSession(t)
	rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/export", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	n, err := env.store.CountExports(context.Background())
	if err != nil || n != 0 {
		t.Errorf("CountExports = %d, %v; want nothing archived", n, err)
	}
}

func TestHandleExports_notFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	if rec := env.do(t, http.MethodGet, "/api/v1/exports/missing", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get: status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/v1/exports/missing", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete: status = %d, want 404", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{chat.ErrAuthMissing, http.StatusUnauthorized},
		{fmt.Errorf("%w: %q", chat.ErrUnknownModel, "x"), http.StatusBadRequest},
		{chat.ErrTurnInProgress, http.StatusConflict},
		{llm.ErrInvalidRequest, http.StatusBadRequest},
		{fmt.Errorf("%w: id", storage.ErrNotFound), http.StatusNotFound},
		{&llm.Error{Kind: llm.KindTimeout}, http.StatusGatewayTimeout},
		{&llm.Error{Kind: llm.KindConnection}, http.StatusBadGateway},
		{&llm.Error{Kind: llm.KindStream}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
