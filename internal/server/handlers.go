package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/examchat/internal/chat"
	"github.com/hyperjump/examchat/internal/models"
)

// apiKeyHeader carries a per-request API key that takes precedence over the stored one.
const apiKeyHeader = "X-API-Key"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	exportCount, err := s.storage.CountExports(ctx)
	if err != nil {
		s.logger.Error("status: count exports failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := s.library.Corpus().Status(s.config.Chat.ContextChars)
	resp := map[string]interface{}{
		"documents_loaded": status.LoadedCount,
		"documents_failed": status.FailedCount,
		"corpus_chars":     status.TotalChars,
		"truncated":        status.Truncated,
		"sessions":         s.sessions.Count(),
		"exports":          exportCount,
		"config": map[string]interface{}{
			"model":         s.config.Chat.Model,
			"endpoint":      s.config.Chat.Endpoint,
			"context_chars": s.config.Chat.ContextChars,
			"max_chars":     s.config.Documents.MaxChars,
			"database_path": s.config.Storage.DatabasePath,
		},
	}
	if size, err := s.storage.SizeBytes(); err == nil {
		resp["disk_usage_bytes"] = size
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"default": s.config.Chat.Model,
		"models":  s.chat.Models(),
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": chat.Suggestions()})
}

func (s *Server) handleCorpus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.library.Corpus().Status(s.config.Chat.ContextChars))
}

func (s *Server) handleCorpusReload(w http.ResponseWriter, r *http.Request) {
	status := s.library.Reload().Status(s.config.Chat.ContextChars)
	s.logger.Info("corpus reloaded",
		zap.Int("loaded", status.LoadedCount),
		zap.Int("failed", status.FailedCount),
		zap.Int("chars", status.TotalChars),
	)
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.SearchQuery{
		Query:    q.Get("q"),
		Document: q.Get("document"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = n
	}
	if v := q.Get("fuzzy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid fuzzy flag")
			return
		}
		query.Fuzzy = b
	}
	if strings.TrimSpace(query.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.searcher.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.logger.Debug("session created", zap.String("session", sess.ID))
	s.respondJSON(w, http.StatusCreated, chat.View(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, chat.View(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Delete(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.chat.Clear(sess); err != nil {
		s.respondChatError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, chat.View(sess))
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}
	opts := turnOptions(r, req)
	s.runTurn(w, r, sess, func(onFragment func(string)) (*chat.Result, error) {
		return s.chat.Ask(r.Context(), sess, req.Question, opts, onFragment)
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}
	opts := turnOptions(r, req)
	s.runTurn(w, r, sess, func(onFragment func(string)) (*chat.Result, error) {
		return s.chat.Summarize(r.Context(), sess, opts, onFragment)
	})
}

// runTurn streams the turn as server-sent events when the client accepts them
// and answers with a single JSON document otherwise.
func (s *Server) runTurn(w http.ResponseWriter, r *http.Request, sess *chat.Session, turn func(func(string)) (*chat.Result, error)) {
	if !wantsEventStream(r) {
		res, err := turn(nil)
		if err != nil {
			s.respondChatError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, askResponse(sess, res))
		return
	}

	events := newEventWriter(w)
	res, err := turn(func(fragment string) {
		events.send("fragment", map[string]string{"content": fragment})
	})
	if err != nil {
		if !events.started {
			s.respondChatError(w, err)
			return
		}
		events.send("error", errorBody(err))
		return
	}
	events.send("done", askResponse(sess, res))
}

func (s *Server) handleExportSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	exp, err := chat.Export(sess, s.now())
	if err != nil {
		s.respondChatError(w, err)
		return
	}
	if err := s.storage.SaveExport(r.Context(), exp); err != nil {
		s.logger.Warn("failed to archive export", zap.String("session", sess.ID), zap.Error(err))
	} else {
		w.Header().Set("X-Export-ID", exp.ID)
	}
	writeMarkdown(w, exp)
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	if sessionID := q.Get("session"); sessionID != "" {
		exports, err := s.storage.ListExportsBySession(ctx, sessionID)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"exports": exports})
		return
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	exports, err := s.storage.ListExports(ctx, offset, limit)
	if err != nil {
		s.logger.Error("list exports failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.storage.CountExports(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"exports": exports, "total": total})
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	exp, err := s.storage.GetExport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondChatError(w, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/markdown") {
		writeMarkdown(w, exp)
		return
	}
	s.respondJSON(w, http.StatusOK, exp)
}

func (s *Server) handleDeleteExport(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteExport(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondChatError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// decodeTurn reads an optional AskRequest body. An empty body is a zero request.
func (s *Server) decodeTurn(w http.ResponseWriter, r *http.Request) (*models.AskRequest, bool) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &req, true
}

func turnOptions(r *http.Request, req *models.AskRequest) chat.Options {
	return chat.Options{
		APIKey:      r.Header.Get(apiKeyHeader),
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func askResponse(sess *chat.Session, res *chat.Result) *models.AskResponse {
	return &models.AskResponse{
		SessionID: sess.ID,
		Answer:    res.Answer,
		Model:     res.Model,
		Turns:     sess.Turns(),
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func writeMarkdown(w http.ResponseWriter, exp *models.Export) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, exp.Content)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondChatError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.respondJSON(w, status, errorBody(err))
}
