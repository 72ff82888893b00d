// Package server provides the HTTP API for examchat.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/examchat/internal/chat"
	"github.com/hyperjump/examchat/internal/config"
	"github.com/hyperjump/examchat/internal/corpus"
	"github.com/hyperjump/examchat/internal/models"
	"github.com/hyperjump/examchat/internal/storage"
)

// requestTimeout bounds every route except the streamed turns, which are
// bounded by the chat client's own deadline.
const requestTimeout = 60 * time.Second

// CorpusLibrary provides the loaded corpus and reloads it on demand.
type CorpusLibrary interface {
	Corpus() *corpus.Corpus
	Reload() *corpus.Corpus
}

// PageSearcher runs page searches over the corpus.
type PageSearcher interface {
	Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error)
}

// Server is the HTTP server for the examchat API.
type Server struct {
	library  CorpusLibrary
	searcher PageSearcher
	chat     *chat.Service
	sessions *chat.Registry
	storage  storage.Storage
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	now      func() time.Time
}

// NewServer creates a server with the given dependencies.
func NewServer(
	library CorpusLibrary,
	searcher PageSearcher,
	service *chat.Service,
	sessions *chat.Registry,
	storage storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		library:  library,
		searcher: searcher,
		chat:     service,
		sessions: sessions,
		storage:  storage,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/health", s.handleHealth)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/api/v1/models", s.handleModels)
		r.Get("/api/v1/suggestions", s.handleSuggestions)

		r.Get("/api/v1/corpus", s.handleCorpus)
		r.Post("/api/v1/corpus/reload", s.handleCorpusReload)
		r.Get("/api/v1/corpus/search", s.handleSearch)

		r.Post("/api/v1/sessions", s.handleCreateSession)
		r.Get("/api/v1/sessions/{id}", s.handleGetSession)
		r.Delete("/api/v1/sessions/{id}", s.handleDeleteSession)
		r.Post("/api/v1/sessions/{id}/clear", s.handleClearSession)
		r.Get("/api/v1/sessions/{id}/export", s.handleExportSession)

		r.Get("/api/v1/exports", s.handleListExports)
		r.Get("/api/v1/exports/{id}", s.handleGetExport)
		r.Delete("/api/v1/exports/{id}", s.handleDeleteExport)
	})

	r.Post("/api/v1/sessions/{id}/ask", s.handleAsk)
	r.Post("/api/v1/sessions/{id}/summary", s.handleSummary)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
