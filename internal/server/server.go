// ABOUTME: Local REST and websocket daemon over live editor sessions
// ABOUTME: Routes map one-to-one onto editor.Session operations

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nainya/applydesk/internal/editor"
	"github.com/nainya/applydesk/internal/logger"
	"github.com/nainya/applydesk/internal/metrics"
)

// Server exposes an editor.Manager over HTTP
type Server struct {
	manager *editor.Manager
	log     *logger.Logger
	metrics *metrics.Metrics
	router  *mux.Router
	http    *http.Server
}

// Config holds daemon settings
type Config struct {
	Port int

	// WriteTimeout bounds non-streaming responses. Generation and preview
	// compiles can take a while, so it defaults to two minutes.
	WriteTimeout time.Duration
}

// New creates a daemon serving manager
func New(cfg Config, manager *editor.Manager, m *metrics.Metrics, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}

	s := &Server{
		manager: manager,
		log:     log.HTTPLogger(),
		metrics: m,
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the daemon's HTTP handler
func (s *Server) Handler() http.Handler {
	return CORSMiddleware(s.router)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware(s.metrics, s.log))
	r.Use(RecoveryMiddleware(s.log))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/keys", s.handleGlobalKey).Methods(http.MethodPost)

	r.HandleFunc("/sessions", s.handleOpen).Methods(http.MethodPost)
	r.HandleFunc("/sessions", s.handleList).Methods(http.MethodGet)

	sr := r.PathPrefix("/sessions/{id}").Subrouter()
	sr.HandleFunc("", s.handleState).Methods(http.MethodGet)
	sr.HandleFunc("", s.handleClose).Methods(http.MethodDelete)

	// Content
	sr.HandleFunc("/fields/{name}", s.handleSetField).Methods(http.MethodPut)
	sr.HandleFunc("/text/{ref}", s.handleSetText).Methods(http.MethodPut)
	sr.HandleFunc("/body", s.handleSetBody).Methods(http.MethodPut)
	sr.HandleFunc("/body", s.handleInsertParagraph).Methods(http.MethodPost)
	sr.HandleFunc("/body/move", s.handleMoveParagraph).Methods(http.MethodPost)
	sr.HandleFunc("/body/{index:[0-9]+}", s.handleRemoveParagraph).Methods(http.MethodDelete)

	// History
	sr.HandleFunc("/undo", s.handleUndo).Methods(http.MethodPost)
	sr.HandleFunc("/redo", s.handleRedo).Methods(http.MethodPost)
	sr.HandleFunc("/versions", s.handleVersions).Methods(http.MethodGet)
	sr.HandleFunc("/versions", s.handleSnapshot).Methods(http.MethodPost)
	sr.HandleFunc("/versions/{index:[0-9]+}", s.handleVersion).Methods(http.MethodGet)
	sr.HandleFunc("/versions/{index:[0-9]+}/restore", s.handleRestore).Methods(http.MethodPost)
	sr.HandleFunc("/versions/{index:[0-9]+}/diff", s.handleDiff).Methods(http.MethodGet)
	sr.HandleFunc("/keys", s.handleKey).Methods(http.MethodPost)

	// Backend-assisted
	sr.HandleFunc("/grammar", s.handleGrammar).Methods(http.MethodPost)
	sr.HandleFunc("/grammar/fix", s.handleGrammarFix).Methods(http.MethodPost)
	sr.HandleFunc("/generate", s.handleGenerate).Methods(http.MethodPost)
	sr.HandleFunc("/latex", s.handleLatex).Methods(http.MethodGet)
	sr.HandleFunc("/preview", s.handlePreview).Methods(http.MethodGet)

	sr.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	return r
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("daemon failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and closes every session, saving its
// history
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.manager.CloseAll()
	return err
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.http.Addr
}
