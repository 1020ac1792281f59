/**
 * HTTP API for contract upload and analysis.
 *
 * Exposes document upload (which runs the full ingestion pipeline), agent
 * based analysis over indexed collections, stored analysis history, and a
 * health endpoint.
 */

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"

	"github.com/MuthuAjay/contracts-v3/internal/agents"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
	"github.com/MuthuAjay/contracts-v3/internal/pipeline"
	"github.com/MuthuAjay/contracts-v3/internal/storage"
)

// DocumentIndexer processes an uploaded file and indexes it for retrieval.
type DocumentIndexer interface {
	ProcessAndIndex(ctx context.Context, filePath string) (*pipeline.Result, error)
}

// ContractAnalyzer runs agent analyses over an indexed collection.
type ContractAnalyzer interface {
	Analyze(ctx context.Context, collectionName string, role agents.Role, customQuery string) (*agents.Analysis, error)
	AnalyzeAll(ctx context.Context, collectionName string) map[agents.Role]*agents.Analysis
}

// HistoryStore reads stored analysis versions.
type HistoryStore interface {
	GetAnalysisVersions(ctx context.Context, collectionName, role string) ([]storage.AnalysisVersion, error)
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr        string
	MaxFileSize int64

	// UploadDir receives uploaded files before processing. Empty means the
	// system temp directory.
	UploadDir string
}

// Server is the HTTP API server.
type Server struct {
	cfg       ServerConfig
	indexer   DocumentIndexer
	analyzer  ContractAnalyzer
	history   HistoryStore
	readiness map[string]func(context.Context) error
	http      *http.Server
	logger    log.Logger
}

// NewServer creates the API server. The history store may be nil, in which
// case the versions endpoint reports the feature as unavailable.
func NewServer(cfg ServerConfig, indexer DocumentIndexer, analyzer ContractAnalyzer, history HistoryStore) *Server {
	s := &Server{
		cfg:       cfg,
		indexer:   indexer,
		analyzer:  analyzer,
		history:   history,
		readiness: make(map[string]func(context.Context) error),
		logger:    logging.New("api"),
	}

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Post("/api/upload", s.handleUpload)
	r.Post("/api/analyze", s.handleAnalyze)
	r.Get("/api/collections/{collection}/analyses", s.handleAnalysisVersions)

	return r
}

// AddReadinessCheck registers a named backend check for the readiness
// endpoint. Register checks before calling Start.
func (s *Server) AddReadinessCheck(name string, check func(context.Context) error) {
	s.readiness[name] = check
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("starting HTTP server")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("stopping HTTP server")
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
