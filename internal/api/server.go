// Package api exposes the index service over HTTP.
package api

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"docsearch/internal/config"
	"docsearch/internal/domain"
	"docsearch/internal/service"
)

// IndexService is the subset of the index manager the HTTP layer depends on.
type IndexService interface {
	CreateIndex(ctx context.Context, name, dir string) (service.IngestStats, error)
	AddFiles(ctx context.Context, name, dir string) (service.IngestStats, error)
	Search(ctx context.Context, name, query, source string) ([]domain.SearchResult, error)
	ListSources(ctx context.Context, name string) ([]string, error)
	ExtractTexts(ctx context.Context, name, source string) ([]string, error)
	SaveTextToTemp(ctx context.Context, name, source string) (string, bool, error)
	DeleteIndex(ctx context.Context, name string) error
}

// Server wires handlers, middleware and the index service together.
type Server struct {
	svc      IndexService
	server   config.ServerConfig
	auth     config.AuthConfig
	docsDir  string
	logger   *zap.Logger
	validate *validator.Validate
}

// New creates a Server. Uploaded files are staged under cfg.Paths.Docs.
func New(svc IndexService, cfg *config.AppConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report parameter names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Server{
		svc:      svc,
		server:   cfg.Server,
		auth:     cfg.Auth,
		docsDir:  cfg.Paths.Docs,
		logger:   logger,
		validate: v,
	}
}

// Handler builds the routed and middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(RequestID, Recover(s.logger), AccessLog(s.logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	vs := router.PathPrefix("/vectorstore").Subrouter()
	if s.server.RateLimitPerMin > 0 {
		vs.Use(RateLimit(s.server.RateLimitPerMin))
	}
	vs.Use(MaxBodySize(s.server.MaxUploadMB << 20))
	if s.auth.Enabled {
		vs.Use(BasicAuth(s.auth.Username, s.auth.AuthPassword()))
	}
	vs.HandleFunc("/create", s.handleCreate).Methods(http.MethodPost)
	vs.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	vs.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)
	vs.HandleFunc("/texts_by_source", s.handleTextsBySource).Methods(http.MethodGet)
	vs.HandleFunc("/save_temp", s.handleSaveTemp).Methods(http.MethodPost)
	vs.HandleFunc("/add_files", s.handleAddFiles).Methods(http.MethodPost)
	vs.HandleFunc("/delete", s.handleDelete).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	origins := s.server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// HTTPServer returns an http.Server for the configured address and timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(s.server.ReadTimeoutSecs) * time.Second,
		WriteTimeout:      time.Duration(s.server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
