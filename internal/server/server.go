// Package server exposes analysis and export over HTTP for a web front end.
// It keeps no state between requests: an export request carries the
// aggregate returned by a previous analysis request.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sanix-darker/mrnotes/internal/aggregate"
	"github.com/sanix-darker/mrnotes/internal/analysis"
	"github.com/sanix-darker/mrnotes/internal/export"
	"github.com/sanix-darker/mrnotes/internal/vcs"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 32 << 20
	shutdownTimeout = 10 * time.Second
)

// ClientFactory builds the GitLab client for one analysis request.
type ClientFactory func(cfg analysis.Config) (vcs.Client, error)

// Options configures a Server.
type Options struct {
	NewClient ClientFactory
	Workers   int
	Logger    *zap.Logger
}

// Server serves the HTTP API.
type Server struct {
	router    chi.Router
	newClient ClientFactory
	workers   int
	log       *zap.Logger
	validate  *validator.Validate
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Message string   `json:"message"`
	Details string   `json:"details,omitempty"`
	Causes  []string `json:"causes,omitempty"`
}

// AnalysisResponse is the body of a successful analysis request.
type AnalysisResponse struct {
	Aggregate *aggregate.Aggregate `json:"aggregate"`
	Summary   aggregate.Summary    `json:"summary"`
	Warnings  []analysis.Warning   `json:"warnings"`
	NotFound  []int                `json:"not_found,omitempty"`
}

// ExportRequest is the body of an export request. Omitted flags default to true.
type ExportRequest struct {
	Aggregate       *aggregate.Aggregate `json:"aggregate" validate:"required"`
	IncludeGeneral  *bool                `json:"include_general,omitempty"`
	IncludeSnippets *bool                `json:"include_snippets,omitempty"`
}

// New creates a Server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		newClient: opts.NewClient,
		workers:   opts.Workers,
		log:       log,
		validate:  validator.New(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/analysis", s.handleAnalysis)
		r.Post("/export/{format}", s.handleExport)
	})

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("server forced to shutdown", zap.Error(err))
		return err
	}
	s.log.Info("server exited")
	return nil
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var cfg analysis.Config
	if !s.decode(w, r, &cfg) {
		return
	}
	if cfg.Label == "" {
		cfg.Label = analysis.DefaultLabel
	}
	if err := cfg.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid payload", err)
		return
	}
	if s.newClient == nil {
		s.writeError(w, http.StatusInternalServerError, "No GitLab client configured", nil)
		return
	}

	client, err := s.newClient(cfg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Could not create GitLab client", err)
		return
	}

	res, err := analysis.Run(r.Context(), cfg, client,
		analysis.WithWorkers(s.workers),
		analysis.WithLogger(s.log),
	)
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, AnalysisResponse{
		Aggregate: res.Aggregate,
		Summary:   res.Aggregate.Summary(),
		Warnings:  res.Warnings,
		NotFound:  res.NotFound,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if format != "markdown" && format != "csv" {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown export format %q", format), nil)
		return
	}

	var req ExportRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			err = analysis.FormatValidationErrors(verrs)
		}
		s.writeError(w, http.StatusBadRequest, "Invalid payload", err)
		return
	}

	opts := export.DefaultOptions()
	if req.IncludeGeneral != nil {
		opts.IncludeGeneral = *req.IncludeGeneral
	}
	if req.IncludeSnippets != nil {
		opts.IncludeSnippets = *req.IncludeSnippets
	}
	agg := aggregate.Rebuild(req.Aggregate)

	var body, contentType, filename string
	switch format {
	case "markdown":
		body, contentType, filename = export.Markdown(agg, opts), "text/markdown; charset=utf-8", export.MarkdownFilename
		for _, err := range export.CheckSnippets(agg) {
			s.log.Debug("degraded snippet", zap.Error(err))
		}
	case "csv":
		out, err := export.CSV(agg, opts)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "Could not export CSV", err)
			return
		}
		body, contentType, filename = out, "text/csv; charset=utf-8", export.CSVFilename
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *vcs.AuthError
	var runErr *analysis.RunError
	switch {
	case r.Context().Err() != nil:
		s.log.Info("analysis cancelled by client", zap.Error(err))
	case errors.As(err, &authErr):
		s.writeError(w, http.StatusUnauthorized, "GitLab rejected the token", err)
	case errors.As(err, &runErr):
		resp := ErrorResponse{Message: runErr.Reason}
		for _, c := range runErr.Causes {
			resp.Causes = append(resp.Causes, c.Error())
		}
		s.writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		s.writeError(w, http.StatusBadGateway, "Analysis failed", err)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Could not parse JSON request body", err)
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Message: message}
	if err != nil {
		resp.Details = err.Error()
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
