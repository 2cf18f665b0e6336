// Package server exposes the extraction pipeline over an HTTP JSON API.
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
	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/index"
	"github.com/ppiankov/vitalscribe/internal/metrics"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/pipeline"
	"github.com/ppiankov/vitalscribe/internal/store"
	"github.com/ppiankov/vitalscribe/internal/validate"
)

// Processor runs the pipeline for one transcript
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*model.Report, error)
}

// FieldValidator validates single values and batches
type FieldValidator interface {
	Validate(fieldID model.FieldID, raw string, confidence *float64) model.ValidationResult
	ValidateAll(extractions []model.FieldExtraction) ([]model.ValidatedExtraction, []validate.Finding)
}

// Rebuilder regenerates the embedding index
type Rebuilder interface {
	Rebuild(ctx context.Context) (*index.RebuildReport, error)
}

// Catalog lists field definitions
type Catalog interface {
	All() []model.FieldDefinition
	BySection(sectionID string) []model.FieldDefinition
	Lookup(id model.FieldID) (model.FieldDefinition, bool)
}

// ValueLister reads persisted field values
type ValueLister interface {
	ListFieldValues(ctx context.Context, assessmentID string) ([]store.FieldValue, error)
}

// Pinger reports backend health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators. Rebuilder, Values and Health may be nil.
type Options struct {
	Processor    Processor
	Validator    FieldValidator
	Rebuilder    Rebuilder
	Catalog      Catalog
	Values       ValueLister
	Health       Pinger
	MaxBodyBytes int64
}

// Server handles API requests
type Server struct {
	opts Options
	log  *zap.Logger
}

// New creates a server
func New(opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = pipeline.DefaultMaxTranscriptBytes
	}
	return &Server{opts: opts, log: log}
}

// Router builds the chi router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/extract", s.handleExtract)
		r.Post("/validate", s.handleValidate)
		r.Post("/validate/batch", s.handleValidateBatch)
		r.Post("/index/rebuild", s.handleRebuild)
		r.Get("/fields", s.handleFields)
		r.Get("/fields/{id}", s.handleField)
		r.Get("/assessments/{id}/fields", s.handleAssessmentFields)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
