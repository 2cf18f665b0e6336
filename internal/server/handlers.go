package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ppiankov/vitalscribe/internal/extract"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/pipeline"
	"github.com/ppiankov/vitalscribe/internal/validate"
)

type validateRequest struct {
	FieldID         model.FieldID `json:"fieldId"`
	Value           string        `json:"value"`
	ConfidenceScore *float64      `json:"confidenceScore,omitempty"`
}

type batchRequest struct {
	Extractions []model.FieldExtraction `json:"extractions"`
}

type batchResponse struct {
	Extractions []model.ValidatedExtraction `json:"extractions"`
	Summary     model.ValidationSummary     `json:"summary"`
	Findings    []validate.Finding          `json:"findings"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if !s.decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	report, err := s.opts.Processor.Process(r.Context(), req)
	switch {
	case errors.Is(err, pipeline.ErrMissingAssessment), errors.Is(err, extract.ErrEmptyTranscript):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error("Extraction failed", zap.String("assessment_id", req.AssessmentID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(string(req.FieldID)) == "" {
		writeError(w, http.StatusBadRequest, "fieldId is required")
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Validator.Validate(req.FieldID, req.Value, req.ConfidenceScore))
}

func (s *Server) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}

	items, findings := s.opts.Validator.ValidateAll(req.Extractions)
	if findings == nil {
		findings = []validate.Finding{}
	}
	writeJSON(w, http.StatusOK, batchResponse{
		Extractions: items,
		Summary:     validate.Summarize(items),
		Findings:    findings,
	})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.opts.Rebuilder == nil {
		writeError(w, http.StatusServiceUnavailable, "embedding service not configured")
		return
	}

	report, err := s.opts.Rebuilder.Rebuild(r.Context())
	if err != nil {
		s.log.Error("Index rebuild failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	var defs []model.FieldDefinition
	if section := r.URL.Query().Get("section"); section != "" {
		defs = s.opts.Catalog.BySection(section)
	} else {
		defs = s.opts.Catalog.All()
	}
	if defs == nil {
		defs = []model.FieldDefinition{}
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	id := model.FieldID(chi.URLParam(r, "id"))
	def, ok := s.opts.Catalog.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, model.ErrUnknownField.Error()+": "+string(id))
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handleAssessmentFields(w http.ResponseWriter, r *http.Request) {
	if s.opts.Values == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}

	values, err := s.opts.Values.ListFieldValues(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if values == nil {
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, values)
}
