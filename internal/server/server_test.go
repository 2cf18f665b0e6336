package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/extract"
	"github.com/ppiankov/vitalscribe/internal/index"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/pipeline"
	"github.com/ppiankov/vitalscribe/internal/store"
	"github.com/ppiankov/vitalscribe/internal/validate"
)

type fakeRebuilder struct {
	report *index.RebuildReport
	err    error
}

func (f *fakeRebuilder) Rebuild(ctx context.Context) (*index.RebuildReport, error) {
	return f.report, f.err
}

func newTestServer(t *testing.T, rebuilder Rebuilder) (*httptest.Server, store.Store) {
	t.Helper()

	st, err := store.Open(store.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cat := catalog.MustDefault()
	v := validate.New(cat, nil)
	p := pipeline.New(extract.New(extract.Options{Catalog: cat}, nil), v, st, time.Second, nil)

	srv := New(Options{
		Processor: p,
		Validator: v,
		Rebuilder: rebuilder,
		Catalog:   cat,
		Values:    st,
		Health:    st,
	}, nil)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, st
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestExtractEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/extract",
		`{"assessmentId": "a-1", "transcript": "Patient's temp is 38.2, BP 130 over 85, pulse 76, denies falls."}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report model.Report
	decode(t, resp, &report)
	assert.Equal(t, "a-1", report.AssessmentID)
	assert.Equal(t, "pattern", report.Strategy)
	assert.Len(t, report.Extractions, 4)
	assert.Equal(t, 4, report.Summary.ValidFields)

	resp = get(t, ts.URL+"/api/assessments/a-1/fields")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var values []store.FieldValue
	decode(t, resp, &values)
	assert.Len(t, values, 4)
}

func TestExtractPreconditions(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	for _, body := range []string{
		`{"transcript": "pulse 76"}`,
		`{"assessmentId": "a-1", "transcript": "  "}`,
		`{not json`,
	} {
		resp := post(t, ts.URL+"/api/extract", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

		var e map[string]string
		decode(t, resp, &e)
		assert.NotEmpty(t, e["error"])
	}
}

func TestValidateEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/validate", `{"fieldId": "pain_scale", "value": "13"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res model.ValidationResult
	decode(t, resp, &res)
	assert.False(t, res.IsValid)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "10")

	resp = post(t, ts.URL+"/api/validate", `{"fieldId": "temperature", "value": "39.5", "confidenceScore": 0.9}`)
	var temp model.ValidationResult
	decode(t, resp, &temp)
	assert.True(t, temp.IsValid)
	assert.NotEmpty(t, temp.Warnings)

	resp = post(t, ts.URL+"/api/validate", `{"value": "x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateBatchEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/validate/batch", `{"extractions": [
		{"fieldId": "bp_systolic", "sectionId": "vital_signs", "value": "80"},
		{"fieldId": "bp_diastolic", "sectionId": "vital_signs", "value": "90"}
	]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out batchResponse
	decode(t, resp, &out)
	require.Len(t, out.Extractions, 2)
	for _, e := range out.Extractions {
		assert.False(t, e.Validation.IsValid, e.FieldID)
	}
	assert.Equal(t, 2, out.Summary.FieldsWithErrors)
	require.Len(t, out.Findings, 1)
	assert.Equal(t, "bp_order", out.Findings[0].Rule)
}

func TestFieldsEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/api/fields")
	var all []model.FieldDefinition
	decode(t, resp, &all)
	assert.Equal(t, catalog.MustDefault().Len(), len(all))

	resp = get(t, ts.URL+"/api/fields?section=vital_signs")
	var vitals []model.FieldDefinition
	decode(t, resp, &vitals)
	require.NotEmpty(t, vitals)
	for _, d := range vitals {
		assert.Equal(t, "vital_signs", d.SectionID)
	}

	resp = get(t, ts.URL+"/api/fields/pulse")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var def model.FieldDefinition
	decode(t, resp, &def)
	assert.Equal(t, catalog.Pulse, def.ID)

	resp = get(t, ts.URL+"/api/fields/not_a_real_field")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResponsesUseCamelCase(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := get(t, ts.URL+"/api/fields/pulse")
	var def map[string]interface{}
	decode(t, resp, &def)
	assert.Contains(t, def, "fieldId")
	assert.Contains(t, def, "sectionId")
	assert.Contains(t, def, "validationRules")
	assert.NotContains(t, def, "field_id")

	resp = post(t, ts.URL+"/api/extract", `{"assessmentId": "a-2", "transcript": "pulse 76"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report map[string]interface{}
	decode(t, resp, &report)
	assert.Equal(t, "a-2", report["assessmentId"])
	assert.Contains(t, report, "transcriptId")
	extractions, ok := report["extractions"].([]interface{})
	require.True(t, ok)
	require.Len(t, extractions, 1)
	first := extractions[0].(map[string]interface{})
	assert.Equal(t, "pulse", first["fieldId"])

	resp = get(t, ts.URL+"/api/assessments/a-2/fields")
	var values []map[string]interface{}
	decode(t, resp, &values)
	require.Len(t, values, 1)
	assert.Equal(t, "ai-filled", values[0]["dataSource"])
}

func TestRebuildEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp := post(t, ts.URL+"/api/index/rebuild", `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ts, _ = newTestServer(t, &fakeRebuilder{report: &index.RebuildReport{SuccessCount: 190, Model: "m"}})
	resp = post(t, ts.URL+"/api/index/rebuild", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report index.RebuildReport
	decode(t, resp, &report)
	assert.Equal(t, 190, report.SuccessCount)

	ts, _ = newTestServer(t, &fakeRebuilder{err: errors.New("no field embedded")})
	resp = post(t, ts.URL+"/api/index/rebuild", `{}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts, st := newTestServer(t, nil)

	resp := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, st.Close())
	resp = get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRejectsNonJSONContentType(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/validate", "text/plain", strings.NewReader("pulse"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}
