package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/luki/heatrisk/internal/aggregate"
	"github.com/luki/heatrisk/internal/compare"
	"github.com/luki/heatrisk/internal/pipeline"
	"github.com/luki/heatrisk/internal/risk"
	"github.com/luki/heatrisk/internal/sensor"
)

type stubRunner struct {
	got compare.Reference
	err error
}

func (s *stubRunner) Run(_ context.Context, ref compare.Reference) (pipeline.Report, error) {
	s.got = ref
	if s.err != nil {
		return pipeline.Report{}, s.err
	}
	sample := aggregate.Sample{Temperature: 29, Humidity: 65, WBGT: 26, Count: 5}
	deltas, err := compare.Diff(sample, ref)
	if err != nil {
		return pipeline.Report{}, err
	}
	return pipeline.Report{RunID: uuid.New(), Sample: sample, Tier: risk.Moderate, Deltas: deltas}, nil
}

func newTestServer(r Runner, ref compare.Reference) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(r, ref, log).Handler(io.Discard)
}

func TestHealth(t *testing.T) {
	h := newTestServer(&stubRunner{}, compare.Reference{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}

func TestBands(t *testing.T) {
	h := newTestServer(&stubRunner{}, compare.Reference{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bands", nil))

	var got []struct {
		Lower float64 `json:"lower"`
		Upper float64 `json:"upper"`
		Tier  string  `json:"tier"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 || got[0].Tier != "MINIMAL" || got[3].Upper != 35 {
		t.Errorf("bands: got %+v", got)
	}
}

func TestStartRunWithDefaultReference(t *testing.T) {
	sr := &stubRunner{}
	h := newTestServer(sr, compare.NewReference(30, 50, 24))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	var rep struct {
		Tier   string          `json:"tier"`
		Deltas []compare.Delta `json:"deltas"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.Tier != "MODERATE" || len(rep.Deltas) != 3 || rep.Deltas[2].Difference != 2 {
		t.Errorf("report: got %+v", rep)
	}
}

func TestStartRunDerivesReferenceWBGT(t *testing.T) {
	sr := &stubRunner{}
	h := newTestServer(sr, compare.Reference{})

	body := strings.NewReader(`{"reference":{"temperature":20,"humidity":50}}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}
	if sr.got.WBGT == nil || *sr.got.WBGT != 15.59 {
		t.Errorf("reference wbgt not derived: %+v", sr.got)
	}
}

func TestStartRunErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pipeline.ErrBusy, http.StatusConflict},
		{&compare.IncompleteInputError{Missing: []string{"reference wbgt"}}, http.StatusBadRequest},
		{fmt.Errorf("classify: %w", &risk.RangeError{WBGT: 40}), http.StatusUnprocessableEntity},
		{&sensor.TransportError{Op: "open", Err: errors.New("gone")}, http.StatusServiceUnavailable},
		{&aggregate.AggregationError{Index: 1, Err: &sensor.ParseError{Line: "x"}}, http.StatusBadGateway},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := newTestServer(&stubRunner{err: tt.err}, compare.NewReference(1, 2, 3))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", nil))
		if rec.Code != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestStartRunBadBody(t *testing.T) {
	h := newTestServer(&stubRunner{}, compare.Reference{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(&stubRunner{}, compare.Reference{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rec.Code)
	}
}
