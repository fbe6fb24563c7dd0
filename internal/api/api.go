// Package api exposes sampling runs and the risk band table over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/luki/heatrisk/internal/aggregate"
	"github.com/luki/heatrisk/internal/compare"
	"github.com/luki/heatrisk/internal/pipeline"
	"github.com/luki/heatrisk/internal/risk"
	"github.com/luki/heatrisk/internal/sensor"
	"github.com/luki/heatrisk/internal/wbgt"
)

// Runner performs one measurement run.
type Runner interface {
	Run(ctx context.Context, ref compare.Reference) (pipeline.Report, error)
}

// Server serves the HTTP API.
type Server struct {
	runner Runner
	ref    compare.Reference // used when a request carries no reference
	log    *slog.Logger
}

// NewServer creates a Server. defaultRef may be incomplete, in which case
// every request must supply its own reference.
func NewServer(r Runner, defaultRef compare.Reference, log *slog.Logger) *Server {
	return &Server{runner: r, ref: defaultRef, log: log}
}

// Handler returns the routed handler wrapped with access logging and panic
// recovery. Access logs go to accessLog.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/bands", s.bands).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.startRun).Methods(http.MethodPost)

	return handlers.RecoveryHandler()(handlers.LoggingHandler(accessLog, r))
}

type runRequest struct {
	Reference *compare.Reference `json:"reference"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) bands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, risk.Bands())
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
			return
		}
	}

	ref := s.ref
	if req.Reference != nil {
		ref = *req.Reference
	}
	if ref.WBGT == nil && ref.Temperature != nil && ref.Humidity != nil {
		derived, err := compare.ReferenceFromConditions(*ref.Temperature, *ref.Humidity)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		ref = derived
	}

	report, err := s.runner.Run(r.Context(), ref)
	if err != nil {
		status := statusFor(err)
		s.log.Warn("run_request_failed", "status", status, "error", err)
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// statusFor maps the run error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		incomplete *compare.IncompleteInputError
		rangeErr   *risk.RangeError
		transport  *sensor.TransportError
		parse      *sensor.ParseError
		domain     *wbgt.DomainError
		agg        *aggregate.AggregationError
	)
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &incomplete):
		return http.StatusBadRequest
	case errors.As(err, &rangeErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transport):
		return http.StatusServiceUnavailable
	case errors.As(err, &parse), errors.As(err, &domain), errors.As(err, &agg):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
