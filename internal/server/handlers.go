package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/huangsam/perfscope/core"
	"github.com/huangsam/perfscope/internal/contract"
	"github.com/huangsam/perfscope/internal/logging"
	"github.com/huangsam/perfscope/schema"
)

// maxIngestBytes caps one ingest request body.
const maxIngestBytes = 8 << 20

type errorBody struct {
	Error  string                `json:"error"`
	Fields []contract.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps domain errors onto HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	var verr *contract.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, contract.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, contract.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, contract.ErrStoreDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case contract.IsUpstream(err):
		logging.Err(err).Msg("data source failure")
		writeError(w, http.StatusBadGateway, "data source unavailable")
	default:
		logging.Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// requestConfig derives the analysis config of one request from the server's base
// config. Without start and end the base window length slides to end now.
func (s *Server) requestConfig(r *http.Request) (*contract.Config, error) {
	q := r.URL.Query()
	now := s.now().UTC()

	span := s.cfg.EndTime.Sub(s.cfg.StartTime)
	if span <= 0 {
		span = contract.DefaultLookbackDays * 24 * time.Hour
	}
	end := now
	if v := q.Get("end"); v != "" {
		t, err := contract.ParseTimeInput(v, now)
		if err != nil {
			return nil, fmt.Errorf("invalid end: %w", err)
		}
		end = t
	}
	start := end.Add(-span)
	if v := q.Get("start"); v != "" {
		t, err := contract.ParseTimeInput(v, now)
		if err != nil {
			return nil, fmt.Errorf("invalid start: %w", err)
		}
		start = t
	}
	if !start.Before(end) {
		return nil, errors.New("start must be before end")
	}

	cfg := s.cfg.CloneWithTimeWindow(start, end)
	cfg.Output = schema.JSONOut
	cfg.OutputFile = ""
	if v := q.Get("route"); v != "" {
		cfg.RouteFilter = v
	}
	if v := q.Get("device"); v != "" {
		cfg.DeviceFilter = v
	}
	if v := q.Get("platform"); v != "" {
		cfg.PlatformFilter = v
	}
	if v := q.Get("app_version"); v != "" {
		cfg.AppVersion = v
	}
	cfg.ResultLimit = limitParam(r, s.cfg.ResultLimit)
	return cfg, nil
}

// limitParam reads the limit query parameter. A missing, malformed or
// non-positive value falls back to def, and large values are capped.
func limitParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		n = 0
	}
	return contract.NormalizeLimit(n, def, contract.MaxResultLimit)
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"backend":      s.cfg.Backend,
		"live_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleAnalysis(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := s.requestConfig(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start := time.Now()
		result, err := core.RunAnalysis(r.Context(), cfg, s.mgr, name)
		s.metrics.ObserveAnalysis(name, time.Since(start))
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	batch, err := core.DecodeIngestBatch(http.MaxBytesReader(w, r.Body, maxIngestBytes))
	if err != nil {
		if contract.IsValidation(err) {
			writeFailure(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := core.IngestBatch(r.Context(), s.mgr.GetMetricWriter(), batch); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{
		"sessions": len(batch.Sessions),
		"metrics":  len(batch.Metrics),
	})
}

func (s *Server) alertStore(w http.ResponseWriter) (contract.AlertStore, bool) {
	alerts := s.mgr.GetAlertStore()
	if alerts == nil {
		writeFailure(w, contract.ErrStoreDisabled)
		return nil, false
	}
	return alerts, true
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	alerts, ok := s.alertStore(w)
	if !ok {
		return
	}
	enabledOnly := r.URL.Query().Get("enabled") == "true"
	configs, err := alerts.ListConfigs(r.Context(), enabledOnly)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	alerts, ok := s.alertStore(w)
	if !ok {
		return
	}
	var cfg schema.AlertConfig
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert config: "+err.Error())
		return
	}
	created, err := alerts.CreateConfig(r.Context(), cfg)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	alerts, ok := s.alertStore(w)
	if !ok {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := alerts.DeleteConfig(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	alerts, ok := s.alertStore(w)
	if !ok {
		return
	}
	limit := limitParam(r, s.cfg.ResultLimit)
	status := schema.AlertStatus(r.URL.Query().Get("status"))
	switch status {
	case "", schema.AlertActive, schema.AlertAcknowledged, schema.AlertResolved:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status: %q", status))
		return
	}
	instances, err := alerts.ListInstances(r.Context(), status, limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, instances)
}

func (s *Server) handleTransition(next schema.AlertStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alerts, ok := s.alertStore(w)
		if !ok {
			return
		}
		id, err := idParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		inst, err := core.TransitionAlert(r.Context(), alerts, id, next, s.now().UTC())
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	result, err := s.checker.Check(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.mgr.GetAnalysisStore()
	if runs == nil {
		writeFailure(w, contract.ErrStoreDisabled)
		return
	}
	limit := limitParam(r, s.cfg.ResultLimit)
	records, err := runs.ListRuns(limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	runs := s.mgr.GetAnalysisStore()
	if runs == nil {
		writeFailure(w, contract.ErrStoreDisabled)
		return
	}
	status, err := runs.GetStatus()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLiveSeries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buf.Series())
}
