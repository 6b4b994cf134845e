package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/riskpilot/riskpilot/internal/calc"
	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/gates"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
	maxBodyBytes     = 64 << 10
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// parseLimit reads ?limit=, defaulting and capping it
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

func (s *Server) currentContext(w http.ResponseWriter) *types.RiskContext {
	rc := s.context.Current()
	if rc == nil {
		writeError(w, http.StatusServiceUnavailable, "no_context", "no risk context loaded")
	}
	return rc
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	if rc := s.context.Current(); rc != nil {
		resp["context_as_of"] = rc.AsOf
	}
	writeJSON(w, http.StatusOK, resp)
}

// AskRequest is the body of POST /v1/ask
type AskRequest struct {
	Text  string `json:"text"`
	Actor string `json:"actor,omitempty"`
}

// TurnResponse is the body returned for turns and resolutions
type TurnResponse struct {
	RunID            string                 `json:"run_id,omitempty"`
	Response         string                 `json:"response"`
	Trace            []types.ThinkingStep   `json:"trace"`
	RequiresApproval bool                   `json:"requires_approval"`
	Pending          *types.PendingApproval `json:"pending,omitempty"`
}

// NewTurnResponse converts a gate result for the wire
func NewTurnResponse(res *gates.Result) TurnResponse {
	return TurnResponse{
		RunID:            res.RunID,
		Response:         res.Response,
		Trace:            res.Trace,
		RequiresApproval: res.RequiresApproval,
		Pending:          res.Pending,
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	rc := s.currentContext(w)
	if rc == nil {
		return
	}

	res, err := s.copilot.Run(r.Context(), gates.Request{Text: req.Text, Context: rc, Actor: req.Actor})
	if err != nil {
		var missing *types.MissingContextError
		if errors.As(err, &missing) {
			writeError(w, http.StatusUnprocessableEntity, "missing_context", err.Error())
			return
		}
		s.logger.Error("turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "turn_failed", err.Error())
		return
	}

	status := http.StatusOK
	if res.RequiresApproval {
		status = http.StatusAccepted
	}
	writeJSON(w, status, NewTurnResponse(res))
}

func (s *Server) handleApprovalsList(w http.ResponseWriter, r *http.Request) {
	raw := strings.ToLower(r.URL.Query().Get("status"))
	var (
		list []*types.PendingApproval
		err  error
	)
	switch raw {
	case "", string(types.ApprovalPending):
		list, err = s.copilot.Pending(r.Context())
	case "all":
		list, err = s.store.ListApprovals(r.Context(), "")
	default:
		status := types.ApprovalStatus(raw)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid_request", "status must be pending, approved, rejected or all")
			return
		}
		list, err = s.store.ListApprovals(r.Context(), status)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if list == nil {
		list = []*types.PendingApproval{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"approvals": list, "count": len(list)})
}

func (s *Server) handleApprovalGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.copilot.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ResolveRequest is the body of the approve and reject routes
type ResolveRequest struct {
	ReviewedBy string `json:"reviewed_by"`
	Reason     string `json:"reason,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, types.DecisionApproved)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, types.DecisionRejected)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, decision types.Decision) {
	var req ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ReviewedBy) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "reviewed_by is required")
		return
	}
	res, err := s.copilot.Resolve(r.Context(), chi.URLParam(r, "id"), decision, req.ReviewedBy, req.Reason)
	if err != nil {
		writeGateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewTurnResponse(res))
}

func writeGateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gates.ErrApprovalNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, gates.ErrApprovalNotPending):
		writeError(w, http.StatusConflict, "not_pending", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleRunsList(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if runs == nil {
		runs = []*types.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "count": len(runs)})
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "not_found", "run not found: "+id)
		return
	}
	trail, err := s.store.GetEventsByRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run, "events": trail})
}

func (s *Server) handleEventsList(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	q := r.URL.Query()
	filter := events.EventFilter{
		RunID:      q.Get("run_id"),
		ApprovalID: q.Get("approval_id"),
		Type:       events.EventType(q.Get("type")),
		Severity:   events.EventSeverity(q.Get("severity")),
		Limit:      limit,
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "since must be RFC3339")
			return
		}
		filter.AfterTime = since
	}
	list, err := s.store.GetEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if list == nil {
		list = []*events.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": list, "count": len(list)})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	rc := s.currentContext(w)
	if rc == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"as_of":        rc.AsOf,
		"summary":      riskctx.Summarize(rc.Limits),
		"hedge_limits": s.auditor.Limits(),
		"global":       compliance.CheckGlobal(rc, s.global),
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	rc := s.currentContext(w)
	if rc == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"context":    rc,
		"metrics":    rc.Metrics(),
		"allocation": riskctx.Deviations(rc.Allocation),
	})
}

func (s *Server) handleScenariosList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"scenarios": calc.Presets()})
}

// ScenarioRunRequest names the presets to run; empty runs them all
type ScenarioRunRequest struct {
	Names []string `json:"names,omitempty"`
}

func (s *Server) handleScenariosRun(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRunRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	scenarios := calc.Presets()
	if len(req.Names) > 0 {
		scenarios = make([]calc.Scenario, 0, len(req.Names))
		for _, name := range req.Names {
			sc, ok := calc.Preset(name)
			if !ok {
				writeError(w, http.StatusNotFound, "not_found", "unknown scenario: "+name)
				return
			}
			scenarios = append(scenarios, sc)
		}
	}
	rc := s.currentContext(w)
	if rc == nil {
		return
	}
	results, err := calc.RunScenarios(r.Context(), rc, scenarios)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// handleStress runs a custom shock. Out-of-bounds shocks are rejected, not clamped.
func (s *Server) handleStress(w http.ResponseWriter, r *http.Request) {
	var shocks calc.Shocks
	if !decodeBody(w, r, &shocks) {
		return
	}
	if err := shocks.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	rc := s.currentContext(w)
	if rc == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shocks": shocks,
		"result": calc.Stress(rc, shocks),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{}
	if s.metrics != nil {
		resp["loop"] = s.metrics.GetAggregateMetrics()
	}
	if s.cost != nil {
		resp["cost"] = s.cost.GetStats()
	}
	writeJSON(w, http.StatusOK, resp)
}
