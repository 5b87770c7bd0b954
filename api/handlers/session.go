package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/api"
	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/internal/ctxkeys"
	"github.com/BaSui01/blockflow/session"
	"github.com/BaSui01/blockflow/store"
	"github.com/BaSui01/blockflow/types"
)

// =============================================================================
// Session Handler
// =============================================================================

// SessionHandler drives interpreter sessions over HTTP.
type SessionHandler struct {
	registry *session.Registry
	graphs   store.GraphStore
	runs     store.RunStore
	logger   *zap.Logger

	// event stream settings
	originPatterns []string
	eventBuffer    int
	pingInterval   time.Duration
	writeTimeout   time.Duration
}

// SessionOption configures a SessionHandler.
type SessionOption func(*SessionHandler)

// WithOriginPatterns sets the origins allowed to open event streams.
func WithOriginPatterns(patterns ...string) SessionOption {
	return func(h *SessionHandler) { h.originPatterns = patterns }
}

// WithEventBuffer sets how many events may queue per stream before the
// stream is closed as too slow.
func WithEventBuffer(n int) SessionOption {
	return func(h *SessionHandler) {
		if n > 0 {
			h.eventBuffer = n
		}
	}
}

// WithPingInterval sets the event stream keepalive interval.
func WithPingInterval(d time.Duration) SessionOption {
	return func(h *SessionHandler) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(registry *session.Registry, graphs store.GraphStore, runs store.RunStore, logger *zap.Logger, opts ...SessionOption) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &SessionHandler{
		registry:     registry,
		graphs:       graphs,
		runs:         runs,
		logger:       logger.With(zap.String("component", "session_handler")),
		eventBuffer:  256,
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the session routes on mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.HandleCreate)
	mux.HandleFunc("GET /api/v1/sessions", h.HandleList)
	mux.HandleFunc("GET /api/v1/sessions/{sid}", h.HandleGet)
	mux.HandleFunc("DELETE /api/v1/sessions/{sid}", h.HandleDelete)
	mux.HandleFunc("POST /api/v1/sessions/{sid}/step", h.HandleStep)
	mux.HandleFunc("POST /api/v1/sessions/{sid}/run", h.HandleRun)
	mux.HandleFunc("POST /api/v1/sessions/{sid}/reset", h.HandleReset)
	mux.HandleFunc("POST /api/v1/sessions/{sid}/restart", h.HandleRestart)
	mux.HandleFunc("PUT /api/v1/sessions/{sid}/graph", h.HandleRebuild)
	mux.HandleFunc("GET /api/v1/sessions/{sid}/events", h.HandleEvents)
}

// HandleCreate opens a session on the posted graph, or on the active version
// of workflow_id when no graph is given, and builds its trace.
// @Summary Create session
// @Tags session
// @Accept json
// @Produce json
// @Param request body api.CreateSessionRequest true "Graph source"
// @Success 201 {object} Response{data=api.SessionView}
// @Failure 400 {object} Response
// @Failure 422 {object} Response "Trace too large"
// @Failure 429 {object} Response "Session limit"
// @Security ApiKeyAuth
// @Router /api/v1/sessions [post]
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	var g graph.Graph
	var err error
	switch {
	case len(req.Graph) > 0:
		g, err = graph.Decode(req.Graph)
	case req.WorkflowID != "":
		g, err = h.graphs.Load(r.Context(), req.WorkflowID)
		if err != nil && types.GetErrorCode(ToAPIError(err)) == types.ErrNotFound {
			err = types.NewError(types.ErrWorkflowNotFound, "workflow not found").WithCause(err)
		}
	default:
		err = types.NewError(types.ErrInvalidRequest, "graph or workflow_id is required")
	}
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	entry, err := h.registry.Create(req.WorkflowID)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if _, err := entry.Controller.Rebuild(r.Context(), g.Nodes, g.Edges); err != nil {
		if rmErr := h.registry.Remove(entry.ID); rmErr != nil {
			h.logger.Warn("failed to remove session", zap.String("session_id", entry.ID), zap.Error(rmErr))
		}
		WriteError(w, r, err, h.logger)
		return
	}
	WriteStatus(w, r, http.StatusCreated, view(entry, true))
}

// HandleList lists live sessions.
// @Summary List sessions
// @Tags session
// @Produce json
// @Success 200 {object} Response{data=[]api.SessionView}
// @Security ApiKeyAuth
// @Router /api/v1/sessions [get]
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.List()
	out := make([]api.SessionView, 0, len(entries))
	for _, e := range entries {
		out = append(out, view(e, false))
	}
	WriteSuccess(w, r, out)
}

// HandleGet returns a session snapshot; ?queue=true includes the trace.
// @Summary Get session
// @Tags session
// @Produce json
// @Param sid path string true "Session ID"
// @Param queue query bool false "Include the queue"
// @Success 200 {object} Response{data=api.SessionView}
// @Failure 404 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{sid} [get]
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entry, r, ok := h.entry(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, r, view(entry, r.URL.Query().Get("queue") == "true"))
}

// HandleDelete closes a session.
// @Summary Delete session
// @Tags session
// @Param sid path string true "Session ID"
// @Success 204
// @Failure 404 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{sid} [delete]
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Remove(r.PathValue("sid")); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStep executes the item at the cursor.
// @Summary Step
// @Tags session
// @Produce json
// @Param sid path string true "Session ID"
// @Success 200 {object} Response{data=api.StepResponse}
// @Failure 409 {object} Response "Session busy"
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{sid}/step [post]
func (h *SessionHandler) HandleStep(w http.ResponseWriter, r *http.Request) {
	entry, r, ok := h.entry(w, r)
	if !ok {
		return
	}
	res, err := entry.Controller.Step(r.Context())
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, api.StepResponse{Step: res, Snapshot: entry.Controller.Snapshot(false)})
}

// HandleRun executes the remaining items and records the run.
// @Summary Run all
// @Tags session
// @Produce json
// @Param sid path string true "Session ID"
// @Success 200 {object} Response{data=api.RunResponse}
// @Failure 409 {object} Response "Session busy"
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{sid}/run [post]
func (h *SessionHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	entry, r, ok := h.entry(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := h.logger.With(zap.String("session_id", entry.ID))

	// Sessions opened on an unsaved graph have no workflow to file runs under.
	// The record is created only once the controller accepted the run, so a
	// rejected overlapping request leaves no trace in the run history.
	var run *store.Run
	var opts []session.RunOption
	if entry.WorkflowID != "" {
		opts = append(opts, session.WithRunStart(func(ctx context.Context) error {
			rec := &store.Run{WorkflowID: entry.WorkflowID, SessionID: entry.ID, Status: store.RunRunning}
			if err := h.runs.CreateRun(ctx, rec); err != nil {
				return err
			}
			run = rec
			return nil
		}))
	}

	res, runErr := entry.Controller.RunAll(ctx, opts...)

	resp := api.RunResponse{Result: res}
	if run != nil {
		h.finishRun(ctx, run, res, runErr, logger)
		resp.RunID = run.ID
	}
	if runErr != nil {
		WriteError(w, r, runErr, h.logger)
		return
	}
	resp.Snapshot = entry.Controller.Snapshot(false)
	WriteSuccess(w, r, resp)
}

// finishRun stores the outcome of a run. The record is finalised even when
// the client went away.
func (h *SessionHandler) finishRun(ctx context.Context, run *store.Run, res session.RunResult, runErr error, logger *zap.Logger) {
	run.Steps = res.Executed
	run.Failures = res.Failures
	run.Output = res.Stdout
	run.Error = res.Stderr
	run.Status = store.RunSucceeded
	switch {
	case runErr != nil:
		run.Status = store.RunFailed
		run.Error = runErr.Error()
	case res.Failures > 0 || res.Interrupted:
		run.Status = store.RunFailed
	}
	if err := h.runs.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to update run", zap.String("run_id", run.ID), zap.Error(err))
	}
	logger.Info("run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("steps", run.Steps),
		zap.Int("failures", run.Failures),
	)
}

// HandleReset rewinds the cursor and clears the logs.
// @Summary Reset
// @Tags session
// @Produce json
// @Param sid path string true "Session ID"
// @Success 200 {object} Response{data=session.Snapshot}
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{sid}/reset [post]
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	entry, r, ok := h.entry(w, r)
	if !ok {
		return
	}
	if err := entry.Controller.Reset(); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, entry.Controller.Snapshot(false))
}

// HandleRestart replaces the interpreter and resets.
// @Summary Restart interpreter
// @Tags session
// @Produce json
// @Param sid path string true "Session ID"
// @Success 200 {object} Response{data=session.Snapshot}
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{sid}/restart [post]
func (h *SessionHandler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	entry, r, ok := h.entry(w, r)
	if !ok {
		return
	}
	if err := entry.Controller.Restart(r.Context()); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, entry.Controller.Snapshot(false))
}

// HandleRebuild rebuilds the trace from an edited graph. The session resets
// only when the queue changed.
// @Summary Rebuild trace
// @Tags session
// @Accept json
// @Produce json
// @Param sid path string true "Session ID"
// @Success 200 {object} Response{data=api.RebuildResponse}
// @Failure 400 {object} Response
// @Failure 409 {object} Response "Session busy"
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{sid}/graph [put]
func (h *SessionHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	entry, r, ok := h.entry(w, r)
	if !ok {
		return
	}
	g, err := ReadGraphBody(w, r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	changed, err := entry.Controller.Rebuild(r.Context(), g.Nodes, g.Edges)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, api.RebuildResponse{Changed: changed, Snapshot: entry.Controller.Snapshot(false)})
}

// entry resolves {sid} and tags the request context with it.
func (h *SessionHandler) entry(w http.ResponseWriter, r *http.Request) (*session.Entry, *http.Request, bool) {
	sid := r.PathValue("sid")
	r = r.WithContext(ctxkeys.WithSessionID(r.Context(), sid))
	entry, err := h.registry.Get(sid)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return nil, r, false
	}
	return entry, r, true
}

func view(e *session.Entry, withQueue bool) api.SessionView {
	return api.SessionView{
		ID:         e.ID,
		WorkflowID: e.WorkflowID,
		CreatedAt:  e.CreatedAt,
		Snapshot:   e.Controller.Snapshot(withQueue),
	}
}
