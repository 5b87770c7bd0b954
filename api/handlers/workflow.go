package handlers

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/api"
	"github.com/BaSui01/blockflow/codegen"
	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/store"
	"github.com/BaSui01/blockflow/types"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
)

// =============================================================================
// Workflow Handler
// =============================================================================

// WorkflowHandler serves saved graphs, their versions, drafts and run records.
type WorkflowHandler struct {
	graphs store.GraphStore
	drafts store.DraftStore
	runs   store.RunStore
	logger *zap.Logger
}

// NewWorkflowHandler creates a workflow handler.
func NewWorkflowHandler(graphs store.GraphStore, drafts store.DraftStore, runs store.RunStore, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{
		graphs: graphs,
		drafts: drafts,
		runs:   runs,
		logger: logger.With(zap.String("component", "workflow_handler")),
	}
}

// Register mounts the workflow routes on mux.
func (h *WorkflowHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/workflows/{id}", h.HandleGet)
	mux.HandleFunc("PUT /api/v1/workflows/{id}", h.HandleSave)
	mux.HandleFunc("GET /api/v1/workflows/{id}/versions", h.HandleListVersions)
	mux.HandleFunc("GET /api/v1/workflows/{id}/versions/{version}", h.HandleGetVersion)
	mux.HandleFunc("POST /api/v1/workflows/{id}/versions/{version}/activate", h.HandleActivateVersion)
	mux.HandleFunc("DELETE /api/v1/workflows/{id}/versions/{version}", h.HandleDeleteVersion)
	mux.HandleFunc("GET /api/v1/workflows/{id}/draft", h.HandleGetDraft)
	mux.HandleFunc("PUT /api/v1/workflows/{id}/draft", h.HandlePutDraft)
	mux.HandleFunc("DELETE /api/v1/workflows/{id}/draft", h.HandleDeleteDraft)
	mux.HandleFunc("GET /api/v1/workflows/{id}/runs", h.HandleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.HandleGetRun)
}

// HandleGet returns the active graph and its generated code.
// @Summary Get workflow
// @Tags workflow
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} Response{data=api.WorkflowResponse}
// @Failure 404 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id} [get]
func (h *WorkflowHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g, err := h.graphs.Load(r.Context(), id)
	if err != nil {
		h.writeNotFound(w, r, err, types.ErrWorkflowNotFound, "workflow not found")
		return
	}
	WriteSuccess(w, r, api.WorkflowResponse{
		WorkflowID: id,
		Graph:      g,
		Code:       codegen.GenerateGraph(g.Nodes, g.Edges),
	})
}

// HandleSave validates the editor JSON body, generates code and stores both as
// a new active version.
// @Summary Save workflow
// @Tags workflow
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 201 {object} Response{data=api.SaveWorkflowResponse}
// @Failure 400 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id} [put]
func (h *WorkflowHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	g, err := ReadGraphBody(w, r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	code := codegen.GenerateGraph(g.Nodes, g.Edges)
	v, err := h.graphs.Save(r.Context(), r.PathValue("id"), g, code)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	h.logger.Info("workflow saved",
		zap.String("workflow_id", v.WorkflowID),
		zap.String("version", v.Name),
		zap.Int("nodes", len(g.Nodes)),
	)
	WriteStatus(w, r, http.StatusCreated, api.SaveWorkflowResponse{Version: v, Code: code})
}

// HandleListVersions lists versions latest first.
// @Summary List versions
// @Tags workflow
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} Response{data=api.VersionList}
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id}/versions [get]
func (h *WorkflowHandler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.graphs.ListVersions(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if versions == nil {
		versions = []store.Version{}
	}
	WriteSuccess(w, r, api.VersionList{Versions: versions})
}

// HandleGetVersion returns one version with its graph and code.
// @Summary Get version
// @Tags workflow
// @Produce json
// @Param id path string true "Workflow ID"
// @Param version path string true "Version name"
// @Success 200 {object} Response{data=store.Snapshot}
// @Failure 404 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id}/versions/{version} [get]
func (h *WorkflowHandler) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	snap, err := h.graphs.LoadVersion(r.Context(), r.PathValue("id"), r.PathValue("version"))
	if err != nil {
		h.writeNotFound(w, r, err, types.ErrVersionNotFound, "version not found")
		return
	}
	WriteSuccess(w, r, snap)
}

// HandleActivateVersion makes a version the one Load returns.
// @Summary Activate version
// @Tags workflow
// @Param id path string true "Workflow ID"
// @Param version path string true "Version name"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id}/versions/{version}/activate [post]
func (h *WorkflowHandler) HandleActivateVersion(w http.ResponseWriter, r *http.Request) {
	id, name := r.PathValue("id"), r.PathValue("version")
	if err := h.graphs.ActivateVersion(r.Context(), id, name); err != nil {
		h.writeNotFound(w, r, err, types.ErrVersionNotFound, "version not found")
		return
	}
	h.logger.Info("version activated", zap.String("workflow_id", id), zap.String("version", name))
	WriteSuccess(w, r, map[string]string{"workflow_id": id, "active": name})
}

// HandleDeleteVersion removes an inactive version.
// @Summary Delete version
// @Tags workflow
// @Param id path string true "Workflow ID"
// @Param version path string true "Version name"
// @Success 204
// @Failure 404 {object} Response
// @Failure 409 {object} Response "Version is active"
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id}/versions/{version} [delete]
func (h *WorkflowHandler) HandleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	if err := h.graphs.DeleteVersion(r.Context(), r.PathValue("id"), r.PathValue("version")); err != nil {
		h.writeNotFound(w, r, err, types.ErrVersionNotFound, "version not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetDraft returns the unsaved editor graph.
// @Summary Get draft
// @Tags draft
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} Response{data=store.Draft}
// @Failure 404 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id}/draft [get]
func (h *WorkflowHandler) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.drafts.GetDraft(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeNotFound(w, r, err, types.ErrNotFound, "draft not found")
		return
	}
	WriteSuccess(w, r, d)
}

// HandlePutDraft replaces the draft. Drafts are work in progress, so only the
// JSON shape is checked.
// @Summary Put draft
// @Tags draft
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} Response{data=store.Draft}
// @Failure 400 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id}/draft [put]
func (h *WorkflowHandler) HandlePutDraft(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "failed to read body").WithCause(err), h.logger)
		return
	}
	g, err := graph.ParseJSON(data)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "invalid graph JSON").WithCause(err), h.logger)
		return
	}
	d, err := h.drafts.PutDraft(r.Context(), r.PathValue("id"), g)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, d)
}

// HandleDeleteDraft discards the draft. Deleting a missing draft succeeds.
// @Summary Delete draft
// @Tags draft
// @Param id path string true "Workflow ID"
// @Success 204
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id}/draft [delete]
func (h *WorkflowHandler) HandleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.DeleteDraft(r.Context(), r.PathValue("id")); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListRuns lists run records newest first. ?limit= bounds the result.
// @Summary List runs
// @Tags run
// @Produce json
// @Param id path string true "Workflow ID"
// @Param limit query int false "Maximum records" default(50)
// @Success 200 {object} Response{data=api.RunList}
// @Failure 400 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/workflows/{id}/runs [get]
func (h *WorkflowHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteErrorMessage(w, r, types.ErrInvalidRequest, "limit must be a positive integer", h.logger)
			return
		}
		limit = min(n, maxRunLimit)
	}
	runs, err := h.runs.ListRuns(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	WriteSuccess(w, r, api.RunList{Runs: runs})
}

// HandleGetRun returns one run record.
// @Summary Get run
// @Tags run
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} Response{data=store.Run}
// @Failure 404 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/runs/{id} [get]
func (h *WorkflowHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeNotFound(w, r, err, types.ErrNotFound, "run not found")
		return
	}
	WriteSuccess(w, r, run)
}

// writeNotFound narrows store.ErrNotFound to a resource-specific code.
func (h *WorkflowHandler) writeNotFound(w http.ResponseWriter, r *http.Request, err error, code types.ErrorCode, msg string) {
	if types.GetErrorCode(ToAPIError(err)) == types.ErrNotFound {
		err = types.NewError(code, msg).WithCause(err)
	}
	WriteError(w, r, err, h.logger)
}
