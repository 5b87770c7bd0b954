package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/api"
	"github.com/BaSui01/blockflow/codegen"
	"github.com/BaSui01/blockflow/plan"
)

// BuildHandler serves the stateless graph transforms.
type BuildHandler struct {
	logger *zap.Logger
}

// NewBuildHandler creates a build handler.
func NewBuildHandler(logger *zap.Logger) *BuildHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuildHandler{logger: logger.With(zap.String("component", "build_handler"))}
}

// Register mounts the build routes on mux.
func (h *BuildHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/codegen", h.HandleCodegen)
	mux.HandleFunc("POST /api/v1/plan", h.HandlePlan)
}

// HandleCodegen renders a graph as source text.
// @Summary Generate code
// @Tags build
// @Accept json
// @Produce json
// @Success 200 {object} Response{data=api.CodegenResponse}
// @Failure 400 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/codegen [post]
func (h *BuildHandler) HandleCodegen(w http.ResponseWriter, r *http.Request) {
	g, err := ReadGraphBody(w, r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, api.CodegenResponse{Code: codegen.GenerateGraph(g.Nodes, g.Edges)})
}

// HandlePlan returns the plan tree of a graph.
// @Summary Build plan
// @Tags build
// @Accept json
// @Produce json
// @Success 200 {object} Response{data=api.PlanResponse}
// @Failure 400 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/plan [post]
func (h *BuildHandler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	g, err := ReadGraphBody(w, r)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	nodes := plan.Build(g.Nodes, g.Edges)
	if nodes == nil {
		nodes = []plan.Node{}
	}
	WriteSuccess(w, r, api.PlanResponse{Plan: nodes, Size: plan.Size(nodes)})
}
