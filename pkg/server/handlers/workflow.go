package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/server/dto"
)

// WorkflowHandler handles workflow execution requests
type WorkflowHandler struct {
	engine *controlgraph.Client
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(engine *controlgraph.Client) *WorkflowHandler {
	return &WorkflowHandler{engine: engine}
}

// Run handles POST /api/v1/workflows/run
func (h *WorkflowHandler) Run(c *gin.Context) {
	var req dto.WorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	result, err := h.engine.RunWorkflow(c.Request.Context(), req.WorkflowID, req.ToSteps())
	if err != nil {
		writeError(c, "workflow_failed", err)
		return
	}

	resp := dto.WorkflowResponse{
		WorkflowID: req.WorkflowID,
		Status:     string(result.Status),
	}
	for _, r := range result.StepResults() {
		step := dto.StepResult{
			StepID:     r.StepID,
			Agent:      r.Agent,
			Status:     string(r.Status),
			SkippedBy:  r.SkippedBy,
			DurationMS: r.Duration().Milliseconds(),
			Payload:    r.Payload,
		}
		if r.Err != nil {
			step.Error = r.Err.Message
			step.ErrorKind = string(r.Err.Kind)
		}
		resp.Steps = append(resp.Steps, step)
	}
	c.JSON(http.StatusOK, resp)
}
