package dto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// StepSpec is one workflow step as submitted over HTTP. Timeout is a Go
// duration string ("30s", "2m").
type StepSpec struct {
	ID        string         `json:"id" binding:"required"`
	Agent     string         `json:"agent" binding:"required"`
	DependsOn []string       `json:"depends_on,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Timeout   string         `json:"timeout,omitempty"`
	Required  bool           `json:"required,omitempty"`
}

// WorkflowRequest is the body of POST /api/v1/workflows/run.
type WorkflowRequest struct {
	WorkflowID string     `json:"workflow_id,omitempty"`
	Steps      []StepSpec `json:"steps" binding:"required"`
}

// Validate performs validation on WorkflowRequest
func (r *WorkflowRequest) Validate() error {
	if len(r.Steps) == 0 {
		return errors.New("steps cannot be empty")
	}
	for _, s := range r.Steps {
		if strings.TrimSpace(s.ID) == "" {
			return errors.New("step id cannot be empty")
		}
		if strings.TrimSpace(s.Agent) == "" {
			return fmt.Errorf("step %q has no agent", s.ID)
		}
		if s.Timeout != "" {
			if _, err := time.ParseDuration(s.Timeout); err != nil {
				return fmt.Errorf("step %q has invalid timeout %q", s.ID, s.Timeout)
			}
		}
	}
	return nil
}

// ToSteps converts the request into coordinator workflow steps. Validate
// must have passed.
func (r *WorkflowRequest) ToSteps() []types.WorkflowStep {
	steps := make([]types.WorkflowStep, len(r.Steps))
	for i, s := range r.Steps {
		var timeout time.Duration
		if s.Timeout != "" {
			timeout, _ = time.ParseDuration(s.Timeout)
		}
		steps[i] = types.WorkflowStep{
			ID:        s.ID,
			Agent:     s.Agent,
			DependsOn: s.DependsOn,
			Params:    s.Params,
			Timeout:   timeout,
			Required:  s.Required,
		}
	}
	return steps
}

// StepResult is one step outcome in a workflow response.
type StepResult struct {
	StepID     string `json:"step_id"`
	Agent      string `json:"agent"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	SkippedBy  string `json:"skipped_by,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Payload    any    `json:"payload,omitempty"`
}

// WorkflowResponse is the body of a finished workflow run.
type WorkflowResponse struct {
	WorkflowID string       `json:"workflow_id,omitempty"`
	Status     string       `json:"status"`
	Steps      []StepResult `json:"steps"`
}
