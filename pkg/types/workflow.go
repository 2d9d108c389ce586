package types

import (
	"time"
)

// StepStatus is the terminal state of a workflow step.
type StepStatus string

const (
	// StepSuccess means the agent produced a payload.
	StepSuccess StepStatus = "success"
	// StepFailed means the agent returned an error; the error kind and
	// message are recorded on the result.
	StepFailed StepStatus = "failed"
	// StepSkipped means an upstream dependency did not succeed; SkippedBy
	// names the upstream step.
	StepSkipped StepStatus = "skipped"
	// StepTimedOut means the step exceeded its time budget.
	StepTimedOut StepStatus = "timed_out"
)

// Terminal reports whether the status is a terminal state. All four statuses
// are terminal; the zero value is not.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepSuccess, StepFailed, StepSkipped, StepTimedOut:
		return true
	}
	return false
}

// WorkflowStep is one unit of agent work in a declarative workflow. The step
// set plus dependency edges must form an acyclic directed graph; the
// coordinator validates this before executing anything.
type WorkflowStep struct {
	ID        string         `json:"id" yaml:"id"`
	Agent     string         `json:"agent" yaml:"agent"`
	DependsOn []string       `json:"depends_on,omitempty" yaml:"depends_on"`
	Params    map[string]any `json:"params,omitempty" yaml:"params"`
	Timeout   time.Duration  `json:"timeout,omitempty" yaml:"timeout"`
	Required  bool           `json:"required,omitempty" yaml:"required"`
}

// Validate checks the step specification.
func (s *WorkflowStep) Validate() error {
	if s.ID == "" {
		return NewError(KindConfiguration, "workflow step has empty id")
	}
	if s.Agent == "" {
		return NewError(KindConfiguration, "step %q has no agent", s.ID)
	}
	for _, dep := range s.DependsOn {
		if dep == s.ID {
			return NewError(KindConfiguration, "step %q depends on itself", s.ID)
		}
	}
	return nil
}

// StepError is the (kind, message) pair recorded on a failed result.
type StepError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// AgentResult is the outcome of one workflow step. It is written exactly once
// by the step that owns it and never mutated afterwards; the coordinator's
// result map only ever receives completed results.
type AgentResult struct {
	StepID     string      `json:"step_id"`
	Agent      string      `json:"agent"`
	Status     StepStatus  `json:"status"`
	Payload    any         `json:"payload,omitempty"`
	Err        *StepError  `json:"error,omitempty"`
	SkippedBy  string      `json:"skipped_by,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Duration returns the wall time the step spent executing.
func (r *AgentResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether the step reached a non-success terminal state other
// than skipped, i.e. it actually ran and did not succeed.
func (r *AgentResult) Failed() bool {
	return r.Status == StepFailed || r.Status == StepTimedOut
}

// NewFailedResult builds a Failed result from a classified error.
func NewFailedResult(stepID, agent string, err error) *AgentResult {
	return &AgentResult{
		StepID: stepID,
		Agent:  agent,
		Status: StepFailed,
		Err:    &StepError{Kind: KindOf(err), Message: err.Error()},
	}
}

// ResearchHop records one iteration of the multi-hop research loop: the query
// that was issued, the passages it retrieved, and the concept terms extracted
// for the next hop's expansion.
type ResearchHop struct {
	Query      string   `json:"query"`
	PassageIDs []string `json:"passage_ids"`
	Terms      []string `json:"terms,omitempty"`
}

// ResearchTrace is the ordered hop log of one research run. It grows
// monotonically while the run executes and is never mutated after a hop
// completes, which makes the whole run auditable after the fact.
type ResearchTrace struct {
	Topic string        `json:"topic"`
	Hops  []ResearchHop `json:"hops"`
}

// Append records a completed hop.
func (t *ResearchTrace) Append(hop ResearchHop) {
	t.Hops = append(t.Hops, hop)
}

// Depth returns the number of completed hops.
func (t *ResearchTrace) Depth() int { return len(t.Hops) }
