// Package coordinator schedules agent workflows. A workflow is a DAG of
// steps; the coordinator validates the graph up front, runs independent
// steps concurrently under a bounded worker pool, propagates skips past
// failed dependencies, and treats partial success as a first-class outcome.
package coordinator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/soundprediction/controlgraph/pkg/agent"
	"github.com/soundprediction/controlgraph/pkg/types"
)

// DefaultMaxWorkers bounds concurrent step execution.
const DefaultMaxWorkers = 4

// WorkflowStatus summarizes a finished run.
type WorkflowStatus string

const (
	// WorkflowSuccess means every step succeeded.
	WorkflowSuccess WorkflowStatus = "success"
	// WorkflowPartial means some optional steps failed or were skipped but
	// no required step did.
	WorkflowPartial WorkflowStatus = "partial"
	// WorkflowFailed means a required step failed or timed out.
	WorkflowFailed WorkflowStatus = "failed"
)

// WorkflowResult is the outcome of one run. Results holds a terminal result
// for every step in the workflow, including skipped ones.
type WorkflowResult struct {
	Status   WorkflowStatus                `json:"status"`
	Results  map[string]*types.AgentResult `json:"results"`
	Started  time.Time                     `json:"started"`
	Finished time.Time                     `json:"finished"`
}

// StepResults returns results in step id order.
func (r *WorkflowResult) StepResults() []*types.AgentResult {
	ids := make([]string, 0, len(r.Results))
	for id := range r.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*types.AgentResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.Results[id])
	}
	return out
}

// Coordinator owns the agent registry and runs workflows against it.
type Coordinator struct {
	agents     map[string]agent.Agent
	maxWorkers int
	logger     *slog.Logger
}

// New creates a coordinator. maxWorkers <= 0 uses the default.
func New(maxWorkers int, logger *slog.Logger) *Coordinator {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		agents:     make(map[string]agent.Agent),
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// Register adds an agent under its name. Re-registering a name replaces the
// previous agent.
func (c *Coordinator) Register(a agent.Agent) {
	c.agents[a.Name()] = a
	c.logger.Info("registered agent", "agent", a.Name())
}

// Agents returns the registered agent names sorted.
func (c *Coordinator) Agents() []string {
	names := make([]string, 0, len(c.agents))
	for name := range c.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes a workflow. Validation failures (bad steps, unknown agents or
// dependencies, cycles) return a configuration error before any step runs.
// Runtime step failures never produce a Run error; they are recorded on the
// per-step results and summarized in the workflow status. The returned error
// is non-nil only for configuration problems or context cancellation.
// Cancelling ctx stops dispatch of further steps; steps already in flight
// run to completion or their own timeout and their results are kept.
func (c *Coordinator) Run(ctx context.Context, steps []types.WorkflowStep) (*WorkflowResult, error) {
	if err := c.validate(steps); err != nil {
		return nil, err
	}

	result := &WorkflowResult{
		Results: make(map[string]*types.AgentResult, len(steps)),
		Started: time.Now().UTC(),
	}

	byID := make(map[string]*types.WorkflowStep, len(steps))
	pending := make(map[string]struct{}, len(steps))
	for i := range steps {
		byID[steps[i].ID] = &steps[i]
		pending[steps[i].ID] = struct{}{}
	}

	done := make(chan *types.AgentResult)
	running := 0
	fatalStep := ""
	cancelled := false

	for len(pending) > 0 || running > 0 {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
		}

		// Resolve steps whose fate is already decided and dispatch the
		// runnable ones, respecting the worker bound. Iterate in sorted
		// order so scheduling decisions are deterministic.
		progressed := true
		for progressed {
			progressed = false
			for _, id := range sortedKeys(pending) {
				step := byID[id]

				if fatalStep != "" || cancelled {
					skipBy := fatalStep
					delete(pending, id)
					result.Results[id] = skipResult(step, skipBy)
					progressed = true
					continue
				}

				blocker, ready := c.dependencyState(step, result.Results)
				if blocker != "" {
					delete(pending, id)
					result.Results[id] = skipResult(step, blocker)
					progressed = true
					continue
				}
				if !ready || running >= c.maxWorkers {
					continue
				}

				delete(pending, id)
				running++
				go c.runStep(ctx, step, snapshotUpstream(step, result.Results), done)
				progressed = true
			}
		}

		if running == 0 {
			break
		}

		stepResult := <-done
		running--
		result.Results[stepResult.StepID] = stepResult

		if stepResult.Failed() && byID[stepResult.StepID].Required {
			fatalStep = stepResult.StepID
			c.logger.Error("required step failed, aborting workflow",
				"step", stepResult.StepID,
				"status", stepResult.Status)
		} else {
			c.logger.Info("step finished",
				"step", stepResult.StepID,
				"status", stepResult.Status,
				"duration", stepResult.Duration())
		}
	}

	result.Finished = time.Now().UTC()
	result.Status = summarize(result.Results, fatalStep)

	if cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// validate rejects malformed workflows before execution: invalid steps,
// duplicate ids, unknown agents, unknown dependencies, and cycles.
func (c *Coordinator) validate(steps []types.WorkflowStep) error {
	if len(steps) == 0 {
		return types.NewError(types.KindConfiguration, "workflow has no steps")
	}

	ids := make(map[string]struct{}, len(steps))
	for i := range steps {
		step := &steps[i]
		if err := step.Validate(); err != nil {
			return err
		}
		if _, dup := ids[step.ID]; dup {
			return types.NewError(types.KindConfiguration, "duplicate step id %q", step.ID)
		}
		ids[step.ID] = struct{}{}
		if _, ok := c.agents[step.Agent]; !ok {
			return types.NewError(types.KindConfiguration, "step %q references unregistered agent %q", step.ID, step.Agent)
		}
	}
	for i := range steps {
		for _, dep := range steps[i].DependsOn {
			if _, ok := ids[dep]; !ok {
				return types.NewError(types.KindConfiguration, "step %q depends on unknown step %q", steps[i].ID, dep)
			}
		}
	}
	return detectCycle(steps)
}

// detectCycle runs a coloring DFS over the dependency edges.
func detectCycle(steps []types.WorkflowStep) error {
	deps := make(map[string][]string, len(steps))
	for i := range steps {
		deps[steps[i].ID] = steps[i].DependsOn
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, dep := range deps[id] {
			switch color[dep] {
			case gray:
				return types.NewError(types.KindConfiguration, "workflow has a dependency cycle through %q", dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// dependencyState reports whether a step can run. blocker names the first
// dependency (in declaration order) that terminally did not succeed; ready
// is true when every dependency has succeeded.
func (c *Coordinator) dependencyState(step *types.WorkflowStep, results map[string]*types.AgentResult) (blocker string, ready bool) {
	for _, dep := range step.DependsOn {
		depResult, finished := results[dep]
		if !finished {
			return "", false
		}
		if depResult.Status != types.StepSuccess {
			return dep, false
		}
	}
	return "", true
}

// runStep executes one step in its own goroutine, enforcing the per-step
// timeout and converting panics into failed results so one agent cannot
// take down the run. Workflow cancellation only stops dispatch: a step
// already running keeps a live context and finishes on its own terms, so
// the execution context is detached from the workflow's cancellation while
// still carrying its values and the per-step timeout.
func (c *Coordinator) runStep(ctx context.Context, step *types.WorkflowStep, upstream map[string]*types.AgentResult, done chan<- *types.AgentResult) {
	stepCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc
	if step.Timeout > 0 {
		stepCtx, cancel = context.WithTimeout(stepCtx, step.Timeout)
		defer cancel()
	}

	result := &types.AgentResult{
		StepID:    step.ID,
		Agent:     step.Agent,
		StartedAt: time.Now().UTC(),
	}

	payload, err := c.execute(stepCtx, step, upstream)
	result.FinishedAt = time.Now().UTC()

	switch {
	case err == nil:
		result.Status = types.StepSuccess
		result.Payload = payload
	case stepCtx.Err() == context.DeadlineExceeded:
		result.Status = types.StepTimedOut
		result.Err = &types.StepError{
			Kind:    types.KindTimeout,
			Message: "step exceeded timeout of " + step.Timeout.String(),
		}
	default:
		result.Status = types.StepFailed
		result.Err = &types.StepError{Kind: types.KindOf(err), Message: err.Error()}
	}

	done <- result
}

func (c *Coordinator) execute(ctx context.Context, step *types.WorkflowStep, upstream map[string]*types.AgentResult) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewError(types.KindInternal, "agent %s panicked: %v", step.Agent, r)
		}
	}()

	run := &agent.Context{
		StepID:   step.ID,
		Params:   step.Params,
		Upstream: upstream,
	}
	return c.agents[step.Agent].Execute(ctx, run)
}

// snapshotUpstream copies the dependency results visible to a step at
// dispatch time.
func snapshotUpstream(step *types.WorkflowStep, results map[string]*types.AgentResult) map[string]*types.AgentResult {
	upstream := make(map[string]*types.AgentResult, len(step.DependsOn))
	for _, dep := range step.DependsOn {
		if r, ok := results[dep]; ok {
			upstream[dep] = r
		}
	}
	return upstream
}

func skipResult(step *types.WorkflowStep, skippedBy string) *types.AgentResult {
	now := time.Now().UTC()
	return &types.AgentResult{
		StepID:     step.ID,
		Agent:      step.Agent,
		Status:     types.StepSkipped,
		SkippedBy:  skippedBy,
		StartedAt:  now,
		FinishedAt: now,
	}
}

func summarize(results map[string]*types.AgentResult, fatalStep string) WorkflowStatus {
	if fatalStep != "" {
		return WorkflowFailed
	}
	for _, r := range results {
		if r.Status != types.StepSuccess {
			return WorkflowPartial
		}
	}
	return WorkflowSuccess
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
