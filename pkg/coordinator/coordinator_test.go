package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/soundprediction/controlgraph/pkg/agent"
	"github.com/soundprediction/controlgraph/pkg/types"
)

// stubAgent runs a function under a name, tracking invocations.
type stubAgent struct {
	name  string
	fn    func(ctx context.Context, run *agent.Context) (any, error)
	calls atomic.Int32
}

func (s *stubAgent) Name() string { return s.name }

func (s *stubAgent) Execute(ctx context.Context, run *agent.Context) (any, error) {
	s.calls.Add(1)
	if s.fn == nil {
		return "ok", nil
	}
	return s.fn(ctx, run)
}

func newCoordinator(t *testing.T, agents ...*stubAgent) *Coordinator {
	t.Helper()
	c := New(0, nil)
	for _, a := range agents {
		c.Register(a)
	}
	return c
}

func TestRunLinearWorkflow(t *testing.T) {
	t.Parallel()

	var order []string
	var mu sync.Mutex
	record := func(id string) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	}

	a := &stubAgent{name: "a", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		record(run.StepID)
		return "first", nil
	}}
	b := &stubAgent{name: "b", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		record(run.StepID)
		// Upstream payload must be visible.
		if run.UpstreamPayload("s1") != "first" {
			return nil, errors.New("missing upstream payload")
		}
		return "second", nil
	}}

	c := newCoordinator(t, a, b)
	result, err := c.Run(context.Background(), []types.WorkflowStep{
		{ID: "s1", Agent: "a"},
		{ID: "s2", Agent: "b", DependsOn: []string{"s1"}},
	})
	require.NoError(t, err)
	require.Equal(t, WorkflowSuccess, result.Status)
	require.Equal(t, []string{"s1", "s2"}, order)
	require.Equal(t, types.StepSuccess, result.Results["s2"].Status)
}

func TestRunRejectsCycleBeforeExecuting(t *testing.T) {
	t.Parallel()

	a := &stubAgent{name: "a"}
	c := newCoordinator(t, a)

	_, err := c.Run(context.Background(), []types.WorkflowStep{
		{ID: "s1", Agent: "a", DependsOn: []string{"s3"}},
		{ID: "s2", Agent: "a", DependsOn: []string{"s1"}},
		{ID: "s3", Agent: "a", DependsOn: []string{"s2"}},
	})
	require.Error(t, err)
	require.Equal(t, types.KindConfiguration, types.KindOf(err))
	require.Zero(t, a.calls.Load(), "no step may execute when the graph has a cycle")
}

func TestRunValidation(t *testing.T) {
	t.Parallel()

	a := &stubAgent{name: "a"}
	c := newCoordinator(t, a)
	ctx := context.Background()

	_, err := c.Run(ctx, nil)
	require.Equal(t, types.KindConfiguration, types.KindOf(err))

	_, err = c.Run(ctx, []types.WorkflowStep{{ID: "s1", Agent: "missing"}})
	require.Equal(t, types.KindConfiguration, types.KindOf(err))

	_, err = c.Run(ctx, []types.WorkflowStep{
		{ID: "s1", Agent: "a"},
		{ID: "s1", Agent: "a"},
	})
	require.Equal(t, types.KindConfiguration, types.KindOf(err))

	_, err = c.Run(ctx, []types.WorkflowStep{{ID: "s1", Agent: "a", DependsOn: []string{"ghost"}}})
	require.Equal(t, types.KindConfiguration, types.KindOf(err))
}

func TestRunSkipsDownstreamOfFailure(t *testing.T) {
	t.Parallel()

	failing := &stubAgent{name: "compliance", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		return nil, types.NewError(types.KindRetrieval, "store unreachable")
	}}
	synthesis := &stubAgent{name: "synthesis"}
	research := &stubAgent{name: "research"}

	c := newCoordinator(t, failing, synthesis, research)
	result, err := c.Run(context.Background(), []types.WorkflowStep{
		{ID: "gap-analysis", Agent: "compliance"},
		{ID: "research", Agent: "research"},
		{ID: "report", Agent: "synthesis", DependsOn: []string{"gap-analysis", "research"}},
	})
	require.NoError(t, err)
	require.Equal(t, WorkflowPartial, result.Status)

	require.Equal(t, types.StepFailed, result.Results["gap-analysis"].Status)
	require.Equal(t, types.KindRetrieval, result.Results["gap-analysis"].Err.Kind)
	require.Equal(t, types.StepSuccess, result.Results["research"].Status)

	report := result.Results["report"]
	require.Equal(t, types.StepSkipped, report.Status)
	require.Equal(t, "gap-analysis", report.SkippedBy)
	require.Zero(t, synthesis.calls.Load(), "skipped step must not execute")
}

func TestRunRequiredFailureAbortsWorkflow(t *testing.T) {
	t.Parallel()

	failing := &stubAgent{name: "a", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		return nil, errors.New("boom")
	}}
	other := &stubAgent{name: "b"}

	c := New(1, nil)
	c.Register(failing)
	c.Register(other)

	result, err := c.Run(context.Background(), []types.WorkflowStep{
		{ID: "s1", Agent: "a", Required: true},
		{ID: "s2", Agent: "b", DependsOn: []string{"s1"}},
		{ID: "s3", Agent: "b"},
	})
	require.NoError(t, err)
	require.Equal(t, WorkflowFailed, result.Status)
	require.Equal(t, types.StepFailed, result.Results["s1"].Status)
	require.Equal(t, types.StepSkipped, result.Results["s2"].Status)

	// s3 has no dependency on s1, but a failed required step stops all
	// dispatch. With one worker s1 finishes before s3 starts.
	require.Equal(t, types.StepSkipped, result.Results["s3"].Status)
	require.Equal(t, "s1", result.Results["s3"].SkippedBy)
}

func TestRunOptionalFailureKeepsIndependentSteps(t *testing.T) {
	t.Parallel()

	failing := &stubAgent{name: "a", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		return nil, errors.New("boom")
	}}
	other := &stubAgent{name: "b"}

	c := newCoordinator(t, failing, other)
	result, err := c.Run(context.Background(), []types.WorkflowStep{
		{ID: "s1", Agent: "a"},
		{ID: "s2", Agent: "b"},
	})
	require.NoError(t, err)
	require.Equal(t, WorkflowPartial, result.Status)
	require.Equal(t, types.StepFailed, result.Results["s1"].Status)
	require.Equal(t, types.StepSuccess, result.Results["s2"].Status)
}

func TestRunStepTimeout(t *testing.T) {
	t.Parallel()

	slow := &stubAgent{name: "slow", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "done", nil
		}
	}}

	c := newCoordinator(t, slow)
	result, err := c.Run(context.Background(), []types.WorkflowStep{
		{ID: "s1", Agent: "slow", Timeout: 20 * time.Millisecond},
	})
	require.NoError(t, err)
	require.Equal(t, types.StepTimedOut, result.Results["s1"].Status)
	require.Equal(t, types.KindTimeout, result.Results["s1"].Err.Kind)
	require.Equal(t, WorkflowPartial, result.Status)
}

func TestRunBoundedConcurrency(t *testing.T) {
	t.Parallel()

	var current, peak atomic.Int32
	busy := &stubAgent{name: "busy", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		current.Add(-1)
		return "ok", nil
	}}

	c := New(2, nil)
	c.Register(busy)

	steps := make([]types.WorkflowStep, 6)
	for i := range steps {
		steps[i] = types.WorkflowStep{ID: string(rune('a' + i)), Agent: "busy"}
	}
	result, err := c.Run(context.Background(), steps)
	require.NoError(t, err)
	require.Equal(t, WorkflowSuccess, result.Status)
	require.LessOrEqual(t, peak.Load(), int32(2), "worker bound exceeded")
	require.Equal(t, int32(6), busy.calls.Load())
}

func TestRunCancellationStopsDispatchNotInFlight(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	inflight := &stubAgent{name: "inflight", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		cancel()
		// The step context must stay live after the workflow is cancelled;
		// only dispatch of new steps stops.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		time.Sleep(10 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return "finished", nil
	}}
	never := &stubAgent{name: "never"}

	c := New(1, nil)
	c.Register(inflight)
	c.Register(never)

	result, err := c.Run(ctx, []types.WorkflowStep{
		{ID: "s1", Agent: "inflight"},
		{ID: "s2", Agent: "never", DependsOn: []string{"s1"}},
	})
	require.ErrorIs(t, err, context.Canceled)

	// The in-flight step ran to completion and its result is kept.
	require.Equal(t, types.StepSuccess, result.Results["s1"].Status)
	require.Equal(t, "finished", result.Results["s1"].Payload)

	// Nothing new was dispatched after cancellation.
	require.Equal(t, types.StepSkipped, result.Results["s2"].Status)
	require.Zero(t, never.calls.Load())
}

func TestRunCancelledStepKeepsOwnTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	slow := &stubAgent{name: "slow", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		cancel()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return "done", nil
		}
	}}

	c := newCoordinator(t, slow)
	result, err := c.Run(ctx, []types.WorkflowStep{
		{ID: "s1", Agent: "slow", Timeout: 20 * time.Millisecond},
	})
	require.ErrorIs(t, err, context.Canceled)

	// Workflow cancellation does not abort the step, but the per-step
	// timeout still does.
	require.Equal(t, types.StepTimedOut, result.Results["s1"].Status)
	require.Equal(t, types.KindTimeout, result.Results["s1"].Err.Kind)
}

func TestRunPanicBecomesFailedResult(t *testing.T) {
	t.Parallel()

	panicky := &stubAgent{name: "panicky", fn: func(ctx context.Context, run *agent.Context) (any, error) {
		panic("unexpected state")
	}}
	c := newCoordinator(t, panicky)

	result, err := c.Run(context.Background(), []types.WorkflowStep{{ID: "s1", Agent: "panicky"}})
	require.NoError(t, err)
	require.Equal(t, types.StepFailed, result.Results["s1"].Status)
	require.Equal(t, types.KindInternal, result.Results["s1"].Err.Kind)
}
