// Package agent implements the workflow agents: compliance gap analysis,
// multi-hop research, and report synthesis. Agents are stateless between
// executions; everything a step needs arrives through its Context.
package agent

import (
	"context"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// Agent executes one workflow step. Execute returns the step payload or an
// error; the coordinator owns status, timing, and result bookkeeping.
type Agent interface {
	Name() string
	Execute(ctx context.Context, run *Context) (any, error)
}

// Context carries a step's parameters and the results of the steps it
// depends on, keyed by step id. Upstream results are read-only.
type Context struct {
	StepID   string
	Params   map[string]any
	Upstream map[string]*types.AgentResult
}

// StringParam returns a string parameter or the fallback.
func (c *Context) StringParam(key, fallback string) string {
	if v, ok := c.Params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// IntParam returns an integer parameter or the fallback. YAML and JSON
// decoding produce different numeric types, so both are accepted.
func (c *Context) IntParam(key string, fallback int) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// FloatParam returns a float parameter or the fallback.
func (c *Context) FloatParam(key string, fallback float64) float64 {
	switch v := c.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// BoolParam returns a boolean parameter or the fallback.
func (c *Context) BoolParam(key string, fallback bool) bool {
	if v, ok := c.Params[key].(bool); ok {
		return v
	}
	return fallback
}

// UpstreamPayload returns the payload of a successful upstream step, or nil
// when the step is absent or did not succeed.
func (c *Context) UpstreamPayload(stepID string) any {
	result, ok := c.Upstream[stepID]
	if !ok || result == nil || result.Status != types.StepSuccess {
		return nil
	}
	return result.Payload
}

// FirstUpstreamPayload returns the first successful upstream payload for
// which pick returns true, scanning dependencies in the given order.
func FirstUpstreamPayload(c *Context, order []string, pick func(any) bool) any {
	for _, stepID := range order {
		if payload := c.UpstreamPayload(stepID); payload != nil && pick(payload) {
			return payload
		}
	}
	return nil
}
