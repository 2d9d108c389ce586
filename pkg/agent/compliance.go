package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/controlgraph/pkg/kgraph"
	"github.com/soundprediction/controlgraph/pkg/retrieve"
	"github.com/soundprediction/controlgraph/pkg/types"
)

const (
	// DefaultEvidenceThreshold is the minimum number of corroborating
	// passages for a control to count as implemented. The boundary is
	// inclusive: exactly threshold passages is implemented.
	DefaultEvidenceThreshold = 2
	defaultEvidenceTopK      = 10
	defaultFramework         = "NIST-800-53"
)

// Critical control families get remediation priority: access control,
// identification and authentication, system and communications protection,
// audit and accountability.
var criticalFamilies = map[string]struct{}{
	"AC": {}, "IA": {}, "SC": {}, "AU": {},
}

// Evidence is one passage that literally mentions the control under review.
type Evidence struct {
	PassageID string  `json:"passage_id"`
	Source    string  `json:"source"`
	Page      int     `json:"page"`
	Score     float64 `json:"score"`
	Excerpt   string  `json:"excerpt"`
}

// Recommendation is one prioritized remediation action.
type Recommendation struct {
	ControlID string `json:"control_id"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
}

// ComplianceReport is the compliance agent's payload.
type ComplianceReport struct {
	Framework       string                `json:"framework"`
	Threshold       int                   `json:"threshold"`
	TotalControls   int                   `json:"total_controls"`
	Implemented     []string              `json:"implemented"`
	Partial         []string              `json:"partial"`
	Gaps            []string              `json:"gaps"`
	Evidence        map[string][]Evidence `json:"evidence"`
	Recommendations []Recommendation      `json:"recommendations"`
	Coverage        float64               `json:"coverage_percentage"`
	Summary         string                `json:"summary"`
}

// ComplianceAgent classifies every control in the knowledge graph as
// implemented, partial, or gap based on retrieval evidence, then emits a
// prioritized remediation plan.
type ComplianceAgent struct {
	retriever *retrieve.Retriever
	graph     *kgraph.KnowledgeGraph
	logger    *slog.Logger
}

// NewComplianceAgent creates the agent.
func NewComplianceAgent(retriever *retrieve.Retriever, graph *kgraph.KnowledgeGraph, logger *slog.Logger) *ComplianceAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplianceAgent{retriever: retriever, graph: graph, logger: logger}
}

// Name implements Agent.
func (a *ComplianceAgent) Name() string { return "compliance" }

// Execute runs the gap analysis. Params: framework (default NIST-800-53),
// min_evidence_threshold (default 2), top_k (default 10), alpha.
func (a *ComplianceAgent) Execute(ctx context.Context, run *Context) (any, error) {
	framework := run.StringParam("framework", defaultFramework)
	threshold := run.IntParam("min_evidence_threshold", DefaultEvidenceThreshold)
	topK := run.IntParam("top_k", defaultEvidenceTopK)
	alpha := run.FloatParam("alpha", retrieve.DefaultAlpha)

	if threshold < 1 {
		return nil, types.NewError(types.KindConfiguration, "min_evidence_threshold must be positive, got %d", threshold)
	}

	controls := a.controlIDs()
	if len(controls) == 0 {
		return nil, types.NewError(types.KindConfiguration, "no controls present in knowledge graph")
	}

	report := &ComplianceReport{
		Framework:     framework,
		Threshold:     threshold,
		TotalControls: len(controls),
		Evidence:      make(map[string][]Evidence, len(controls)),
	}

	for _, controlID := range controls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		evidence, err := a.searchEvidence(ctx, controlID, topK, alpha)
		if err != nil {
			return nil, err
		}
		report.Evidence[controlID] = evidence

		switch {
		case len(evidence) >= threshold:
			report.Implemented = append(report.Implemented, controlID)
		case len(evidence) > 0:
			report.Partial = append(report.Partial, controlID)
		default:
			report.Gaps = append(report.Gaps, controlID)
		}
	}

	sort.Strings(report.Implemented)
	sort.Strings(report.Partial)
	sort.Strings(report.Gaps)

	report.Recommendations = buildRecommendations(report.Gaps, report.Partial)
	report.Coverage = float64(len(report.Implemented)) / float64(len(controls)) * 100
	report.Summary = fmt.Sprintf("Implemented: %d, Partial: %d, Gaps: %d",
		len(report.Implemented), len(report.Partial), len(report.Gaps))

	a.logger.Info("compliance analysis complete",
		"controls", len(controls),
		"implemented", len(report.Implemented),
		"partial", len(report.Partial),
		"gaps", len(report.Gaps))

	return report, nil
}

// controlIDs returns every control entity in the graph sorted by id,
// skipping synthetic family nodes (which are concept-typed anyway).
func (a *ComplianceAgent) controlIDs() []string {
	if a.graph == nil {
		return nil
	}
	var out []string
	for _, ent := range a.graph.Entities() {
		if ent.Type == types.EntityControl {
			out = append(out, ent.ID)
		}
	}
	sort.Strings(out)
	return out
}

// searchEvidence retrieves passages for a control and keeps only those that
// literally mention the control id. Retrieval similarity alone is not
// evidence; a passage about IA-4 must not count toward IA-5.
func (a *ComplianceAgent) searchEvidence(ctx context.Context, controlID string, topK int, alpha float64) ([]Evidence, error) {
	query := fmt.Sprintf("%s implementation security control access", controlID)
	result, err := a.retriever.Query(ctx, query, retrieve.Options{TopK: topK, Alpha: alpha})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(controlID)
	var evidence []Evidence
	for _, p := range result.Passages {
		if !strings.Contains(strings.ToLower(p.Text), needle) {
			continue
		}
		evidence = append(evidence, Evidence{
			PassageID: p.ID,
			Source:    p.Source,
			Page:      p.Page,
			Score:     p.Score,
			Excerpt:   excerpt(p.Text, 200),
		})
	}
	return evidence, nil
}

// buildRecommendations emits gap actions before partial actions, prioritized
// by critical family membership. Ordering is fully deterministic: priority
// rank, then family, then control id.
func buildRecommendations(gaps, partial []string) []Recommendation {
	var recs []Recommendation
	for _, controlID := range gaps {
		priority := "Medium"
		if isCriticalFamily(controlID) {
			priority = "High"
		}
		recs = append(recs, Recommendation{
			ControlID: controlID,
			Status:    "gap",
			Priority:  priority,
			Action:    fmt.Sprintf("Implement %s security control", controlID),
			Reason:    "No implementation evidence found",
		})
	}
	for _, controlID := range partial {
		priority := "Low"
		if isCriticalFamily(controlID) {
			priority = "Medium"
		}
		recs = append(recs, Recommendation{
			ControlID: controlID,
			Status:    "partial",
			Priority:  priority,
			Action:    fmt.Sprintf("Complete %s implementation", controlID),
			Reason:    "Partial evidence found, needs strengthening",
		})
	}

	rank := map[string]int{"High": 0, "Medium": 1, "Low": 2}
	sort.SliceStable(recs, func(i, j int) bool {
		if rank[recs[i].Priority] != rank[recs[j].Priority] {
			return rank[recs[i].Priority] < rank[recs[j].Priority]
		}
		fi, fj := familyOf(recs[i].ControlID), familyOf(recs[j].ControlID)
		if fi != fj {
			return fi < fj
		}
		return recs[i].ControlID < recs[j].ControlID
	})
	return recs
}

func isCriticalFamily(controlID string) bool {
	_, ok := criticalFamilies[familyOf(controlID)]
	return ok
}

func familyOf(controlID string) string {
	if i := strings.IndexByte(controlID, '-'); i > 0 {
		return controlID[:i]
	}
	return controlID
}

func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
