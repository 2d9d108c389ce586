package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/soundprediction/controlgraph/pkg/llm"
	"github.com/soundprediction/controlgraph/pkg/types"
)

// SynthesisReport is the synthesis agent's payload. Content is a pure
// function of the upstream payloads: rendering the same findings twice
// yields byte-identical output.
type SynthesisReport struct {
	Title       string   `json:"title"`
	Format      string   `json:"format"`
	Content     string   `json:"content"`
	Narrative   string   `json:"narrative,omitempty"`
	SavedPath   string   `json:"saved_path,omitempty"`
	SourceCount int      `json:"source_count"`
	ThemeCount  int      `json:"theme_count"`
	Warnings    []string `json:"warnings,omitempty"`
}

// SynthesisAgent renders upstream findings into a structured report. The
// core document never depends on a language model; an optional LLM adds a
// narrative introduction, and any LLM failure degrades to a warning.
type SynthesisAgent struct {
	narrator llm.Client
	logger   *slog.Logger
}

// NewSynthesisAgent creates the agent. narrator may be nil.
func NewSynthesisAgent(narrator llm.Client, logger *slog.Logger) *SynthesisAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &SynthesisAgent{narrator: narrator, logger: logger}
}

// Name implements Agent.
func (a *SynthesisAgent) Name() string { return "synthesis" }

// Execute renders the report. Params: title (default "Research Report"),
// format (markdown or json, default markdown), include_executive_summary
// (default true), narrate (default false), output_path (optional).
func (a *SynthesisAgent) Execute(ctx context.Context, run *Context) (any, error) {
	title := run.StringParam("title", "Research Report")
	format := run.StringParam("format", "markdown")
	includeSummary := run.BoolParam("include_executive_summary", true)
	narrate := run.BoolParam("narrate", false)
	outputPath := run.StringParam("output_path", "")

	if format != "markdown" && format != "json" {
		return nil, types.NewError(types.KindConfiguration, "unsupported report format %q", format)
	}

	findings, compliance := upstreamData(run)
	if findings == nil && compliance == nil {
		return nil, types.NewError(types.KindConfiguration, "synthesis step has no upstream findings")
	}

	report := &SynthesisReport{Title: title, Format: format}
	if findings != nil {
		report.SourceCount = findings.TotalSources
		report.ThemeCount = len(findings.Themes)
	}

	if narrate && a.narrator != nil && findings != nil {
		narrative, err := a.narrate(ctx, title, findings)
		if err != nil {
			a.logger.Warn("report narration failed, continuing without it", "error", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("narration unavailable: %v", err))
		} else {
			report.Narrative = narrative
		}
	}

	switch format {
	case "markdown":
		report.Content = renderMarkdown(title, findings, compliance, includeSummary, report.Narrative)
	case "json":
		content, err := renderJSON(title, findings, compliance)
		if err != nil {
			return nil, err
		}
		report.Content = content
	}

	if outputPath != "" {
		saved, err := saveReport(report.Content, outputPath, format)
		if err != nil {
			return nil, err
		}
		report.SavedPath = saved
	}

	return report, nil
}

// upstreamData scans the upstream results for research findings and a
// compliance report, in dependency order.
func upstreamData(run *Context) (*ResearchFindings, *ComplianceReport) {
	ids := make([]string, 0, len(run.Upstream))
	for id := range run.Upstream {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var findings *ResearchFindings
	var compliance *ComplianceReport
	for _, id := range ids {
		switch payload := run.UpstreamPayload(id).(type) {
		case *ResearchFindings:
			if findings == nil {
				findings = payload
			}
		case *ComplianceReport:
			if compliance == nil {
				compliance = payload
			}
		}
	}
	return findings, compliance
}

func (a *SynthesisAgent) narrate(ctx context.Context, title string, findings *ResearchFindings) (string, error) {
	messages := []types.Message{
		types.NewSystemMessage("You write concise executive introductions for security research reports. Two short paragraphs maximum."),
		types.NewUserMessage(fmt.Sprintf("Report title: %s\n\n%s", title, findings.Summary)),
	}
	resp, err := a.narrator.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func renderMarkdown(title string, findings *ResearchFindings, compliance *ComplianceReport, includeSummary bool, narrative string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n---\n\n", title)

	if narrative != "" {
		fmt.Fprintf(&b, "%s\n\n---\n\n", narrative)
	}

	if includeSummary && findings != nil {
		b.WriteString("## Executive Summary\n\n")
		fmt.Fprintf(&b, "This report presents findings from an automated research synthesis on **%s**. ", findings.Topic)
		fmt.Fprintf(&b, "The analysis examined **%d sources** across the knowledge base.\n\n", findings.TotalSources)
		if len(findings.Themes) > 0 {
			b.WriteString("### Key Findings\n\n")
			fmt.Fprintf(&b, "%d major themes were identified:\n\n", len(findings.Themes))
			for i, theme := range findings.Themes {
				fmt.Fprintf(&b, "%d. **%s** (%d passages)\n", i+1, theme.Name, theme.PassageCount)
			}
			b.WriteString("\n")
		}
		b.WriteString("---\n\n")
	}

	if findings != nil {
		fmt.Fprintf(&b, "## Research Topic\n\n%s\n\n", findings.Topic)

		b.WriteString("## Methodology\n\n")
		fmt.Fprintf(&b, "- **Search Depth**: %d hops\n", findings.Depth)
		fmt.Fprintf(&b, "- **Total Sources**: %d\n", findings.TotalSources)
		fmt.Fprintf(&b, "- **Query Evolution**: %d iterations\n\n", len(findings.QueryHistory))
		if len(findings.QueryHistory) > 0 {
			b.WriteString("**Query Progression:**\n\n")
			for i, q := range findings.QueryHistory {
				fmt.Fprintf(&b, "%d. %s\n", i+1, q)
			}
			b.WriteString("\n")
		}

		if len(findings.Themes) > 0 {
			b.WriteString("## Key Themes\n\n")
			for _, theme := range findings.Themes {
				fmt.Fprintf(&b, "### Theme %d: %s\n\n", theme.ID+1, theme.Name)
				fmt.Fprintf(&b, "*%d passages*\n\n", theme.PassageCount)
				if rep := findPassage(findings.Passages, theme.Representative); rep != nil {
					b.WriteString("**Representative Passage:**\n\n")
					fmt.Fprintf(&b, "> %s\n\n", excerpt(rep.Text, 300))
					fmt.Fprintf(&b, "*%s*\n\n", types.FormatProvenance(&rep.Passage))
				}
			}
			b.WriteString("---\n\n")
		}
	}

	if compliance != nil {
		b.WriteString("## Compliance Posture\n\n")
		fmt.Fprintf(&b, "- **Framework**: %s\n", compliance.Framework)
		fmt.Fprintf(&b, "- **Controls Analyzed**: %d\n", compliance.TotalControls)
		fmt.Fprintf(&b, "- **Coverage**: %.1f%%\n", compliance.Coverage)
		fmt.Fprintf(&b, "- **%s**\n\n", compliance.Summary)

		if len(compliance.Recommendations) > 0 {
			b.WriteString("### Remediation Plan\n\n")
			for i, rec := range compliance.Recommendations {
				fmt.Fprintf(&b, "%d. [%s] %s (%s)\n", i+1, rec.Priority, rec.Action, rec.Reason)
			}
			b.WriteString("\n")
		}
		b.WriteString("---\n\n")
	}

	b.WriteString("## Citations\n\n")
	if findings != nil && len(findings.Passages) > 0 {
		for i, p := range findings.Passages {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, types.FormatProvenance(&p.Passage))
		}
	} else {
		b.WriteString("*No citations available*\n")
	}
	b.WriteString("\n")

	return b.String()
}

func renderJSON(title string, findings *ResearchFindings, compliance *ComplianceReport) (string, error) {
	payload := map[string]any{"title": title}
	if findings != nil {
		payload["research"] = findings
	}
	if compliance != nil {
		payload["compliance"] = compliance
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data), nil
}

func findPassage(passages []*types.ScoredPassage, id string) *types.ScoredPassage {
	for _, p := range passages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func saveReport(content, outputPath, format string) (string, error) {
	ext := ".md"
	if format == "json" {
		ext = ".json"
	}
	if filepath.Ext(outputPath) != ext {
		outputPath += ext
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return outputPath, nil
}
