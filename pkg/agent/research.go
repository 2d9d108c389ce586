package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/controlgraph/pkg/cluster"
	"github.com/soundprediction/controlgraph/pkg/embedder"
	"github.com/soundprediction/controlgraph/pkg/retrieve"
	"github.com/soundprediction/controlgraph/pkg/types"
)

const (
	defaultResearchDepth = 3
	maxResearchDepth     = 5
	defaultMaxSources    = 10
	conceptTermLimit     = 5
	expansionTermLimit   = 3
	maxThemes            = 5
	minPassagesForThemes = 5
)

// Theme is one cluster of related passages.
type Theme struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	PassageCount   int      `json:"passage_count"`
	Representative string   `json:"representative_passage_id"`
	PassageIDs     []string `json:"passage_ids"`
}

// ResearchFindings is the research agent's payload.
type ResearchFindings struct {
	Topic        string                 `json:"topic"`
	Depth        int                    `json:"depth"`
	TotalSources int                    `json:"total_sources"`
	QueryHistory []string               `json:"query_history"`
	Passages     []*types.ScoredPassage `json:"passages"`
	Themes       []Theme                `json:"themes,omitempty"`
	Summary      string                 `json:"summary"`
	Trace        types.ResearchTrace    `json:"trace"`
}

// ResearchAgent runs multi-hop retrieval: each hop expands the previous
// query with the strongest concept terms found so far, deduplicates against
// passages already collected, and stops early when a hop contributes
// nothing new.
type ResearchAgent struct {
	retriever *retrieve.Retriever
	embed     embedder.Client
	logger    *slog.Logger
}

// NewResearchAgent creates the agent. The embedder is only needed for theme
// clustering; a nil embedder disables themes.
func NewResearchAgent(retriever *retrieve.Retriever, embed embedder.Client, logger *slog.Logger) *ResearchAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResearchAgent{retriever: retriever, embed: embed, logger: logger}
}

// Name implements Agent.
func (a *ResearchAgent) Name() string { return "research" }

// Execute runs the research loop. Params: topic (required), depth (1-5,
// default 3), max_sources (default 10), cluster_themes (default true),
// alpha.
func (a *ResearchAgent) Execute(ctx context.Context, run *Context) (any, error) {
	topic := strings.TrimSpace(run.StringParam("topic", ""))
	if topic == "" {
		return nil, types.NewError(types.KindConfiguration, "research step requires a topic")
	}

	depth := run.IntParam("depth", defaultResearchDepth)
	if depth < 1 {
		depth = 1
	}
	if depth > maxResearchDepth {
		depth = maxResearchDepth
	}
	maxSources := run.IntParam("max_sources", defaultMaxSources)
	if maxSources < 1 {
		maxSources = defaultMaxSources
	}
	clusterThemes := run.BoolParam("cluster_themes", true)
	alpha := run.FloatParam("alpha", retrieve.DefaultAlpha)

	findings := &ResearchFindings{
		Topic:        topic,
		Depth:        depth,
		QueryHistory: []string{topic},
		Trace:        types.ResearchTrace{Topic: topic},
	}

	seen := make(map[string]struct{})
	query := topic
	for hop := 0; hop < depth; hop++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := a.retriever.Query(ctx, query, retrieve.Options{TopK: maxSources, Alpha: alpha})
		if err != nil {
			return nil, err
		}

		var newPassages []*types.ScoredPassage
		var newIDs []string
		for _, p := range result.Passages {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			newPassages = append(newPassages, p)
			newIDs = append(newIDs, p.ID)
		}
		findings.Passages = append(findings.Passages, newPassages...)

		terms := conceptTerms(newPassages, conceptTermLimit)
		findings.Trace.Append(types.ResearchHop{
			Query:      query,
			PassageIDs: newIDs,
			Terms:      terms,
		})

		a.logger.Debug("research hop complete",
			"hop", hop+1,
			"new_passages", len(newPassages),
			"total", len(findings.Passages))

		// A hop that adds nothing, or yields no expansion terms, ends the
		// loop early.
		if len(newPassages) == 0 {
			break
		}
		if hop < depth-1 {
			if len(terms) == 0 {
				break
			}
			query = expandQuery(query, terms)
			findings.QueryHistory = append(findings.QueryHistory, query)
		}
	}

	findings.TotalSources = len(findings.Passages)

	if clusterThemes && a.embed != nil && len(findings.Passages) >= minPassagesForThemes {
		themes, err := a.clusterThemes(ctx, findings.Passages)
		if err != nil {
			return nil, err
		}
		findings.Themes = themes
	}

	findings.Summary = researchSummary(findings)
	return findings, nil
}

// expandQuery chains hop queries cumulatively: the next hop's query is the
// previous hop's query plus the strongest new concept terms, so every hop's
// context carries forward instead of resetting to the bare topic.
func expandQuery(prev string, terms []string) string {
	limit := expansionTermLimit
	if limit > len(terms) {
		limit = len(terms)
	}
	return prev + " " + strings.Join(terms[:limit], " ")
}

// clusterThemes embeds the collected passages and groups them with
// deterministic k-means. The theme count scales with the corpus: one theme
// per three passages, capped at five.
func (a *ResearchAgent) clusterThemes(ctx context.Context, passages []*types.ScoredPassage) ([]Theme, error) {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	embeddings, err := a.embed.Embed(ctx, texts)
	if err != nil {
		return nil, types.WrapError(types.KindRetrieval, err, "failed to embed passages for theme clustering")
	}

	k := len(passages) / 3
	if k > maxThemes {
		k = maxThemes
	}
	if k < 1 {
		k = 1
	}

	result := cluster.KMeans(embeddings, k)
	reps := cluster.Representatives(embeddings, result)

	members := make([][]string, result.K)
	for i, p := range passages {
		c := result.Assignments[i]
		members[c] = append(members[c], p.ID)
	}

	var themes []Theme
	for c := 0; c < result.K; c++ {
		if reps[c] < 0 {
			continue
		}
		rep := passages[reps[c]]
		ids := members[c]
		if len(ids) > 5 {
			ids = ids[:5]
		}
		themes = append(themes, Theme{
			ID:             c,
			Name:           excerpt(strings.TrimSpace(rep.Text), 50),
			PassageCount:   len(members[c]),
			Representative: rep.ID,
			PassageIDs:     ids,
		})
	}
	return themes, nil
}

// stop words excluded from concept term extraction.
var conceptStopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "these": {}, "those": {},
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "were": {},
	"shall": {}, "should": {}, "must": {}, "may": {}, "will": {},
}

// conceptTerms extracts the most frequent capitalized terms and two-word
// phrases from the passages. Ties break alphabetically so expansion queries
// are deterministic.
func conceptTerms(passages []*types.ScoredPassage, topN int) []string {
	freq := make(map[string]int)
	for _, p := range passages {
		words := strings.Fields(p.Text)
		for i, word := range words {
			w := strings.Trim(word, ".,;:()[]\"'")
			if len(w) <= 3 || !isCapitalized(w) {
				continue
			}
			if _, stop := conceptStopWords[strings.ToLower(w)]; stop {
				continue
			}
			freq[w]++

			if i+1 < len(words) {
				next := strings.Trim(words[i+1], ".,;:()[]\"'")
				if len(next) > 0 && isCapitalized(next) {
					freq[w+" "+next]++
				}
			}
		}
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if topN < len(terms) {
		terms = terms[:topN]
	}
	return terms
}

func isCapitalized(w string) bool {
	return w[0] >= 'A' && w[0] <= 'Z'
}

func researchSummary(f *ResearchFindings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research Summary: %s\n\n", f.Topic)
	fmt.Fprintf(&b, "Total Sources: %d\n", f.TotalSources)

	if len(f.Themes) > 0 {
		fmt.Fprintf(&b, "\nKey Themes (%d):\n", len(f.Themes))
		for _, theme := range f.Themes {
			fmt.Fprintf(&b, "- %s (%d passages)\n", theme.Name, theme.PassageCount)
		}
	}

	counts := make(map[string]int)
	for _, p := range f.Passages {
		counts[p.Source]++
	}
	sources := make([]string, 0, len(counts))
	for s := range counts {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool {
		if counts[sources[i]] != counts[sources[j]] {
			return counts[sources[i]] > counts[sources[j]]
		}
		return sources[i] < sources[j]
	})

	b.WriteString("\nSource Breakdown:\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "- %s: %d passages\n", s, counts[s])
	}
	return b.String()
}
