package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// Candidate is a single recognizer match inside one chunk, before overlap
// resolution and cross-chunk merging.
type Candidate struct {
	ID         string
	Type       types.EntityType
	Name       string
	Start      int
	End        int
	Attributes map[string]string
}

// Span length in bytes. Longest-match-wins overlap resolution compares this.
func (c Candidate) spanLen() int { return c.End - c.Start }

func (c Candidate) overlaps(other Candidate) bool {
	return c.Start < other.End && other.Start < c.End
}

// Recognizer produces entity candidates from a chunk. Recognizers are applied
// in table order; order only matters for tie-breaking between equal-length
// overlapping spans.
type Recognizer interface {
	Name() string
	Recognize(chunk *types.Chunk) ([]Candidate, error)
}

// PatternRecognizer matches a regular expression and maps each match to a
// candidate via Build.
type PatternRecognizer struct {
	RuleName string
	Pattern  *regexp.Regexp
	Build    func(text string, match []int) (Candidate, bool)
}

// Name returns the rule name.
func (r *PatternRecognizer) Name() string { return r.RuleName }

// Recognize applies the pattern to the chunk text.
func (r *PatternRecognizer) Recognize(chunk *types.Chunk) ([]Candidate, error) {
	var out []Candidate
	for _, m := range r.Pattern.FindAllSubmatchIndex([]byte(chunk.Text), -1) {
		cand, ok := r.Build(chunk.Text, m)
		if !ok {
			continue
		}
		cand.Start = m[0]
		cand.End = m[1]
		out = append(out, cand)
	}
	return out, nil
}

// DictionaryRecognizer matches a keyword dictionary case-insensitively. Each
// dictionary entry maps a canonical concept id to its surface keywords; every
// keyword occurrence becomes one candidate for that concept.
type DictionaryRecognizer struct {
	RuleName   string
	EntityType types.EntityType
	// Terms maps canonical id -> keywords. Ids are iterated in sorted order
	// so extraction stays deterministic.
	Terms map[string][]string
}

// Name returns the rule name.
func (r *DictionaryRecognizer) Name() string { return r.RuleName }

// Recognize scans the lowercased chunk text for every keyword occurrence.
func (r *DictionaryRecognizer) Recognize(chunk *types.Chunk) ([]Candidate, error) {
	lower := strings.ToLower(chunk.Text)

	ids := make([]string, 0, len(r.Terms))
	for id := range r.Terms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Candidate
	for _, id := range ids {
		for _, kw := range r.Terms[id] {
			needle := strings.ToLower(kw)
			for from := 0; ; {
				i := strings.Index(lower[from:], needle)
				if i < 0 {
					break
				}
				start := from + i
				out = append(out, Candidate{
					ID:    id,
					Type:  r.EntityType,
					Name:  titleFromID(id),
					Start: start,
					End:   start + len(needle),
					Attributes: map[string]string{
						"matched_keyword": needle,
					},
				})
				from = start + len(needle)
			}
		}
	}
	return out, nil
}

func titleFromID(id string) string {
	words := strings.Split(strings.ReplaceAll(id, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
