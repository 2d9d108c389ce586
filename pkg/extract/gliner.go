package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/soundprediction/go-gline-rs/pkg/gline"

	"github.com/soundprediction/controlgraph/pkg/types"
)

// GlinerRecognizer slots a GLiNER span model into the rule table for corpora
// where the pattern and dictionary rules are too narrow. Predicted labels are
// mapped onto the closed entity type set; spans with labels outside the map
// are dropped.
type GlinerRecognizer struct {
	model    *gline.Model
	labels   []string
	labelMap map[string]types.EntityType
	minScore float32
	mu       sync.Mutex
}

// NewGlinerRecognizer loads a GLiNER span model and maps its labels onto
// entity types. modelID is either a Hugging Face model id or a local
// directory holding model.onnx and tokenizer.json. minScore filters
// low-confidence spans (0 keeps everything).
func NewGlinerRecognizer(modelID string, labelMap map[string]types.EntityType, minScore float32) (*GlinerRecognizer, error) {
	if err := gline.Init(); err != nil {
		return nil, fmt.Errorf("failed to init gline: %w", err)
	}

	var model *gline.Model
	var err error
	if _, statErr := os.Stat(modelID); statErr == nil {
		model, err = gline.NewSpanModel(
			filepath.Join(modelID, "model.onnx"),
			filepath.Join(modelID, "tokenizer.json"))
	} else {
		model, err = gline.NewSpanModelFromHF(modelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gliner model %s: %w", modelID, err)
	}

	labels := make([]string, 0, len(labelMap))
	for label := range labelMap {
		labels = append(labels, label)
	}

	return &GlinerRecognizer{
		model:    model,
		labels:   labels,
		labelMap: labelMap,
		minScore: minScore,
	}, nil
}

// Name returns the rule name.
func (r *GlinerRecognizer) Name() string { return "gliner" }

// Recognize predicts spans in the chunk text. The underlying model is not
// safe for concurrent prediction.
func (r *GlinerRecognizer) Recognize(chunk *types.Chunk) ([]Candidate, error) {
	r.mu.Lock()
	results, err := r.model.Predict([]string{chunk.Text}, r.labels)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("gliner prediction failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	var out []Candidate
	search := 0
	for _, span := range results[0] {
		if span.Probability < r.minScore {
			continue
		}
		entityType, ok := r.labelMap[span.Label]
		if !ok {
			continue
		}
		// The model reports surface text, not offsets; locate the span so
		// overlap resolution can see it. Repeated mentions advance the
		// search cursor.
		idx := strings.Index(chunk.Text[search:], span.Text)
		if idx < 0 {
			idx = strings.Index(chunk.Text, span.Text)
			if idx < 0 {
				continue
			}
			search = 0
		} else {
			idx += search
		}
		start, end := idx, idx+len(span.Text)
		search = end

		id := types.NormalizeLabel(strings.ToLower(span.Text))
		out = append(out, Candidate{
			ID:    id,
			Type:  entityType,
			Name:  types.NormalizeLabel(span.Text),
			Start: start,
			End:   end,
			Attributes: map[string]string{
				"gliner_label": span.Label,
			},
		})
	}
	return out, nil
}

// Close releases the model.
func (r *GlinerRecognizer) Close() {
	if r.model != nil {
		r.model.Close()
	}
}
