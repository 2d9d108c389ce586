package controlgraph

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/controlgraph/pkg/agent"
	"github.com/soundprediction/controlgraph/pkg/config"
	"github.com/soundprediction/controlgraph/pkg/coordinator"
	"github.com/soundprediction/controlgraph/pkg/embedder"
	"github.com/soundprediction/controlgraph/pkg/extract"
	"github.com/soundprediction/controlgraph/pkg/kgraph"
	"github.com/soundprediction/controlgraph/pkg/llm"
	"github.com/soundprediction/controlgraph/pkg/retrieve"
	"github.com/soundprediction/controlgraph/pkg/telemetry"
	"github.com/soundprediction/controlgraph/pkg/types"
	"github.com/soundprediction/controlgraph/pkg/vectorstore"
)

// BuildResult summarizes one corpus ingestion.
type BuildResult struct {
	Chunks       int          `json:"chunks"`
	Entities     int          `json:"entities"`
	Edges        int          `json:"edges"`
	SnapshotPath string       `json:"snapshot_path,omitempty"`
	Exported     bool         `json:"exported"`
	Stats        kgraph.Stats `json:"stats"`
}

// Client wires the engine together: vector store, embedder, extractor,
// knowledge graph, retriever, agents and coordinator. It is the entry point
// used by the CLI and the HTTP server.
type Client struct {
	config *config.Config
	logger *slog.Logger

	store     vectorstore.Store
	embedder  embedder.Client
	narrator  llm.Client
	extractor *extract.Extractor
	recorder  *telemetry.Recorder

	mu        sync.RWMutex
	graph     *kgraph.KnowledgeGraph
	retriever *retrieve.Retriever
	coord     *coordinator.Coordinator
}

// NewClient wires a client from its components. narrator may be nil to
// disable report narration. Open builds the components from configuration;
// tests inject fakes here directly.
func NewClient(store vectorstore.Store, embedClient embedder.Client, extractor *extract.Extractor, narrator llm.Client, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, types.NewError(types.KindConfiguration, "config is required")
	}
	if store == nil || embedClient == nil {
		return nil, types.NewError(types.KindConfiguration, "store and embedder are required")
	}
	if logger == nil {
		logger = cfg.NewLogger(os.Stderr)
	}
	if extractor == nil {
		extractor = extract.NewExtractor(nil, logger)
	}

	var recorder *telemetry.Recorder
	if cfg.Telemetry.ParquetPath != "" {
		var err error
		recorder, err = telemetry.NewRecorder(cfg.Telemetry.ParquetPath)
		if err != nil {
			logger.Warn("telemetry disabled", "error", err)
			recorder = nil
		}
	}

	c := &Client{
		config:    cfg,
		logger:    logger,
		store:     store,
		embedder:  embedClient,
		narrator:  narrator,
		extractor: extractor,
		recorder:  recorder,
	}

	// A previously built graph is picked up from its snapshot; without one
	// the retriever starts in pure vector mode.
	if path := cfg.Graph.SnapshotPath; path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			graph, loadErr := kgraph.Load(path)
			if loadErr != nil {
				logger.Warn("ignoring unreadable graph snapshot", "path", path, "error", loadErr)
			} else {
				c.graph = graph
				logger.Info("loaded graph snapshot", "path", path, "entities", graph.Order())
			}
		}
	}
	c.wire()

	return c, nil
}

// Open builds a client from configuration, constructing the embedder, vector
// store, extractor and narrator the config names.
func Open(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, types.NewError(types.KindConfiguration, "config is required")
	}
	if logger == nil {
		logger = cfg.NewLogger(os.Stderr)
	}

	embedClient, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg, logger)
	if err != nil {
		embedClient.Close()
		return nil, err
	}
	extractor, err := newExtractor(cfg, logger)
	if err != nil {
		embedClient.Close()
		store.Close()
		return nil, err
	}
	narrator, err := newNarrator(cfg)
	if err != nil {
		embedClient.Close()
		store.Close()
		extractor.Close()
		return nil, err
	}

	return NewClient(store, embedClient, extractor, narrator, cfg, logger)
}

// wire rebuilds the retriever and agent registry around the current graph.
// Caller must hold mu or be the constructor.
func (c *Client) wire() {
	c.retriever = retrieve.New(c.store, c.embedder, c.graph, c.extractor, c.logger)

	coord := coordinator.New(c.config.Workflow.MaxWorkers, c.logger)
	coord.Register(agent.NewComplianceAgent(c.retriever, c.graph, c.logger))
	coord.Register(agent.NewResearchAgent(c.retriever, c.embedder, c.logger))
	coord.Register(agent.NewSynthesisAgent(c.narrator, c.logger))
	c.coord = coord
}

// BuildGraph ingests a corpus: embeds and stores the chunks as passages,
// extracts entities, builds the knowledge graph, persists the snapshot and
// optionally exports to neo4j. The new graph replaces the previous one
// atomically once fully built.
func (c *Client) BuildGraph(ctx context.Context, chunks []*types.Chunk) (*BuildResult, error) {
	if len(chunks) == 0 {
		return nil, types.NewError(types.KindConfiguration, "corpus has no chunks")
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return nil, types.WrapError(types.KindConfiguration, err, "invalid chunk %q", chunk.ID)
		}
		texts[i] = chunk.Text
	}

	embeddings, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, types.WrapError(types.KindRetrieval, err, "failed to embed corpus")
	}
	if len(embeddings) != len(chunks) {
		return nil, types.NewError(types.KindRetrieval, "embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	passages := make([]*types.Passage, len(chunks))
	for i, chunk := range chunks {
		passages[i] = &types.Passage{
			ID:        chunk.ID,
			Text:      chunk.Text,
			Source:    chunk.Source,
			Page:      chunk.Page,
			Embedding: embeddings[i],
		}
	}
	if err := c.store.Put(ctx, passages); err != nil {
		return nil, err
	}

	entities, mentions, err := c.extractor.ExtractCorpus(chunks)
	if err != nil {
		return nil, err
	}

	builder := kgraph.NewBuilder(c.logger)
	builder.AddEntities(entities)
	builder.AddMentions(mentions)
	if c.config.Graph.CooccurrenceWindow > 0 {
		ordinals := make(map[string]int, len(chunks))
		for _, chunk := range chunks {
			ordinals[chunk.ID] = chunk.Ordinal
		}
		builder.AddChunkOrdinals(ordinals)
		builder.SetWindow(c.config.Graph.CooccurrenceWindow)
	}
	graph, err := builder.Build()
	if err != nil {
		return nil, err
	}

	result := &BuildResult{
		Chunks:   len(chunks),
		Entities: graph.Order(),
		Edges:    graph.Size(),
		Stats:    graph.Stats(5),
	}

	if path := c.config.Graph.SnapshotPath; path != "" {
		if err := graph.Save(path); err != nil {
			return nil, err
		}
		result.SnapshotPath = path
		if err := saveStats(path, result.Stats); err != nil {
			c.logger.Warn("failed to persist graph stats", "error", err)
		}
	}

	if c.config.Database.Driver == "neo4j" {
		if err := c.exportGraph(ctx, graph); err != nil {
			// Export is durable convenience, not part of the build contract.
			c.logger.Warn("neo4j export failed", "error", err)
		} else {
			result.Exported = true
		}
	}

	c.mu.Lock()
	c.graph = graph
	c.wire()
	c.mu.Unlock()

	c.logger.Info("graph built",
		"chunks", result.Chunks,
		"entities", result.Entities,
		"edges", result.Edges)
	return result, nil
}

func (c *Client) exportGraph(ctx context.Context, graph *kgraph.KnowledgeGraph) error {
	db := c.config.Database
	store, err := kgraph.NewNeo4jStore(db.URI, db.Username, db.Password, db.Database)
	if err != nil {
		return err
	}
	defer store.Close(ctx)
	return store.Export(ctx, graph)
}

// saveStats writes the build statistics next to the graph snapshot so the
// last build's shape is inspectable without reloading the graph.
func saveStats(snapshotPath string, stats kgraph.Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	path := strings.TrimSuffix(snapshotPath, filepath.Ext(snapshotPath)) + "_stats.json"
	return os.WriteFile(path, data, 0644)
}

// Query runs hybrid retrieval against the current graph and store.
func (c *Client) Query(ctx context.Context, text string, topK int, alpha float64) (*retrieve.Result, error) {
	c.mu.RLock()
	retriever := c.retriever
	c.mu.RUnlock()
	return retriever.Query(ctx, text, retrieve.Options{TopK: topK, Alpha: alpha})
}

// RunWorkflow executes a workflow against the registered agents and records
// per-step telemetry under a fresh run id.
func (c *Client) RunWorkflow(ctx context.Context, workflowID string, steps []types.WorkflowStep) (*coordinator.WorkflowResult, error) {
	c.mu.RLock()
	coord := c.coord
	c.mu.RUnlock()

	runID := telemetry.NewRunID()
	c.logger.Info("workflow starting", "workflow", workflowID, "run_id", runID, "steps", len(steps))

	result, err := coord.Run(ctx, steps)
	if result != nil {
		c.recordRun(runID, workflowID, result)
	}
	return result, err
}

func (c *Client) recordRun(runID, workflowID string, result *coordinator.WorkflowResult) {
	if c.recorder == nil {
		return
	}
	for _, r := range result.StepResults() {
		rec := telemetry.StepRecord{
			RunID:      runID,
			WorkflowID: workflowID,
			StepID:     r.StepID,
			Agent:      r.Agent,
			Status:     string(r.Status),
			SkippedBy:  r.SkippedBy,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			DurationMS: r.Duration().Milliseconds(),
		}
		if r.Err != nil {
			rec.ErrorKind = string(r.Err.Kind)
		}
		c.recorder.Record(rec)
	}
	if _, err := c.recorder.Flush(); err != nil {
		c.logger.Warn("failed to flush telemetry", "error", err)
	}
}

// Graph returns the current knowledge graph, nil before the first build.
func (c *Client) Graph() *kgraph.KnowledgeGraph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph
}

// GraphStats returns statistics for the current graph.
func (c *Client) GraphStats(topN int) (kgraph.Stats, error) {
	c.mu.RLock()
	graph := c.graph
	c.mu.RUnlock()
	if graph == nil {
		return kgraph.Stats{}, types.NewError(types.KindConfiguration, "no graph has been built")
	}
	return graph.Stats(topN), nil
}

// PassageCount reports how many passages the vector store holds.
func (c *Client) PassageCount(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

// Agents returns the registered agent names.
func (c *Client) Agents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.coord.Agents()
}

// Close releases every backend the client owns.
func (c *Client) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.recorder != nil {
		record(c.recorder.Close())
	}
	if c.narrator != nil {
		record(c.narrator.Close())
	}
	record(c.embedder.Close())
	record(c.store.Close())
	c.extractor.Close()
	return firstErr
}

func newEmbedder(cfg *config.Config) (embedder.Client, error) {
	ec := embedder.Config{
		Model:   cfg.Embedding.Model,
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
	}
	switch cfg.Embedding.Provider {
	case "openai":
		return embedder.NewOpenAIClient(ec), nil
	case "", "embedeverything":
		return embedder.NewLocalClient(ec)
	default:
		return nil, types.NewError(types.KindConfiguration, "unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func newStore(cfg *config.Config, logger *slog.Logger) (vectorstore.Store, error) {
	store, err := vectorstore.NewBadgerStore(cfg.VectorStore.Path)
	if err != nil {
		return nil, err
	}
	if !cfg.CircuitBreaker.Enabled {
		return store, nil
	}
	bc := vectorstore.BreakerConfig{
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
		Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
		ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
	}
	return vectorstore.NewBreakerStore(store, bc, logger), nil
}

func newExtractor(cfg *config.Config, logger *slog.Logger) (*extract.Extractor, error) {
	recognizers := extract.DefaultRecognizers()
	if model := cfg.Extraction.GlinerModel; model != "" {
		labelMap := map[string]types.EntityType{
			"security control": types.EntityControl,
			"security concept": types.EntityConcept,
			"publication":      types.EntityPublication,
		}
		gliner, err := extract.NewGlinerRecognizer(model, labelMap, float32(cfg.Extraction.MinScore))
		if err != nil {
			return nil, err
		}
		recognizers = append(recognizers, gliner)
	}
	return extract.NewExtractor(recognizers, logger), nil
}

func newNarrator(cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		return llm.NewOpenAIClient(llm.Config{
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}), nil
	case "rustbert":
		return llm.NewRustBertClient(), nil
	default:
		return nil, types.NewError(types.KindConfiguration, "unknown llm provider %q", cfg.LLM.Provider)
	}
}
