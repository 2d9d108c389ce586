// Package controlgraph provides knowledge-graph-enhanced retrieval and
// autonomous workflow orchestration over security compliance corpora.
//
// The engine ingests document chunks, extracts typed entities (controls,
// concepts, publications) with an ordered recognizer table, and builds an
// in-memory knowledge graph whose co-occurrence and hierarchy edges drive
// hybrid retrieval: vector similarity blended with graph proximity. On top
// of retrieval sit three agents (compliance gap analysis, multi-hop
// research, report synthesis) scheduled as a DAG by the coordinator.
//
// # Basic Usage
//
// Build a client from configuration, ingest a corpus, then query:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	client, err := controlgraph.Open(cfg, cfg.NewLogger(os.Stderr))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	chunks := []*types.Chunk{
//		{ID: "c1", Text: "AC-2 account management requires ...", Source: "policy.pdf", Page: 3},
//	}
//	if _, err := client.BuildGraph(ctx, chunks); err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.Query(ctx, "account management", 10, 0.7)
//
// # Workflows
//
// Workflows are declared as steps with dependencies and run by the
// coordinator; step failures are recorded per step and partial success is a
// first-class outcome:
//
//	steps := []types.WorkflowStep{
//		{ID: "gap-analysis", Agent: "compliance", Required: true},
//		{ID: "research", Agent: "research", Params: map[string]any{"topic": "access control"}},
//		{ID: "report", Agent: "synthesis", DependsOn: []string{"gap-analysis", "research"}},
//	}
//	result, err := client.RunWorkflow(ctx, "posture-review", steps)
package controlgraph
