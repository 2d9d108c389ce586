package controlgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/config"
	"github.com/soundprediction/controlgraph/pkg/types"
)

var buildCmd = &cobra.Command{
	Use:   "build <corpus.json>",
	Short: "Build the knowledge graph from a corpus file",
	Long: `Build ingests a corpus file, extracts entities, builds the knowledge graph
and persists both the passages and the graph snapshot.

The corpus file is a JSON array of chunks:

  [
    {"id": "c1", "text": "AC-2 Account Management ...", "source": "policy.pdf", "page": 3, "ordinal": 0}
  ]`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	chunks, err := readCorpus(args[0])
	if err != nil {
		return err
	}

	client, err := controlgraph.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.BuildGraph(context.Background(), chunks)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d chunks\n", result.Chunks)
	fmt.Printf("Graph: %d entities, %d relationships\n", result.Entities, result.Edges)
	if result.SnapshotPath != "" {
		fmt.Printf("Snapshot: %s\n", result.SnapshotPath)
	}
	if result.Exported {
		fmt.Println("Exported to neo4j")
	}
	if len(result.Stats.TopCentral) > 0 {
		fmt.Println("Most central entities:")
		for _, e := range result.Stats.TopCentral {
			fmt.Printf("  %-12s %.4f  %s\n", e.EntityID, e.Centrality, e.Name)
		}
	}
	return nil
}

func readCorpus(path string) ([]*types.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}
	var chunks []*types.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to parse corpus file: %w", err)
	}
	return chunks, nil
}
