package controlgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/config"
	"github.com/soundprediction/controlgraph/pkg/retrieve"
	"github.com/soundprediction/controlgraph/pkg/types"
)

var (
	queryTopK  int
	queryAlpha float64

	queryCmd = &cobra.Command{
		Use:   "query <text>",
		Short: "Run a hybrid retrieval query",
		Long: `Query runs hybrid retrieval: vector similarity blended with knowledge graph
proximity. alpha controls the blend; 1 is pure vector ranking, 0 is pure
graph ranking.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runQuery,
	}
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().IntVar(&queryTopK, "top-k", 10, "Number of passages to return")
	queryCmd.Flags().Float64Var(&queryAlpha, "alpha", retrieve.DefaultAlpha, "Vector/graph blend in [0, 1]")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := controlgraph.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	text := strings.Join(args, " ")
	result, err := client.Query(context.Background(), text, queryTopK, queryAlpha)
	if err != nil {
		return err
	}

	if len(result.QueryEntities) > 0 {
		fmt.Printf("Query entities: %s\n\n", strings.Join(result.QueryEntities, ", "))
	}
	if len(result.Passages) == 0 {
		fmt.Println("No passages found")
		return nil
	}
	for i, p := range result.Passages {
		fmt.Printf("%2d. [%.4f] %s\n", i+1, p.Score, types.FormatProvenance(&p.Passage))
		if p.FromGraph {
			fmt.Printf("    via graph: %s\n", strings.Join(p.ViaEntities, ", "))
		}
		fmt.Printf("    %s\n", excerptLine(p.Text, 160))
	}
	for _, path := range result.Paths {
		fmt.Printf("\npath %s (distance %.3f)\n", strings.Join(path.Entities, " -> "), path.Distance)
	}
	return nil
}

func excerptLine(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
