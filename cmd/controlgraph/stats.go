package controlgraph

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/config"
)

var (
	statsTopN int

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge graph statistics",
		RunE:  runStats,
	}
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsTopN, "top", 5, "Number of top central entities to show")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := controlgraph.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := client.GraphStats(statsTopN)
	if err != nil {
		return err
	}

	fmt.Printf("Entities:      %d\n", stats.Entities)
	fmt.Printf("Relationships: %d\n", stats.Relationships)
	fmt.Printf("Avg degree:    %.2f\n", stats.AvgDegree)

	printCounts := func(title string, counts map[string]int) {
		if len(counts) == 0 {
			return
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println(title)
		for _, k := range keys {
			fmt.Printf("  %-14s %d\n", k, counts[k])
		}
	}
	printCounts("By entity type:", stats.ByType)
	printCounts("By edge kind:", stats.ByKind)

	if len(stats.TopCentral) > 0 {
		fmt.Println("Most central entities:")
		for _, e := range stats.TopCentral {
			fmt.Printf("  %-12s %.4f  %s\n", e.EntityID, e.Centrality, e.Name)
		}
	}
	return nil
}
