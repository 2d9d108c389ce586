package controlgraph

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/config"
	"github.com/soundprediction/controlgraph/pkg/types"
)

// workflowFile is the YAML shape of a workflow definition:
//
//	id: posture-review
//	steps:
//	  - id: gap-analysis
//	    agent: compliance
//	    required: true
//	    params:
//	      min_evidence_threshold: 2
//	  - id: report
//	    agent: synthesis
//	    depends_on: [gap-analysis]
//	    timeout: 2m
type workflowFile struct {
	ID    string         `yaml:"id"`
	Steps []workflowStep `yaml:"steps"`
}

// workflowStep keeps the timeout as a duration string in the file.
type workflowStep struct {
	ID        string         `yaml:"id"`
	Agent     string         `yaml:"agent"`
	DependsOn []string       `yaml:"depends_on"`
	Params    map[string]any `yaml:"params"`
	Timeout   string         `yaml:"timeout"`
	Required  bool           `yaml:"required"`
}

func (f *workflowFile) toSteps() ([]types.WorkflowStep, error) {
	steps := make([]types.WorkflowStep, len(f.Steps))
	for i, s := range f.Steps {
		var timeout time.Duration
		if s.Timeout != "" {
			var err error
			timeout, err = time.ParseDuration(s.Timeout)
			if err != nil {
				return nil, fmt.Errorf("step %q has invalid timeout %q: %w", s.ID, s.Timeout, err)
			}
		}
		steps[i] = types.WorkflowStep{
			ID:        s.ID,
			Agent:     s.Agent,
			DependsOn: s.DependsOn,
			Params:    s.Params,
			Timeout:   timeout,
			Required:  s.Required,
		}
	}
	return steps, nil
}

var workflowCmd = &cobra.Command{
	Use:   "workflow <workflow.yaml>",
	Short: "Run an agent workflow from a YAML definition",
	Long: `Workflow runs a DAG of agent steps defined in a YAML file. Step failures
are recorded per step; the exit status reflects the overall workflow outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	rootCmd.AddCommand(workflowCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read workflow file: %w", err)
	}
	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("failed to parse workflow file: %w", err)
	}
	if wf.ID == "" {
		wf.ID = args[0]
	}
	steps, err := wf.toSteps()
	if err != nil {
		return err
	}

	client, err := controlgraph.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.RunWorkflow(context.Background(), wf.ID, steps)
	if err != nil {
		return err
	}

	fmt.Printf("Workflow %s: %s\n", wf.ID, result.Status)
	for _, r := range result.StepResults() {
		line := fmt.Sprintf("  %-20s %-10s %s", r.StepID, r.Status, r.Duration())
		if r.SkippedBy != "" {
			line += fmt.Sprintf("  (skipped by %s)", r.SkippedBy)
		}
		if r.Err != nil {
			line += fmt.Sprintf("  %s: %s", r.Err.Kind, r.Err.Message)
		}
		fmt.Println(line)
	}

	if result.Status != "success" {
		return fmt.Errorf("workflow finished with status %s", result.Status)
	}
	return nil
}
