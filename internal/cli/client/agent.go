package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AgentRequest is the wire request for an agent run.
type AgentRequest struct {
	Question string `json:"question"`
}

// AgentStep is one tool invocation within an agent run.
type AgentStep struct {
	Tool       string `json:"tool"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	Rejected   bool   `json:"rejected,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// AgentResponse is the wire response for an agent run.
type AgentResponse struct {
	Answer     string      `json:"answer"`
	Steps      []AgentStep `json:"steps,omitempty"`
	Iterations int         `json:"iterations"`
	Partial    bool        `json:"partial"`
	Model      string      `json:"model,omitempty"`
	LatencyMS  int64       `json:"latency_ms"`
}

// AgentCmd creates the agent command.
func AgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent <question>",
		Short: "Answer a question with tool use",
		Long: `Runs the question through the tool-using agent. The agent may call
the calculator and document-analyzer tools before answering; each step
is reported. Runs that hit the iteration or time budget return a
partial answer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAgent(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runAgent(cmd *cobra.Command, question string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/v1/agent", AgentRequest{Question: question})
	if err != nil {
		return fmt.Errorf("agent run failed: %w", err)
	}

	var run AgentResponse
	if err := json.Unmarshal(resp.Data, &run); err != nil {
		return fmt.Errorf("failed to parse agent response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(run, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(run.Answer)

	if len(run.Steps) > 0 {
		fmt.Println()
		fmt.Println("Steps:")
		for i, step := range run.Steps {
			switch {
			case step.Rejected:
				fmt.Printf("  %d. %s rejected: %s\n", i+1, step.Tool, step.Error)
			case step.Error != "":
				fmt.Printf("  %d. %s failed: %s\n", i+1, step.Tool, step.Error)
			default:
				fmt.Printf("  %d. %s (%dms): %s\n", i+1, step.Tool, step.DurationMS, truncate(step.Output, 100))
			}
		}
	}

	if run.Partial {
		fmt.Println("\nPartial answer: the run stopped at the iteration or time budget.")
	}
	if run.Model != "" {
		fmt.Printf("\nModel: %s, %d iteration(s), %dms\n", run.Model, run.Iterations, run.LatencyMS)
	}

	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
