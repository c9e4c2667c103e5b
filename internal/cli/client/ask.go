package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AskRequest is the wire request for a grounded query.
type AskRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Citation links an answer span back to an indexed document.
type Citation struct {
	DocumentName string  `json:"document_name"`
	Ordinal      int     `json:"ordinal"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
	Score        float64 `json:"score"`
}

// AskResponse is the wire response for a grounded query.
type AskResponse struct {
	Answer        string     `json:"answer"`
	Citations     []Citation `json:"citations"`
	Model         string     `json:"model,omitempty"`
	LatencyMS     int64      `json:"latency_ms"`
	DroppedChunks int        `json:"dropped_chunks,omitempty"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question over the indexed documents",
		Long:  "Retrieves the most relevant chunks from the index and answers the question grounded in them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], topK, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (0 = server default)")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, topK int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/v1/query", AskRequest{
		Query: question,
		TopK:  topK,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var answer AskResponse
	if err := json.Unmarshal(resp.Data, &answer); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(answer.Answer)

	if len(answer.Citations) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, c := range answer.Citations {
			fmt.Printf("  [%d] %s#%d (chars %d-%d, score %.2f)\n", i+1, c.DocumentName, c.Ordinal, c.Start, c.End, c.Score)
		}
	}
	if answer.DroppedChunks > 0 {
		fmt.Printf("\n%d retrieved chunks did not fit the context budget\n", answer.DroppedChunks)
	}
	if answer.Model != "" {
		fmt.Printf("\nModel: %s (%dms)\n", answer.Model, answer.LatencyMS)
	}

	return nil
}
