package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DocumentEntry is one catalog row in the index stats.
type DocumentEntry struct {
	Hash   string `json:"hash"`
	Name   string `json:"name"`
	Chunks int64  `json:"chunks"`
}

// IndexStats is the wire response for index statistics.
type IndexStats struct {
	Chunks        int64           `json:"chunks"`
	Documents     int64           `json:"documents"`
	LastIndexedAt string          `json:"last_indexed_at,omitempty"`
	Catalog       []DocumentEntry `json:"catalog"`
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  "Displays document and chunk counts plus the document catalog with content hashes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runStats(cmd, outputJSON)
		},
	}

	return cmd
}

func runStats(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/v1/index/stats")
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}

	var stats IndexStats
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return fmt.Errorf("failed to parse stats: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if stats.Documents == 0 {
		fmt.Println("Index is empty. Add documents with 'burrow ingest'.")
		return nil
	}

	fmt.Printf("Documents: %d\n", stats.Documents)
	fmt.Printf("Chunks: %d\n", stats.Chunks)
	if stats.LastIndexedAt != "" {
		fmt.Printf("Last indexed: %s\n", stats.LastIndexedAt)
	}

	if len(stats.Catalog) > 0 {
		fmt.Println()
		for _, doc := range stats.Catalog {
			fmt.Printf("  %s  %s (%d chunks)\n", shortHash(doc.Hash), doc.Name, doc.Chunks)
		}
	}

	return nil
}
