package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// PurgeResult is the wire response for a purged document.
type PurgeResult struct {
	DocumentHash  string `json:"document_hash"`
	ChunksRemoved int64  `json:"chunks_removed"`
}

// PurgeCmd creates the purge command.
func PurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge <hash>",
		Short: "Remove a document from the index",
		Long: `Removes every chunk of the document with the given content hash.

Find hashes with 'burrow stats'. Purging a hash that is not in the
index returns a not-found error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runPurge(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runPurge(cmd *cobra.Command, hash string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Delete(fmt.Sprintf("/v1/documents/%s", hash))
	if err != nil {
		return fmt.Errorf("failed to purge document: %w", err)
	}

	var result PurgeResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Purged document %s\n", result.DocumentHash)
		fmt.Printf("Chunks removed: %d\n", result.ChunksRemoved)
	}

	return nil
}
