package main

import (
	"fmt"
	"os"

	"github.com/burrowlabs/burrow/internal/cli"
	"github.com/burrowlabs/burrow/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "burrow",
		Short: "Burrow CLI - Ask questions over your own documents",
		Long: `Burrow CLI talks to a local burrowd daemon to index documents and answer
questions grounded in them.

Environment variables:
  BURROW_SESSION_TOKEN   Session token for authentication
  BURROW_API_URL         API base URL (default: http://127.0.0.1:8642)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("token", "", "Session token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.ConfigCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.AgentCmd())
	rootCmd.AddCommand(client.PurgeCmd())
	rootCmd.AddCommand(client.StatsCmd())
	rootCmd.AddCommand(client.AuditCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
