package main

import (
	"fmt"
	"os"

	"github.com/burrowlabs/burrow/internal/cli"
	"github.com/burrowlabs/burrow/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "burrowd",
		Short: "Burrow daemon and admin CLI",
		Long:  "Burrow daemon for serving the local query engine and managing migrations, tokens, and the audit log",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.TokenCmd())
	rootCmd.AddCommand(admin.AuditCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
