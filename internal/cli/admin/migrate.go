package admin

import (
	"fmt"

	"github.com/burrowlabs/burrow/internal/config"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending schema migrations for the pgvector backend",
		RunE:  runMigrate,
	}

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.VectorBackend != "pgvector" {
		return fmt.Errorf("migrations apply to the pgvector backend only (current backend: %s)", cfg.VectorBackend)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("BURROW_DATABASE_URL is required to run migrations")
	}

	return runMigrations(cfg.DatabaseURL)
}
