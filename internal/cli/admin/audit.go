package admin

import (
	"encoding/json"
	"fmt"

	"github.com/burrowlabs/burrow/internal/config"
	"github.com/burrowlabs/burrow/internal/storage"
	"github.com/spf13/cobra"
)

func AuditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit log",
		Long:  "Read the audit log file directly, without going through the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runAudit(outputFormat, limit)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events")

	return cmd
}

func runAudit(outputFormat string, limit int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	auditLog, err := storage.NewFileAuditLog(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLog.Close()

	events, err := auditLog.Tail(limit)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	// Most recent first for display.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(events, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}
		fmt.Printf("Audit events from %s (most recent first):\n", auditLog.Path())
		for _, event := range events {
			line := fmt.Sprintf("  %s  %-14s %-8s session=%s",
				event.Time.Format("2006-01-02 15:04:05"), event.Kind, event.Outcome, event.SessionID)
			if event.Detail != "" {
				line += "  " + event.Detail
			}
			fmt.Println(line)
		}
	}

	return nil
}
