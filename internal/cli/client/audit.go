package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// AuditEntry is one audit event as served by the daemon.
type AuditEntry struct {
	Time       time.Time `json:"ts"`
	SessionID  string    `json:"session_id"`
	RequestID  string    `json:"request_id,omitempty"`
	Kind       string    `json:"kind"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
}

// AuditPage is the wire response for an audit tail page.
type AuditPage struct {
	Events  []AuditEntry `json:"events"`
	Count   int          `json:"count"`
	Cursor  string       `json:"cursor,omitempty"`
	HasMore bool         `json:"has_more"`
}

// AuditCmd creates the audit command.
func AuditCmd() *cobra.Command {
	var limit int
	var cursor string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events",
		Long:  "Fetches the most recent audit events from the daemon, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAudit(cmd, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runAudit(cmd *cobra.Command, limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	resp, err := api.Get("/v1/admin/audit?" + params.Encode())
	if err != nil {
		return fmt.Errorf("failed to fetch audit events: %w", err)
	}

	var page AuditPage
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse audit events: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(page, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(page.Events) == 0 {
		fmt.Println("No audit events found.")
		return nil
	}

	for _, ev := range page.Events {
		line := fmt.Sprintf("%s  %-14s %-8s session=%s",
			ev.Time.Local().Format("2006-01-02 15:04:05"), ev.Kind, ev.Outcome, ev.SessionID)
		if ev.Detail != "" {
			line += "  " + ev.Detail
		}
		fmt.Println(line)
	}

	if page.HasMore && page.Cursor != "" {
		fmt.Printf("\nMore events available. Use --cursor %s\n", page.Cursor)
	}

	return nil
}
