package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func InitCmd() *cobra.Command {
	var token string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Store credentials for the burrow CLI",
		Long:  "Verifies the session token against the daemon and saves it to the global config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runInit(token, apiURL, outputJSON)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Session token (generate one with 'burrowd token new')")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL (default: http://127.0.0.1:8642)")

	return cmd
}

func runInit(token, apiURL string, outputJSON bool) error {
	_ = godotenv.Load()
	if token == "" {
		token = os.Getenv(envSessionToken)
	}
	if token == "" {
		fmt.Print("Enter session token: ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read session token: %w", err)
		}
		token = strings.TrimSpace(input)
	}
	if !IsValidSessionToken(token) {
		return fmt.Errorf("session token must be non-empty and contain no whitespace")
	}

	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	api, err := NewAPIClientWithConfig(token, apiURL)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	// Verify before persisting anything so a bad token never lands on disk.
	resp, err := api.Get("/v1/index/stats")
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %w", apiURL, err)
	}

	var stats IndexStats
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return fmt.Errorf("failed to parse stats response: %w", err)
	}

	if err := SaveGlobalConfig(&GlobalConfig{SessionToken: token, APIURL: apiURL}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if outputJSON {
		result := map[string]interface{}{
			"success":   true,
			"config":    configPath,
			"api_url":   apiURL,
			"documents": stats.Documents,
			"chunks":    stats.Chunks,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Connected to %s\n", apiURL)
		fmt.Printf("Index: %d documents, %d chunks\n", stats.Documents, stats.Chunks)
		fmt.Printf("Config saved to %s\n", configPath)
	}

	return nil
}
