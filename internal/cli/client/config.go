package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// GlobalConfig represents the credentials stored in config.json
type GlobalConfig struct {
	SessionToken string `json:"session_token"`
	APIURL       string `json:"api_url"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "burrow"), nil
}

func defaultGetConfigPath() (string, error) {
	configDir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetConfigDir returns the platform-specific configuration directory
func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

// GetConfigPath returns the full path to the config.json file
func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig reads and parses the global config.json file
// Returns nil config (not error) if file doesn't exist
func LoadGlobalConfig() (*GlobalConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveGlobalConfig writes the config to config.json with 0600 permissions
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DeleteGlobalConfig removes the config.json file
func DeleteGlobalConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(configPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete config file: %w", err)
	}

	return nil
}

// IsValidSessionToken checks that a token is usable as a bearer
// credential. The daemon accepts any operator-chosen secret, so the
// only hard requirements are non-empty and whitespace-free.
func IsValidSessionToken(token string) bool {
	if token == "" {
		return false
	}
	return !strings.ContainsAny(token, " \t\r\n")
}

// CredentialSource represents where credentials came from
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceNone         CredentialSource = "none"
)

// GetCredentialSource reports where the session token comes from, with
// cascade check in order: flag -> env -> global_config -> none. The API
// URL resolves independently through the same cascade and falls back to
// the default, so a token alone is enough at any level.
func GetCredentialSource(flagToken, flagURL string) (CredentialSource, string, string) {
	config, _ := LoadGlobalConfig()

	apiURL := flagURL
	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" && config != nil {
		apiURL = config.APIURL
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	if flagToken != "" {
		return SourceFlag, flagToken, apiURL
	}
	if envToken := os.Getenv(envSessionToken); envToken != "" {
		return SourceEnv, envToken, apiURL
	}
	if config != nil && config.SessionToken != "" {
		return SourceGlobalConfig, config.SessionToken, apiURL
	}

	return SourceNone, "", ""
}

// ConfigCmd creates the config command.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show CLI configuration",
		Long:  "Display the stored config path, the credential source, and the resolved API URL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			flagToken, _ := cmd.Flags().GetString("token")
			flagURL, _ := cmd.Flags().GetString("api-url")
			return runConfig(flagToken, flagURL, outputJSON)
		},
	}

	cmd.AddCommand(ConfigClearCmd())

	return cmd
}

// ConfigClearCmd creates the config clear command.
func ConfigClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove stored credentials",
		Long:  "Deletes the global config.json so the CLI falls back to flags and environment variables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to clear config: %w", err)
			}
			fmt.Println("Credentials cleared")
			return nil
		},
	}
}

func runConfig(flagToken, flagURL string, outputJSON bool) error {
	source, token, apiURL := GetCredentialSource(flagToken, flagURL)
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if outputJSON {
		status := map[string]interface{}{
			"configured":  source != SourceNone,
			"source":      string(source),
			"config_path": configPath,
		}
		if source != SourceNone {
			status["session_token"] = maskToken(token)
			status["api_url"] = apiURL
		}
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if source == SourceNone {
		fmt.Println("No session token configured")
		fmt.Println("Run 'burrow init' or set BURROW_SESSION_TOKEN")
		return nil
	}

	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Source: %s\n", source)
	fmt.Printf("Session token: %s\n", maskToken(token))
	fmt.Printf("API URL: %s\n", apiURL)

	return nil
}

func maskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:7] + "..." + token[len(token)-4:]
}
