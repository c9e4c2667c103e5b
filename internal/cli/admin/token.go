package admin

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/spf13/cobra"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the session token",
		Long:  "Generate the shared token the daemon and client authenticate with",
	}

	cmd.AddCommand(TokenNewCmd())

	return cmd
}

func TokenNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a new session token",
		Long:  "Generate a random session token to use as BURROW_SESSION_TOKEN",
		RunE:  runTokenNew,
	}

	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runTokenNew(cmd *cobra.Command, args []string) error {
	outputFormat, _ := cmd.Flags().GetString("output")

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"token":      token,
			"session_id": domain.SessionIDFromToken(token),
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Token: %s\n", token)
		fmt.Printf("Session ID: %s\n", domain.SessionIDFromToken(token))
		fmt.Println("\nExport it for the daemon and store it for the client:")
		fmt.Printf("  export BURROW_SESSION_TOKEN=%s\n", token)
		fmt.Printf("  burrow init --token %s\n", token)
		fmt.Println("\n⚠️  Save this token now. It is not stored anywhere.")
	}

	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "brw_" + hex.EncodeToString(buf), nil
}
