package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/harborseal/harborseal/internal/credentials"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the model-service API key",
}

func init() {
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authClearCmd)
	authCmd.AddCommand(authShowCmd)
}

var authSetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the API key in the system keyring",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		raw := ""
		if len(args) == 1 {
			raw = args[0]
		}
		key, err := ensureKeyInput(raw)
		if err != nil {
			return err
		}
		if err := credentials.SetAPIKey(key); err != nil {
			return err
		}
		fmt.Println("✓ API key stored in the system keyring")
		return nil
	},
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the API key from the system keyring",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := credentials.DeleteAPIKey(); err != nil {
			if errors.Is(err, credentials.ErrNotFound) {
				fmt.Println("No API key is stored")
				return nil
			}
			return err
		}
		fmt.Println("✓ API key removed from the system keyring")
		return nil
	},
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show where the API key comes from",
	RunE: func(_ *cobra.Command, _ []string) error {
		if os.Getenv(credentials.APIKeyName) != "" {
			fmt.Printf("API key set via %s environment variable\n", credentials.APIKeyName)
			return nil
		}
		stored, err := credentials.HasSecret(credentials.APIKeyName)
		if err != nil {
			return err
		}
		if stored {
			fmt.Println("API key stored in the system keyring")
		} else {
			fmt.Println("No API key configured (run 'harborseal auth set')")
		}
		return nil
	},
}

// ensureKeyInput uses the argument when given, otherwise prompts without
// echoing.
func ensureKeyInput(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		return trimmed, nil
	}

	fmt.Fprint(os.Stdout, "Enter API key: ")
	input, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return "", fmt.Errorf("read key: %w", err)
	}

	trimmed = strings.TrimSpace(string(input))
	if trimmed == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}
	return trimmed, nil
}
