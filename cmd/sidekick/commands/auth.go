package commands

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sidekick-dev/sidekick/internal/config"
	"github.com/sidekick-dev/sidekick/internal/secrets"
	"github.com/sidekick-dev/sidekick/internal/storage"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider credentials",
	Long: `Manage API keys for model providers. Keys are stored in the
operating system keychain; environment variables like ANTHROPIC_API_KEY
work as a read-only fallback.

Subcommands:
  list     List providers with a usable key
  login    Store an API key for a provider
  logout   Remove a provider's API key`,
}

var authListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List providers with a usable key",
	RunE:    runAuthList,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [provider]",
	Short: "Store an API key for a provider",
	Long: `Store an API key for a provider in the system keychain.

Supported providers:
  anthropic    Anthropic (Claude)
  openai       OpenAI (GPT-4, etc.)
  gemini       Google AI (Gemini)`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [provider]",
	Short: "Remove a provider's API key",
	RunE:  runAuthLogout,
}

func init() {
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
}

func newKeys() (*secrets.Keys, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}
	return secrets.NewKeys(storage.New(paths.StoragePath())), nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	keys, err := newKeys()
	if err != nil {
		return err
	}

	configured, err := keys.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(configured) == 0 {
		fmt.Println("No providers configured. Use: sidekick auth login <provider>")
		return nil
	}

	sort.Strings(configured)
	fmt.Println("Configured providers:")
	for _, p := range configured {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provider name required. Use: sidekick auth login <provider>")
	}
	provider := args[0]

	keys, err := newKeys()
	if err != nil {
		return err
	}

	fmt.Printf("Enter API key for %s: ", provider)
	reader := bufio.NewReader(os.Stdin)
	apiKey, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := keys.Set(cmd.Context(), provider, apiKey); err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}

	fmt.Printf("Saved API key for %s\n", provider)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provider name required. Use: sidekick auth logout <provider>")
	}
	provider := args[0]

	keys, err := newKeys()
	if err != nil {
		return err
	}

	if err := keys.Delete(cmd.Context(), provider); err != nil {
		return fmt.Errorf("failed to remove key: %w", err)
	}

	fmt.Printf("Removed API key for %s\n", provider)
	return nil
}
