package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aiinpocket/HomePage/internal/infra/credentials"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage stored generator API keys",
}

var keySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an API key for a generator provider",
	Long:  "Stores the key in integration_tokens. Without --key the provider's environment variable is used.",
	RunE:  runKeySet,
}

var (
	keyProvider string
	keyValue    string
)

func init() {
	keySetCmd.Flags().StringVar(&keyProvider, "provider", credentials.ProviderOpenAI, "Provider (openai or gemini)")
	keySetCmd.Flags().StringVar(&keyValue, "key", "", "API key (falls back to the environment)")

	keyCmd.AddCommand(keySetCmd)
	rootCmd.AddCommand(keyCmd)
}

func runKeySet(cmd *cobra.Command, _ []string) error {
	provider := strings.ToLower(strings.TrimSpace(keyProvider))
	if !credentials.SupportedProvider(provider) {
		return fmt.Errorf("unsupported provider %q", keyProvider)
	}
	key := strings.TrimSpace(keyValue)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(strings.ToUpper(provider) + "_API_KEY"))
	}
	if key == "" {
		return fmt.Errorf("%s API key is required via --key or environment", strings.ToUpper(provider))
	}

	ctx, rt, done, err := openRuntime(cmd, "key")
	if err != nil {
		return err
	}
	defer done()

	if rt.Keys == nil {
		return errors.New("stored keys require a postgres DATABASE_URL")
	}
	if err := rt.Keys.SetToken(ctx, provider, key); err != nil {
		return fmt.Errorf("failed to persist %s api key: %w", provider, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s API key stored successfully\n", strings.ToUpper(provider))
	return nil
}
