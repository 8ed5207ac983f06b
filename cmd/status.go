package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/harborseal/harborseal/internal/config"
	"github.com/harborseal/harborseal/internal/credentials"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show harborseal status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s harborseal Status\n\n", logo)

	fmt.Printf("Config:    %s %s\n", cfgPath, existsMark(cfgPath))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Index:     %s %s\n", cfg.IndexPath(), existsMark(cfg.IndexPath()))
	fmt.Printf("Docs:      %s %s\n", cfg.DocsPath(), existsMark(cfg.DocsPath()))
	fmt.Printf("Model:     %s (embeddings: %s)\n", cfg.Model.ChatModel, cfg.Model.EmbedModel)
	fmt.Printf("API key:   %s\n\n", apiKeyStatus(cfg))

	fmt.Println("Providers:")
	ids := make([]string, 0, len(cfg.Providers))
	for id := range cfg.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		spec := cfg.Providers[id]
		target := spec.Target
		for _, arg := range spec.Args {
			target += " " + arg
		}
		fmt.Printf("  %-14s %s\n", id, target)
	}
	if len(ids) == 0 {
		fmt.Println("  (none configured)")
	}
	return nil
}

func existsMark(path string) string {
	if _, err := os.Stat(path); err == nil {
		return "✓"
	}
	return "✗"
}

func apiKeyStatus(cfg *config.Config) string {
	if os.Getenv(credentials.APIKeyName) != "" {
		return "✓ (environment)"
	}
	if cfg.Model.APIKey != "" {
		return "✓ (config)"
	}
	if ok, _ := credentials.HasSecret(credentials.APIKeyName); ok {
		return "✓ (keyring)"
	}
	return "✗ not set (run 'harborseal auth set')"
}
