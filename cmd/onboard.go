package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harborseal/harborseal/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and data directories",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DocsPath(), 0o755); err != nil {
		return fmt.Errorf("create docs directory: %w", err)
	}
	fmt.Printf("✓ Docs directory at %s\n", cfg.DocsPath())

	fmt.Printf("\n%s harborseal is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Store your API key: harborseal auth set\n")
	fmt.Printf("  2. Drop documents into %s (or: harborseal docs add <file>)\n", cfg.DocsPath())
	fmt.Printf("  3. Chat: harborseal chat -m \"What do my documents say?\"\n")
	return nil
}
