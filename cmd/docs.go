package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborseal/harborseal/internal/config"
	"github.com/harborseal/harborseal/internal/container"
	"github.com/harborseal/harborseal/internal/docstore"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the indexed document set",
}

func init() {
	docsCmd.AddCommand(docsAddCmd)
	docsCmd.AddCommand(docsRemoveCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsStatsCmd)
	docsCmd.AddCommand(docsSyncCmd)
}

// withStore opens the index, runs fn, and closes it again. Every docs
// subcommand goes through here.
func withStore(fn func(ctx context.Context, c *container.RagContainer) error) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, err := container.NewRag(cfg)
	if err != nil {
		return err
	}
	defer c.Store().Close()

	return fn(context.Background(), c)
}

func printReport(report docstore.AddReport) {
	for _, line := range report.Added {
		fmt.Printf("✓ %s\n", line)
	}
	for _, line := range report.Removed {
		fmt.Printf("✓ %s\n", line)
	}
	for _, line := range report.Skipped {
		fmt.Printf("- %s\n", line)
	}
	for _, line := range report.Errors {
		fmt.Printf("✗ %s\n", line)
	}
	if len(report.Added)+len(report.Removed)+len(report.Skipped)+len(report.Errors) == 0 {
		fmt.Println("Nothing to index.")
	}
}

// ---- add -------------------------------------------------------------------

var docsAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Index one or more document files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, c *container.RagContainer) error {
			printReport(c.Store().Add(ctx, args))
			return nil
		})
	},
}

// ---- remove ----------------------------------------------------------------

var docsRemoveCmd = &cobra.Command{
	Use:   "remove <file-name>",
	Short: "Remove a document and its chunks from the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, c *container.RagContainer) error {
			removed, err := c.Store().Remove(ctx, args[0])
			if err != nil {
				return err
			}
			if removed {
				fmt.Printf("✓ Removed %s\n", args[0])
			} else {
				fmt.Printf("Document %s not found\n", args[0])
			}
			return nil
		})
	},
}

// ---- list ------------------------------------------------------------------

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withStore(func(ctx context.Context, c *container.RagContainer) error {
			rows, err := c.Store().List(ctx)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No documents indexed.")
				return nil
			}
			fmt.Printf("%-32s %8s  %-16s\n", "Name", "Chunks", "Added")
			for _, row := range rows {
				fmt.Printf("%-32s %8d  %-16s\n", row.Name, row.Chunks, row.AddedAt.Format("2006-01-02 15:04"))
			}
			return nil
		})
	},
}

// ---- stats -----------------------------------------------------------------

var docsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withStore(func(ctx context.Context, c *container.RagContainer) error {
			stats, err := c.Store().Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Documents: %d\n", stats.TotalDocuments)
			fmt.Printf("Chunks:    %d\n", stats.TotalChunks)
			return nil
		})
	},
}

// ---- sync ------------------------------------------------------------------

var docsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Index every file in the docs directory",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withStore(func(ctx context.Context, c *container.RagContainer) error {
			dir := c.Config().DocsPath()
			report, err := c.Store().SyncDir(ctx, dir)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		})
	},
}
