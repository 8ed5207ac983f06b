package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harborseal/harborseal/internal/config"
	"github.com/harborseal/harborseal/internal/container"
)

var ragServeCmd = &cobra.Command{
	Use:   "rag-serve",
	Short: "Run the retrieval provider on stdio",
	Long: "Run the retrieval provider: a tool server speaking JSON-RPC on\n" +
		"stdin/stdout, answering questions over the indexed document set.\n" +
		"The chat client spawns this automatically as the default provider.",
	RunE: runRagServe,
}

func runRagServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, err := container.NewRag(cfg)
	if err != nil {
		return err
	}
	defer c.Store().Close()

	// stdout carries the protocol; anything human-facing goes to stderr.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.Server().Serve(gctx) })
	if cfg.Index.Watch {
		g.Go(func() error { return c.Watcher().Run(gctx) })
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "rag-serve error: %v\n", err)
		return err
	}
	return nil
}
