package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harborseal/harborseal/internal/agent"
	"github.com/harborseal/harborseal/internal/config"
	"github.com/harborseal/harborseal/internal/container"
	"github.com/harborseal/harborseal/internal/mcp"
	"github.com/harborseal/harborseal/internal/shared/cmdutils"
	"github.com/harborseal/harborseal/internal/shared/textutil"
)

var chatMessage string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the harness",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := c.Hub()
	defer hub.CloseAll()
	listenForSignals(cancel, hub)

	if connected := hub.ConnectAll(ctx, c.ProviderSpecs()); connected == 0 {
		fmt.Println("Warning: no tool providers connected; answering without tools")
	}

	sess := agent.NewSession(cfg.Agent.SystemPrompt)
	engine := c.Engine()

	if chatMessage != "" {
		return runSingleMessage(ctx, engine, sess)
	}
	return runInteractive(ctx, engine, sess, hub)
}

// runSingleMessage runs one round and prints the final answer.
func runSingleMessage(ctx context.Context, engine *agent.Engine, sess *agent.Session) error {
	rctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "  ↳ thinking...\n")
	answer, err := engine.Run(rctx, sess, chatMessage, printProgress)
	if err != nil {
		return err
	}
	cmdutils.PrintResponse(answer)
	return nil
}

// runInteractive is the REPL: free text goes through a dispatch round,
// `tools` lists the routed catalogue, `new` starts a fresh conversation,
// exit commands leave. A failed round is reported and the loop continues.
func runInteractive(ctx context.Context, engine *agent.Engine, sess *agent.Session, hub *mcp.Hub) error {
	fmt.Printf("%s Interactive mode ('tools' lists routed tools, 'exit' or Ctrl+C to quit)\n\n", logo)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("You: ")

		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		switch strings.ToLower(line) {
		case "tools":
			printTools(ctx, hub)
			continue
		case "new":
			sess.Reset()
			fmt.Println("Started a new conversation.")
			continue
		}

		answer, err := engine.Run(ctx, sess, line, printProgress)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		cmdutils.PrintResponse(answer)
	}
}

func printProgress(note string) {
	fmt.Printf("  ↳ %s\n", note)
}

// printTools refreshes the catalogue and prints each routed tool with its
// owning provider.
func printTools(ctx context.Context, hub *mcp.Hub) {
	catalogue := hub.Catalogue(ctx)
	if len(catalogue) == 0 {
		fmt.Println("No tools routed.")
		return
	}
	sort.Slice(catalogue, func(i, j int) bool { return catalogue[i].Name < catalogue[j].Name })

	fmt.Printf("%-24s %-14s %s\n", "Tool", "Provider", "Description")
	fmt.Println(strings.Repeat("-", 78))
	for _, def := range catalogue {
		provider, _ := hub.Resolve(def.Name)
		fmt.Printf("%-24s %-14s %s\n", def.Name, provider, textutil.Preview(def.Description, 38))
	}
}

// listenForSignals closes every provider before exiting on SIGINT/SIGTERM.
func listenForSignals(cancel context.CancelFunc, hub *mcp.Hub) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nGoodbye!")
		cancel()
		hub.CloseAll()
		os.Exit(0)
	}()
}
