// Package container wires core harborseal services using go.uber.org/dig.
package container

import (
	"os"
	"time"

	"go.uber.org/dig"

	"github.com/harborseal/harborseal/internal/agent"
	"github.com/harborseal/harborseal/internal/config"
	"github.com/harborseal/harborseal/internal/credentials"
	"github.com/harborseal/harborseal/internal/docstore"
	"github.com/harborseal/harborseal/internal/mcp"
	"github.com/harborseal/harborseal/internal/providers"
	"github.com/harborseal/harborseal/internal/rag"
	"github.com/harborseal/harborseal/internal/schema"
)

// Container holds the resolved dispatch-side service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg    *config.Config
	model  *providers.Client
	hub    *mcp.Hub
	engine *agent.Engine
}

func (c *Container) Config() *config.Config   { return c.cfg }
func (c *Container) Model() *providers.Client { return c.model }
func (c *Container) Hub() *mcp.Hub            { return c.hub }
func (c *Container) Engine() *agent.Engine    { return c.engine }

// ProviderSpecs converts the configured providers into connection specs
// for the hub.
func (c *Container) ProviderSpecs() map[string]mcp.Spec {
	specs := make(map[string]mcp.Spec, len(c.cfg.Providers))
	for id, p := range c.cfg.Providers {
		specs[id] = mcp.Spec{
			Target:  p.Target,
			Args:    p.Args,
			Env:     p.Env,
			Headers: p.Headers,
		}
	}
	return specs
}

// RagContainer holds the resolved retrieval-side service singletons used by
// the rag-serve process and the docs commands. It is built separately from
// Container so the dispatch process never opens the index database.
type RagContainer struct {
	cfg     *config.Config
	store   *docstore.Store
	flow    *rag.Flow
	server  *rag.Server
	watcher *docstore.Watcher
}

func (c *RagContainer) Config() *config.Config     { return c.cfg }
func (c *RagContainer) Store() *docstore.Store     { return c.store }
func (c *RagContainer) Flow() *rag.Flow            { return c.flow }
func (c *RagContainer) Server() *rag.Server        { return c.server }
func (c *RagContainer) Watcher() *docstore.Watcher { return c.watcher }

// New builds and wires the dispatch-side services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d, err := build(cfg)
	if err != nil {
		return nil, err
	}

	var result *Container
	err = d.Invoke(func(
		model *providers.Client,
		hub *mcp.Hub,
		engine *agent.Engine,
	) {
		result = &Container{
			cfg:    cfg,
			model:  model,
			hub:    hub,
			engine: engine,
		}
	})
	return result, err
}

// NewRag builds and wires the retrieval-side services from cfg.
func NewRag(cfg *config.Config) (*RagContainer, error) {
	d, err := build(cfg)
	if err != nil {
		return nil, err
	}

	var result *RagContainer
	err = d.Invoke(func(
		store *docstore.Store,
		flow *rag.Flow,
		server *rag.Server,
		watcher *docstore.Watcher,
	) {
		result = &RagContainer{
			cfg:     cfg,
			store:   store,
			flow:    flow,
			server:  server,
			watcher: watcher,
		}
	})
	return result, err
}

// build registers every constructor. dig resolves lazily, so each entry
// point only constructs the services its Invoke asks for.
func build(cfg *config.Config) (*dig.Container, error) {
	d := dig.New()

	for _, provide := range []any{
		func() *config.Config { return cfg },
		newModelClient,
		newChatOptions,
		newHub,
		newEngine,
		newStore,
		newFlow,
		newRagServer,
		newWatcher,
	} {
		if err := d.Provide(provide); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func newModelClient(cfg *config.Config) *providers.Client {
	apiKey := credentials.ResolveAPIKey(cfg.Model.APIKey)
	return providers.NewClient(apiKey, cfg.Model.APIBase, cfg.Model.ChatModel, cfg.Model.EmbedModel)
}

func newChatOptions(cfg *config.Config) schema.ChatOptions {
	return schema.NewChatOptions(cfg.Model.ChatModel, cfg.Model.MaxTokens, cfg.Model.Temperature)
}

func newHub(cfg *config.Config) *mcp.Hub {
	connect := time.Duration(cfg.Agent.ConnectTimeoutMs) * time.Millisecond
	invoke := time.Duration(cfg.Agent.InvokeTimeoutMs) * time.Millisecond
	return mcp.NewHub(connect, invoke)
}

func newEngine(model *providers.Client, hub *mcp.Hub, opts schema.ChatOptions) *agent.Engine {
	return agent.NewEngine(model, hub, opts)
}

func newStore(cfg *config.Config, model *providers.Client) (*docstore.Store, error) {
	return docstore.Open(cfg.IndexPath(), model, cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
}

func newFlow(cfg *config.Config, store *docstore.Store, model *providers.Client, opts schema.ChatOptions) *rag.Flow {
	return rag.NewFlow(store, model, opts, cfg.Index.TopK)
}

func newRagServer(flow *rag.Flow) *rag.Server {
	return rag.NewServer(flow, os.Stdin, os.Stdout)
}

func newWatcher(cfg *config.Config, store *docstore.Store) *docstore.Watcher {
	return docstore.NewWatcher(store, cfg.DocsPath(), cfg.Index.Resync)
}
