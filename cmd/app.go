package cmd

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/kestrel0/ragdex/internal/agent"
	"github.com/kestrel0/ragdex/internal/chunker"
	"github.com/kestrel0/ragdex/internal/config"
	"github.com/kestrel0/ragdex/internal/index"
	"github.com/kestrel0/ragdex/internal/log"
	"github.com/kestrel0/ragdex/internal/parser"
	"github.com/kestrel0/ragdex/internal/rag"
	"github.com/kestrel0/ragdex/internal/store"
)

// retrieverName is the Genkit registry name for the document retriever.
const retrieverName = "documents"

// app holds the fully wired component graph for one command run.
type app struct {
	cfg       *config.Config
	logger    log.Logger
	genkit    *genkit.Genkit
	store     *store.Store
	indexer   *index.Indexer
	retriever *rag.Retriever
	tool      ai.Tool
	agent     *agent.Agent
}

// setup loads configuration and constructs the component graph. Every
// command path embeds or queries, so a missing API key is fatal here.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.RequireAPIKey(); err != nil {
		return nil, err
	}

	logger := newLogger()

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)

	st, err := store.Open(cfg.StorePath, cfg.Collection,
		store.NewEmbeddingFunc(embedder), log.WithComponent(logger, "store"))
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	p := parser.New(log.WithComponent(logger, "parser"),
		parser.WithTranscriber(parser.NewVisionTranscriber(g, cfg.ModelName)))

	ck, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("configuring chunker: %w", err)
	}

	ix, err := index.New(cfg.DataFolder, p, ck, st, cfg.SettleDelay(),
		log.WithComponent(logger, "index"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("configuring indexer: %w", err)
	}

	retriever := rag.New(st, log.WithComponent(logger, "rag"))
	retriever.DefineRetriever(g, retrieverName)
	tool := rag.DefineSearchTool(g, retriever)

	ag := agent.New(g, tool, log.WithComponent(logger, "agent"),
		agent.WithModel(cfg.ModelName),
		agent.WithTemperature(float64(cfg.Temperature)),
		agent.WithMaxTurns(cfg.MaxTurns))
	agent.DefineAskFlow(g, ag)

	return &app{
		cfg:       cfg,
		logger:    logger,
		genkit:    g,
		store:     st,
		indexer:   ix,
		retriever: retriever,
		tool:      tool,
		agent:     ag,
	}, nil
}

// close releases the store lock. Safe to call once per app.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close failed", "error", err)
	}
}
