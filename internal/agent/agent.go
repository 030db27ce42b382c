// Package agent runs the question-answering loop: a Genkit generate call
// with the vector store search tool attached, letting the model decide
// per query whether to retrieve or answer directly.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/kestrel0/ragdex/internal/config"
	"github.com/kestrel0/ragdex/internal/log"
	"github.com/kestrel0/ragdex/internal/rag"
)

// Defaults for the generation call.
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.7
	DefaultMaxTurns    = 5
)

// forceRetrievalPrefix is prepended to the user query when the caller
// wants retrieval regardless of what the model would decide.
const forceRetrievalPrefix = "[IMPORTANT: You must use the " + rag.ToolName + " tool for this query] "

// systemPrompt teaches the model when the retrieval tool is worth a
// call and when it is noise.
const systemPrompt = `You are a helpful assistant with access to a document search tool.

You have access to the following tool:
- ` + rag.ToolName + `: Search for relevant documents in the vector store collection.

Use the ` + rag.ToolName + ` tool when:
- The user asks about information that might be in the document collection
- The user asks about specific documents, files, or content
- You need to find information from indexed documents

Do NOT use the tool when:
- The question is about general knowledge that doesn't require document search
- The question is a simple factual question you can answer directly
- The question is about your capabilities or how to use you

When you use the tool, analyze the retrieved documents and provide a comprehensive answer based on the retrieved information.
When you don't use the tool, answer directly and helpfully.`

// ErrEmptyQuery rejects blank questions before any model call.
var ErrEmptyQuery = errors.New("query must not be empty")

// Agent answers questions, retrieving from the vector store when the
// model judges it useful.
type Agent struct {
	g           *genkit.Genkit
	tool        ai.Tool
	model       string
	temperature float64
	maxTurns    int
	logger      log.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithModel overrides the chat model name.
func WithModel(name string) Option {
	return func(a *Agent) {
		if name != "" {
			a.model = name
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = t }
}

// WithMaxTurns caps the tool-call round trips in one query.
func WithMaxTurns(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// New creates an Agent using the given Genkit instance and retrieval
// tool. The tool must already be registered with g.
func New(g *genkit.Genkit, tool ai.Tool, logger log.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = log.NewNop()
	}

	a := &Agent{
		g:           g,
		tool:        tool,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		maxTurns:    DefaultMaxTurns,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AskInput is the request payload for the ask flow.
type AskInput struct {
	Query          string `json:"query"`
	ForceRetrieval bool   `json:"force_retrieval,omitempty"`
}

// DefineAskFlow registers a non-streaming flow wrapping Ask, making the
// answer loop callable through Genkit tooling and the dev UI.
func DefineAskFlow(g *genkit.Genkit, a *Agent) {
	genkit.DefineFlow(g, "ask",
		func(ctx context.Context, input AskInput) (string, error) {
			return a.Ask(ctx, input.Query, input.ForceRetrieval)
		})
}

// Ask answers one query. With forceRetrieval the query is prefixed with
// an instruction that makes the model call the search tool; otherwise
// the model decides on its own.
func (a *Agent) Ask(ctx context.Context, query string, forceRetrieval bool) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	if forceRetrieval {
		query = forceRetrievalPrefix + query
	}

	a.logger.Debug("agent query", "model", a.model, "force_retrieval", forceRetrieval)

	resp, err := genkit.Generate(ctx, a.g,
		ai.WithModelName(config.GoogleAIModel(a.model)),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(query),
		ai.WithTools(a.tool),
		ai.WithMaxTurns(a.maxTurns),
		ai.WithConfig(map[string]any{"temperature": a.temperature}),
	)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	answer := resp.Text()
	if answer == "" {
		return "", errors.New("model returned no response")
	}
	return answer, nil
}
