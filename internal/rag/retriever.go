// Package rag exposes the vector store as a retrieval capability: a raw
// result API, a Genkit retriever, and an agent tool that returns results
// as one formatted text block.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/kestrel0/ragdex/internal/log"
	"github.com/kestrel0/ragdex/internal/store"
)

// NoResultsMessage is returned verbatim when a search matches nothing,
// so the agent sees a stable literal instead of an error.
const NoResultsMessage = "No relevant documents found in the vector store."

// DefaultTopK is how many results a search returns unless asked otherwise.
const DefaultTopK = 4

// Searcher is the slice of the vector store retrieval needs.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]store.Result, error)
}

// Retriever turns similarity search results into agent-consumable text.
type Retriever struct {
	store  Searcher
	logger log.Logger
}

// New creates a Retriever over the given search backend.
func New(s Searcher, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{store: s, logger: logger}
}

// Results returns up to n raw search hits for query. n <= 0 falls back
// to DefaultTopK.
func (r *Retriever) Results(ctx context.Context, query string, n int) ([]store.Result, error) {
	if n <= 0 {
		n = DefaultTopK
	}
	return r.store.Query(ctx, query, n)
}

// Search returns up to n hits rendered as one text block: numbered
// results with content, metadata and a relevance score. Zero hits yield
// NoResultsMessage rather than an error.
func (r *Retriever) Search(ctx context.Context, query string, n int) (string, error) {
	results, err := r.Results(ctx, query, n)
	if err != nil {
		return "", fmt.Errorf("search vector store: %w", err)
	}
	if len(results) == 0 {
		r.logger.Debug("search matched nothing", "query", query)
		return NoResultsMessage, nil
	}

	blocks := make([]string, 0, len(results))
	for i, res := range results {
		var sb strings.Builder
		fmt.Fprintf(&sb, "\n--- Result %d ---\n", i+1)
		fmt.Fprintf(&sb, "Content: %s\n", res.Content)
		if len(res.Metadata) > 0 {
			fmt.Fprintf(&sb, "Metadata: %s\n", formatMetadata(res.Metadata))
		}
		fmt.Fprintf(&sb, "Relevance Score: %.4f\n", res.Similarity)
		blocks = append(blocks, sb.String())
	}

	r.logger.Debug("search complete", "query", query, "results", len(results))
	return strings.Join(blocks, "\n"), nil
}

// DefineRetriever registers this retriever with Genkit under name.
func (r *Retriever) DefineRetriever(g *genkit.Genkit, name string) ai.Retriever {
	return genkit.DefineRetriever(
		g, name, nil,
		func(ctx context.Context, req *ai.RetrieverRequest) (*ai.RetrieverResponse, error) {
			query := ""
			if req.Query != nil && len(req.Query.Content) > 0 {
				query = req.Query.Content[0].Text
			}

			results, err := r.Results(ctx, query, DefaultTopK)
			if err != nil {
				return nil, err
			}

			docs := make([]*ai.Document, len(results))
			for i, res := range results {
				metadata := make(map[string]any, len(res.Metadata)+1)
				for k, v := range res.Metadata {
					metadata[k] = v
				}
				metadata["similarity"] = res.Similarity
				docs[i] = ai.DocumentFromText(res.Content, metadata)
			}

			return &ai.RetrieverResponse{Documents: docs}, nil
		},
	)
}

// formatMetadata renders metadata deterministically, sorted by key.
func formatMetadata(md map[string]string) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+md[k])
	}
	return strings.Join(pairs, ", ")
}
