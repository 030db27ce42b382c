package rag

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// ToolName is the retrieval tool's registered name. The agent's system
// prompt refers to it by this exact name.
const ToolName = "vector_store_search"

// DefineSearchTool registers the retrieval tool with Genkit. The tool
// never returns an error to the model for an empty result set; it
// returns the no-results literal so the model can answer accordingly.
func DefineSearchTool(g *genkit.Genkit, r *Retriever) ai.Tool {
	return genkit.DefineTool(
		g,
		ToolName,
		"Search the vector store for relevant documents based on a query. "+
			"Retrieves the most relevant indexed document chunks matching the query. "+
			"Use this when you need information from the document collection.",
		func(ctx *ai.ToolContext, input struct {
			Query    string `json:"query" jsonschema_description:"The search query or question to find relevant documents for."`
			NResults int    `json:"n_results,omitempty" jsonschema_description:"Number of results to return. Defaults to 4."`
		},
		) (string, error) {
			return r.Search(ctx, input.Query, input.NResults)
		},
	)
}
