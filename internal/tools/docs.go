package tools

import (
	"context"
	"fmt"

	"github.com/srmx/assistant/internal/docs"
)

// NewDocsSearchTool returns the synchronous tool that semantically searches
// the owner's indexed profile documents.
func NewDocsSearchTool(index *docs.Index) *Tool {
	return &Tool{
		Name:        "search_profile_docs",
		Description: "Search the owner's document library (resume, notes, project writeups) for information relevant to the query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query describing what information is needed",
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query, ok := args["query"].(string)
			if !ok || query == "" {
				return nil, fmt.Errorf("search_profile_docs: query argument is required")
			}

			snippets := index.Search(query, 3)
			results := make([]map[string]any, 0, len(snippets))
			for _, s := range snippets {
				results = append(results, map[string]any{
					"filename": s.Filename,
					"content":  s.Text,
				})
			}

			return map[string]any{"results": results}, nil
		},
	}
}
