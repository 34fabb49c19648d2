package tools

import (
	"context"
	"fmt"

	"github.com/srmx/assistant/internal/repository"
)

// NewProfileTool returns the synchronous tool that looks up the owner's
// profile in the document store. It takes no parameters.
func NewProfileTool(profiles repository.ProfileRepository, ownerName string) *Tool {
	return &Tool{
		Name:        "query_profile_info",
		Description: "Query the owner's profile information. Requires no input parameters.",
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
		Strict: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			profile, err := profiles.Get(ctx, ownerName)
			if err != nil {
				return nil, fmt.Errorf("query_profile_info: %w", err)
			}
			if profile == nil {
				return map[string]any{"error": "profile not found"}, nil
			}
			return profile, nil
		},
	}
}
