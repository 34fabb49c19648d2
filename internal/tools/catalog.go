package tools

import (
	"time"

	"github.com/srmx/assistant/internal/bridge"
	"github.com/srmx/assistant/internal/docs"
	"github.com/srmx/assistant/internal/repository"
)

// CatalogDeps are the collaborators the shipped tool set needs.
type CatalogDeps struct {
	Profiles      repository.ProfileRepository
	Meetings      repository.MeetingRepository
	Docs          *docs.Index
	Bridge        bridge.Client
	OwnerName     string
	BridgeTimeout time.Duration
}

// Catalog builds the registry with the full shipped tool set. The server and
// the dispatch worker register the same catalog so any tool can execute in
// either process.
func Catalog(deps CatalogDeps) (*Registry, error) {
	registry := NewRegistry()

	for _, t := range []*Tool{
		NewProfileTool(deps.Profiles, deps.OwnerName),
		NewDocsSearchTool(deps.Docs),
		NewMessageOwnerTool(deps.Bridge, deps.OwnerName, deps.BridgeTimeout),
		NewScheduleMeetingTool(deps.Meetings, deps.Bridge, deps.OwnerName, deps.BridgeTimeout),
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
