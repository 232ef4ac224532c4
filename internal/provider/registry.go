package provider

import (
	"sort"
	"strings"

	"github.com/promptwell/promptwell/internal/settings"
)

// factory builds an adapter from its current configuration.
type factory func(settings.ProviderConfig) Adapter

// Registry resolves provider IDs to adapters. The variant set is fixed at
// construction; activation state and credentials are read from the settings
// snapshot at resolve time so configuration changes apply without restart.
type Registry struct {
	factories map[string]factory
}

// Info describes an active provider for listing endpoints.
type Info struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Models map[string]ModelInfo `json:"models"`
}

// NewRegistry constructs the registry with the four known providers.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]factory{
			OpenAI:     newOpenAI,
			Claude:     newClaude,
			Gemini:     newGemini,
			Perplexity: newPerplexity,
		},
	}
}

// Resolve returns the adapter for a provider ID. Unknown and inactive
// providers fail with ErrProviderNotFound; an active provider without an
// API key fails with ErrProviderNotConfigured. There is deliberately no
// fallback to a default provider, a wrong-provider substitution would
// corrupt billing and audit records.
func (r *Registry) Resolve(providerID string) (Adapter, error) {
	id := strings.ToLower(strings.TrimSpace(providerID))
	build, ok := r.factories[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	cfg, ok := settings.ProviderConfigFor(id)
	if !ok || !cfg.Active {
		return nil, ErrProviderNotFound
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrProviderNotConfigured
	}
	return build(cfg), nil
}

// Active lists the providers currently marked active, sorted by ID.
func (r *Registry) Active() []Info {
	infos := make([]Info, 0, len(r.factories))
	for id, build := range r.factories {
		cfg, ok := settings.ProviderConfigFor(id)
		if !ok || !cfg.Active {
			continue
		}
		adapter := build(cfg)
		name := cfg.DisplayName
		if name == "" {
			name = id
		}
		infos = append(infos, Info{ID: id, Name: name, Models: adapter.Models()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
