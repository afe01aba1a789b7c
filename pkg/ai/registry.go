package ai

import "fmt"

// Registry resolves a Scorer by provider kind.
type Registry struct {
	scorers map[ProviderKind]Scorer
}

// NewRegistry indexes the scorers by the provider they serve.
func NewRegistry(scorers ...Scorer) *Registry {
	registry := &Registry{scorers: make(map[ProviderKind]Scorer, len(scorers))}
	for _, scorer := range scorers {
		if scorer == nil {
			continue
		}
		registry.scorers[scorer.Provider()] = scorer
	}
	return registry
}

// Lookup returns the scorer registered for kind.
func (r *Registry) Lookup(kind ProviderKind) (Scorer, error) {
	if r == nil {
		return nil, fmt.Errorf("no scorer registered for %s", kind)
	}
	scorer, ok := r.scorers[kind]
	if !ok {
		return nil, fmt.Errorf("no scorer registered for %s", kind)
	}
	return scorer, nil
}
