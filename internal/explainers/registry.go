// Package explainers holds the checks that run over the resolved record
// store after a scan and report cross-scope findings such as version drift.
package explainers

import (
	"context"

	"github.com/dejo1307/gradlefacts/internal/facts"
)

// Explainer reads the records of one scan, one per scope and framework,
// and reports findings that no single record shows.
type Explainer interface {
	// Name returns the identifier used in gradlefacts.yaml (e.g. "drift", "gaps").
	Name() string
	// Explain must not modify the store; it is shared with the MCP server.
	Explain(ctx context.Context, store *facts.Store) ([]facts.Insight, error)
}

// Registry holds explainers in registration order. Names are unique.
type Registry struct {
	explainers []Explainer
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds e, replacing an explainer already registered under the same name.
func (r *Registry) Register(e Explainer) {
	for i, old := range r.explainers {
		if old.Name() == e.Name() {
			r.explainers[i] = e
			return
		}
	}
	r.explainers = append(r.explainers, e)
}

// Get returns the explainer with the given name, or nil if not found.
func (r *Registry) Get(name string) Explainer {
	for _, e := range r.explainers {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

func (r *Registry) All() []Explainer {
	return r.explainers
}

// Enabled returns the explainers whose names the config toggle accepts.
func (r *Registry) Enabled(allow func(name string) bool) []Explainer {
	var out []Explainer
	for _, e := range r.explainers {
		if allow == nil || allow(e.Name()) {
			out = append(out, e)
		}
	}
	return out
}
