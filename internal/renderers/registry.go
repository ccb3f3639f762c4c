// Package renderers turns a scan snapshot into output artifacts written
// under the configured output directory (facts.jsonl, report.md).
package renderers

import (
	"context"

	"github.com/dejo1307/gradlefacts/internal/facts"
)

// Renderer produces artifacts from a snapshot's records and insights.
type Renderer interface {
	// Name returns the identifier used in gradlefacts.yaml (e.g. "jsonl", "report").
	Name() string
	Render(ctx context.Context, snapshot *facts.Snapshot) ([]facts.Artifact, error)
}

// Registry holds renderers in registration order. Names are unique.
type Registry struct {
	renderers []Renderer
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds rnd, replacing a renderer already registered under the same name.
func (r *Registry) Register(rnd Renderer) {
	for i, old := range r.renderers {
		if old.Name() == rnd.Name() {
			r.renderers[i] = rnd
			return
		}
	}
	r.renderers = append(r.renderers, rnd)
}

// Get returns the renderer with the given name, or nil if not found.
func (r *Registry) Get(name string) Renderer {
	for _, rnd := range r.renderers {
		if rnd.Name() == name {
			return rnd
		}
	}
	return nil
}

func (r *Registry) All() []Renderer {
	return r.renderers
}

// Enabled returns the renderers whose names the config toggle accepts.
func (r *Registry) Enabled(allow func(name string) bool) []Renderer {
	var out []Renderer
	for _, rnd := range r.renderers {
		if allow == nil || allow(rnd.Name()) {
			out = append(out, rnd)
		}
	}
	return out
}
