package extractors

import (
	"context"

	"github.com/dejo1307/gradlefacts/internal/project"
)

// Source is one discovered input file, read eagerly.
type Source struct {
	Path       string
	ModulePath string
	Role       project.Role
	// ConventionRoot is the convention build directory for convention roles.
	ConventionRoot string
	Text           string
}

// Extractor turns sources of the roles it handles into interpreted files.
type Extractor interface {
	// Name returns the extractor identifier (e.g. "gradle", "convention").
	Name() string
	// Detect returns true if this extractor handles the source.
	Detect(src Source) bool
	// Extract interprets one source. Recoverable faults are recorded on the
	// returned file; the error is reserved for cancellation.
	Extract(ctx context.Context, src Source) (project.File, error)
}

// Registry holds registered extractors.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a new extractor registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an extractor to the registry.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Get returns the extractor with the given name, or nil if not found.
func (r *Registry) Get(name string) Extractor {
	for _, e := range r.extractors {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

// All returns all registered extractors.
func (r *Registry) All() []Extractor {
	return r.extractors
}

// For returns the first extractor that handles src, or nil.
func (r *Registry) For(src Source) Extractor {
	for _, e := range r.extractors {
		if e.Detect(src) {
			return e
		}
	}
	return nil
}
