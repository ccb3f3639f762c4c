package gaps

import (
	"context"
	"fmt"
	"sort"

	"github.com/dejo1307/gradlefacts/internal/facts"
)

// GapExplainer reports what kept facts from being certain: catalog
// aliases without a catalog, frameworks applied with no version anywhere,
// and build files that could not be read.
type GapExplainer struct{}

// New creates a new GapExplainer.
func New() *GapExplainer {
	return &GapExplainer{}
}

func (e *GapExplainer) Name() string {
	return "gaps"
}

func (e *GapExplainer) Explain(ctx context.Context, store *facts.Store) ([]facts.Insight, error) {
	var (
		unresolved = make(map[string][]facts.Evidence) // alias -> scopes
		unknown    []facts.Evidence
		notes      []facts.Evidence
		seenNotes  = make(map[string]bool)
	)
	for _, r := range store.All() {
		if r.Present {
			switch r.Version.Kind {
			case facts.VersionCatalogUnresolved:
				unresolved[r.Version.Value] = append(unresolved[r.Version.Value], facts.Evidence{
					Scope:  r.Scope,
					Detail: r.Framework,
				})
			case facts.VersionUnknown:
				unknown = append(unknown, facts.Evidence{Scope: r.Scope, Detail: r.Framework})
			}
		}
		for _, ev := range r.Evidence {
			if ev.Kind != facts.EvidenceNote || seenNotes[ev.Scope+ev.Detail] {
				continue
			}
			seenNotes[ev.Scope+ev.Detail] = true
			scope := ev.Scope
			if scope == "" {
				scope = r.Scope
			}
			notes = append(notes, facts.Evidence{Scope: scope, Detail: ev.Detail})
		}
	}

	var insights []facts.Insight

	aliases := make([]string, 0, len(unresolved))
	for a := range unresolved {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, a := range aliases {
		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("Unresolved catalog alias: %s", a),
			Description: fmt.Sprintf("%d scope(s) take the framework version from %s, but no version catalog defines it.", len(unresolved[a]), a),
			Confidence:  0.9,
			Evidence:    unresolved[a],
			Actions: []string{
				"Check that gradle/libs.versions.toml is part of the scanned tree",
			},
		})
	}

	if len(unknown) > 0 {
		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("Framework applied without a version (%d scopes)", len(unknown)),
			Description: "The framework plugin is applied but no declaration in the scope or its ancestors states a version.",
			Confidence:  0.7,
			Evidence:    unknown,
		})
	}

	if len(notes) > 0 {
		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("Unreadable build configuration (%d notes)", len(notes)),
			Description: "Some build files could not be parsed; facts of the affected scopes are downgraded.",
			Confidence:  1.0,
			Evidence:    notes,
			Actions: []string{
				"Fix the reported syntax errors or exclude the files via ignore patterns",
			},
		})
	}
	return insights, nil
}
