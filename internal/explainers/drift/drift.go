package drift

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dejo1307/gradlefacts/internal/facts"
)

// DriftExplainer reports frameworks resolved to more than one literal
// version across the scopes of a build.
type DriftExplainer struct{}

// New creates a new DriftExplainer.
func New() *DriftExplainer {
	return &DriftExplainer{}
}

func (e *DriftExplainer) Name() string {
	return "drift"
}

// Explain groups present records by framework and version.
func (e *DriftExplainer) Explain(ctx context.Context, store *facts.Store) ([]facts.Insight, error) {
	byFramework := make(map[string]map[string][]string) // framework -> version -> scopes
	for _, r := range store.All() {
		if !r.Present || r.Version.Kind != facts.VersionLiteral {
			continue
		}
		versions := byFramework[r.Framework]
		if versions == nil {
			versions = make(map[string][]string)
			byFramework[r.Framework] = versions
		}
		versions[r.Version.Value] = append(versions[r.Version.Value], r.Scope)
	}

	frameworks := make([]string, 0, len(byFramework))
	for fw := range byFramework {
		frameworks = append(frameworks, fw)
	}
	sort.Strings(frameworks)

	var insights []facts.Insight
	for _, fw := range frameworks {
		versions := byFramework[fw]
		if len(versions) < 2 {
			continue
		}
		keys := make([]string, 0, len(versions))
		for v := range versions {
			keys = append(keys, v)
		}
		sort.Strings(keys)

		var evidence []facts.Evidence
		for _, v := range keys {
			for _, scope := range versions[v] {
				evidence = append(evidence, facts.Evidence{
					Scope:  scope,
					Detail: fmt.Sprintf("%s %s", fw, v),
				})
			}
		}
		insights = append(insights, facts.Insight{
			Title:       fmt.Sprintf("Version drift: %s (%d versions)", fw, len(keys)),
			Description: fmt.Sprintf("Scopes of this build resolve %s to different versions: %s.", fw, strings.Join(keys, ", ")),
			Confidence:  1.0,
			Evidence:    evidence,
			Actions: []string{
				"Pin the version once in a version catalog",
				"Apply the framework through a shared convention plugin",
			},
		})
	}
	return insights, nil
}
