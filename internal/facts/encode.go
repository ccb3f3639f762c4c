package facts

import (
	"github.com/dejo1307/gradlefacts/internal/declare"
)

// Encode maps a Fact to its external Record. It is total: every Fact has a
// Record and no information beyond the fact itself is consulted.
func Encode(f Fact) Record {
	r := Record{
		Scope:      f.ScopeID,
		Framework:  f.Framework,
		Present:    f.Present,
		Version:    f.Version,
		Confidence: f.Confidence.String(),
		Evidence:   make([]RecordEvidence, 0, len(f.Evidence)+len(f.Notes)),
		Toolchain:  f.Toolchain,
	}
	if r.Version.Kind == "" {
		r.Version = Unknown()
	}
	for _, c := range f.Evidence {
		detail := c.Decl.Raw
		if detail == "" {
			detail = c.Decl.Summary()
		}
		if c.Decl.Kind == declare.Property {
			detail = "property " + detail
		}
		if c.Via != "" {
			detail += " (via " + c.Via + ")"
		}
		r.Evidence = append(r.Evidence, RecordEvidence{
			Scope:  c.Origin,
			Kind:   evidenceKind(c.Decl),
			Detail: detail,
		})
	}
	for _, n := range f.Notes {
		scope := n.Scope
		if scope == "" {
			scope = f.ScopeID
		}
		r.Evidence = append(r.Evidence, RecordEvidence{Scope: scope, Kind: EvidenceNote, Detail: n.Text})
	}
	for _, d := range f.Dependencies {
		r.Dependencies = append(r.Dependencies, RecordDependency{
			Coordinate:    d.Coordinate,
			Configuration: d.Configuration,
			Version:       d.Version,
		})
	}
	return r
}

// EncodeAll encodes facts in order.
func EncodeAll(ff []Fact) []Record {
	out := make([]Record, len(ff))
	for i, f := range ff {
		out[i] = Encode(f)
	}
	return out
}

// evidenceKind maps a declaration to one of the record evidence kinds.
// Property version sources pin the plugin version and are reported as
// plugin evidence.
func evidenceKind(d declare.Declaration) string {
	switch d.Kind {
	case declare.Programmatic:
		return EvidenceProgrammatic
	case declare.Dependency:
		return EvidenceDependency
	case declare.CatalogAlias:
		if d.PluginAlias {
			return EvidencePlugin
		}
		return EvidenceDependency
	default:
		return EvidencePlugin
	}
}
