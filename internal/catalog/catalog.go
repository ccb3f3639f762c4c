// Package catalog resolves version-catalog alias references against the
// catalog tables available to a scope.
package catalog

import (
	"path"
	"strings"

	"github.com/dejo1307/gradlefacts/internal/declare"
	"github.com/dejo1307/gradlefacts/internal/facts"
)

// DefaultName is the accessor Gradle generates for gradle/libs.versions.toml.
const DefaultName = "libs"

// Entry is one catalog row. Library rows carry Group and Artifact, plugin
// rows carry PluginID, version rows only Version.
type Entry struct {
	Group    string
	Artifact string
	Version  string
	PluginID string
}

// Coordinate returns "group:artifact" for library rows.
func (e Entry) Coordinate() string {
	if e.Group == "" {
		return ""
	}
	return e.Group + ":" + e.Artifact
}

// Table is one parsed catalog. Entries are keyed by normalized alias path
// as written after the accessor: libraries at their bare path
// ("spring.boot.starter.web"), versions under "versions." and plugins under
// "plugins.".
type Table struct {
	Name    string
	Scope   string
	Source  string
	Entries map[string]Entry
}

// NameFromFile derives the accessor name from a catalog file name:
// "libs.versions.toml" -> "libs".
func NameFromFile(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if i := strings.Index(base, ".versions.toml"); i > 0 {
		return base[:i]
	}
	return DefaultName
}

// Resolver looks aliases up in a fixed set of tables. It is safe for
// concurrent use once constructed.
type Resolver struct {
	byScope map[string][]Table
}

// NewResolver indexes tables by the scope that declared them. Tables with
// no scope belong to the root.
func NewResolver(tables ...Table) *Resolver {
	r := &Resolver{byScope: make(map[string][]Table)}
	for _, t := range tables {
		if t.Scope == "" {
			t.Scope = ":"
		}
		if t.Name == "" {
			t.Name = DefaultName
		}
		r.byScope[t.Scope] = append(r.byScope[t.Scope], t)
	}
	return r
}

// Len returns the number of tables.
func (r *Resolver) Len() int {
	n := 0
	for _, tt := range r.byScope {
		n += len(tt)
	}
	return n
}

// Lookup searches the tables visible along chain, closest scope first.
// An empty catalog name matches any accessor.
func (r *Resolver) Lookup(catalog, alias string, chain []string) (Entry, bool) {
	alias = declare.NormalizeAlias(alias)
	for _, scope := range chain {
		for _, t := range r.byScope[scope] {
			if catalog != "" && t.Name != catalog {
				continue
			}
			if e, ok := t.Entries[alias]; ok {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// Resolve returns Literal(version) when a visible table has the alias with
// a version and UnresolvedCatalogAlias otherwise.
func (r *Resolver) Resolve(catalog, alias string, chain []string) facts.ResolvedVersion {
	if e, ok := r.Lookup(catalog, alias, chain); ok && e.Version != "" {
		return facts.Literal(e.Version)
	}
	if catalog == "" {
		catalog = DefaultName
	}
	return facts.UnresolvedCatalogAlias(catalog + "." + alias)
}

// Bind returns a copy of decls with catalog bindings attached. Plugin
// aliases that resolve to a plugin id become Plugin declarations whose
// version is the catalog reference; library aliases gain their group and
// artifact but keep the CatalogAlias kind. Unresolved aliases are left
// without a binding.
func (r *Resolver) Bind(decls []declare.Declaration, chain []string) []declare.Declaration {
	out := make([]declare.Declaration, len(decls))
	for i, d := range decls {
		switch {
		case d.Kind == declare.CatalogAlias:
			e, ok := r.Lookup(d.Catalog, d.Alias, chain)
			if !ok {
				break
			}
			d.Binding = &declare.Binding{Found: true, Group: e.Group, Artifact: e.Artifact, PluginID: e.PluginID, Version: e.Version}
			if d.PluginAlias && e.PluginID != "" {
				d.Kind = declare.Plugin
				d.PluginID = e.PluginID
				d.Version = declare.VersionRef{Kind: declare.CatalogVersion, Value: d.Alias}
			} else if !d.PluginAlias {
				d.Group = e.Group
				d.Artifact = e.Artifact
				if d.Version.Kind == declare.NoVersion {
					d.Version = declare.VersionRef{Kind: declare.CatalogVersion, Value: d.Alias}
				}
			}
		case d.Version.Kind == declare.CatalogVersion:
			e, ok := r.Lookup("", d.Version.Value, chain)
			if ok {
				d.Binding = &declare.Binding{Found: true, Version: e.Version}
			}
		}
		out[i] = d
	}
	return out
}
