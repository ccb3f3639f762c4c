// Package resolve computes each scope's inherited context and reduces it to
// one fact per target framework.
package resolve

import (
	"context"
	"fmt"
	"math/bits"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dejo1307/gradlefacts/internal/catalog"
	"github.com/dejo1307/gradlefacts/internal/declare"
	"github.com/dejo1307/gradlefacts/internal/facts"
	"github.com/dejo1307/gradlefacts/internal/project"
)

// indirection is a set of the ways a fact's conclusion was reached other
// than a local declarative literal. Each member costs one confidence level.
type indirection uint8

const (
	viaConvention indirection = 1 << iota
	viaInheritance
	viaCatalog
	viaIndirect
	viaFault
)

func (i indirection) count() int { return bits.OnesCount8(uint8(i)) }

// Resolver produces facts from a scope tree. It never mutates the tree.
type Resolver struct {
	tree       *project.Tree
	catalogs   *catalog.Resolver
	frameworks []Framework
	workers    int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFrameworks replaces the default Spring Boot framework table.
func WithFrameworks(fw ...Framework) Option {
	return func(r *Resolver) {
		if len(fw) > 0 {
			r.frameworks = fw
		}
	}
}

// WithWorkers bounds how many scopes of one level resolve concurrently.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// New creates a resolver. A nil catalog resolver means no catalogs.
func New(tree *project.Tree, catalogs *catalog.Resolver, opts ...Option) *Resolver {
	if catalogs == nil {
		catalogs = catalog.NewResolver()
	}
	r := &Resolver{
		tree:       tree,
		catalogs:   catalogs,
		frameworks: []Framework{SpringBoot},
		workers:    4,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Frameworks returns the configured framework tables.
func (r *Resolver) Frameworks() []Framework { return r.frameworks }

// Resolve returns one fact per scope and framework, scopes in tree order.
// Levels are processed root first; scopes within a level run concurrently.
// The only error is ctx's.
func (r *Resolver) Resolve(ctx context.Context) ([]facts.Fact, error) {
	n := len(r.frameworks)
	out := make([]facts.Fact, len(r.tree.Scopes)*n)
	for _, level := range r.tree.Levels() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for _, i := range level {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				for k, fw := range r.frameworks {
					out[i*n+k] = r.ResolveScope(i, fw)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ResolveScope resolves one scope against one framework.
func (r *Resolver) ResolveScope(i int, fw Framework) facts.Fact {
	c := r.context(i)
	s := &r.tree.Scopes[i]
	f := facts.Fact{
		ScopeID:   s.ID,
		Framework: fw.ID,
		Version:   facts.Unknown(),
		Notes:     append([]facts.Note(nil), c.notes...),
	}

	var cost indirection
	if c.faulted {
		cost |= viaFault
	}

	matches := r.matches(c.entries, fw)
	managed := r.dependencyManaged(c, fw)
	f.Dependencies, f.Evidence = r.dependencies(c, fw, managed)
	f.Toolchain = toolchain(c.entries)

	if len(matches) == 0 {
		f.Confidence = facts.Medium.Downgrade(cost.count())
		return f
	}

	f.Present = true
	primary := matches[0]
	cost |= primary.cost()

	version, vcost, sources, forcedLow := r.version(c, primary, fw)
	cost |= vcost

	trail := append([]entry(nil), matches...)
	for _, src := range sources {
		dup := false
		for _, m := range trail {
			if m.same(src) {
				dup = true
				break
			}
		}
		if !dup {
			trail = append(trail, src)
		}
	}
	evidence := make([]facts.Contribution, 0, len(trail)+len(f.Evidence))
	for _, e := range trail {
		evidence = append(evidence, e.contribution())
	}
	f.Version = version
	f.Evidence = append(evidence, f.Evidence...)

	conf := facts.High.Downgrade(cost.count())
	if !version.IsLiteral() {
		conf = conf.AtMost(facts.Medium)
	}
	if forcedLow {
		conf = facts.Low
	}
	f.Confidence = conf
	return f
}

// matches returns the framework plugin applications in c, best first:
// closer scopes before farther ones, declarative before programmatic.
func (r *Resolver) matches(entries []entry, fw Framework) []entry {
	var out []entry
	for _, e := range entries {
		if r.isMatch(e.decl, fw) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].distance != out[b].distance {
			return out[a].distance < out[b].distance
		}
		return !out[a].programmatic() && out[b].programmatic()
	})
	return out
}

func (r *Resolver) isMatch(d declare.Declaration, fw Framework) bool {
	if !d.Applied {
		return false
	}
	switch d.Kind {
	case declare.Plugin, declare.Programmatic:
		if fw.isPluginID(d.PluginID) {
			return true
		}
		if d.PluginID == "" && contains(fw.PluginClasses, d.Class) {
			_, isConvention := r.tree.ConventionFor(d)
			return !isConvention
		}
	case declare.CatalogAlias:
		return d.PluginAlias && d.Binding == nil && fw.hinted(d.Alias, true)
	}
	return false
}

// version applies the precedence: literal on the match, catalog reference
// on the match, property reference on the match, closest version source,
// companion plugin, unknown.
func (r *Resolver) version(c scopeContext, primary entry, fw Framework) (facts.ResolvedVersion, indirection, []entry, bool) {
	d := primary.decl
	switch {
	case d.Kind == declare.CatalogAlias:
		return r.catalogs.Resolve(d.Catalog, d.Alias, c.chain), viaCatalog, nil, true
	case d.Version.Kind == declare.LiteralVersion:
		return facts.Literal(d.Version.Value), 0, nil, false
	case d.Version.Kind == declare.CatalogVersion:
		if d.Binding != nil && d.Binding.Version != "" {
			return facts.Literal(d.Binding.Version), viaCatalog, nil, false
		}
		alias := d.Alias
		if alias == "" {
			alias = d.Version.Value
		}
		v := r.catalogs.Resolve(d.Catalog, alias, c.chain)
		return v, viaCatalog, nil, !v.IsLiteral()
	case d.Version.Kind == declare.PropertyVersion:
		if v, prop, ok := c.property(d.Version.Value); ok {
			cost := viaIndirect
			if prop.distance > 0 {
				cost |= viaInheritance
			}
			return facts.Literal(v), cost, []entry{prop}, false
		}
	}

	if v, cost, src, ok := r.versionSource(c, primary, fw.PluginIDs, fw.VersionArtifacts); ok {
		return facts.Literal(v), cost, src, false
	}

	if comp, ok := r.pinnedCompanion(c, fw); ok {
		return facts.ManagedByCompanionPlugin(), viaIndirect, comp, false
	}
	return facts.Unknown(), 0, nil, false
}

// versionSource finds the closest declaration that pins one of ids or
// artifacts: the scope itself first, then its ancestors.
func (r *Resolver) versionSource(c scopeContext, primary entry, ids, artifacts []string) (string, indirection, []entry, bool) {
	for _, level := range c.sources {
		for _, e := range level {
			d := e.decl
			var sameID bool
			switch d.Kind {
			case declare.Plugin, declare.Programmatic:
				if !contains(ids, d.PluginID) {
					continue
				}
				sameID = true
			case declare.Dependency:
				if !contains(artifacts, d.Coordinate()) {
					continue
				}
			case declare.CatalogAlias:
				if d.Binding == nil || !(contains(ids, d.Binding.PluginID) || contains(artifacts, d.Coordinate())) {
					continue
				}
			default:
				continue
			}
			v, cost, prop, ok := c.pin(e)
			if !ok {
				continue
			}
			if e.distance > 0 {
				cost |= viaInheritance
			}
			if e.via != "" {
				cost |= viaConvention
			}
			if !e.build && (!sameID || (e.distance == 0 && e.decl.File != primary.decl.File)) {
				cost |= viaIndirect
			}
			src := []entry{e}
			if prop != nil {
				src = append(src, *prop)
			}
			return v, cost, src, true
		}
	}
	return "", 0, nil, false
}

// pinnedCompanion returns the companion application and its version source
// when a companion plugin is applied and its own version is known.
func (r *Resolver) pinnedCompanion(c scopeContext, fw Framework) ([]entry, bool) {
	for _, e := range c.entries {
		d := e.decl
		if !d.Applied || (d.Kind != declare.Plugin && d.Kind != declare.Programmatic) || !fw.isCompanion(d.PluginID) {
			continue
		}
		if _, _, prop, ok := c.pin(e); ok {
			out := []entry{e}
			if prop != nil {
				out = append(out, *prop)
			}
			return out, true
		}
		if _, _, src, ok := r.versionSource(c, e, fw.CompanionIDs, nil); ok {
			return append([]entry{e}, src...), true
		}
	}
	return nil, false
}

// dependencyManaged reports whether version-less framework dependencies
// get their version from a companion plugin or an imported BOM.
func (r *Resolver) dependencyManaged(c scopeContext, fw Framework) bool {
	for _, e := range c.entries {
		d := e.decl
		switch d.Kind {
		case declare.Plugin, declare.Programmatic:
			if d.Applied && fw.isCompanion(d.PluginID) {
				return true
			}
		case declare.Dependency, declare.CatalogAlias:
			if d.Platform && (fw.isVersionArtifact(d.Coordinate()) || fw.isDependencyGroup(d.Group)) {
				return true
			}
		}
	}
	return false
}

func (r *Resolver) dependencies(c scopeContext, fw Framework, managed bool) ([]facts.DependencyFact, []facts.Contribution) {
	var deps []facts.DependencyFact
	var evidence []facts.Contribution
	for _, e := range c.entries {
		d := e.decl
		if e.build || d.Configuration == "classpath" {
			continue
		}
		var v facts.ResolvedVersion
		switch d.Kind {
		case declare.Dependency:
			if !fw.isDependencyGroup(d.Group) {
				continue
			}
			v = c.dependencyVersion(e, managed)
		case declare.CatalogAlias:
			if d.PluginAlias {
				continue
			}
			if d.Binding != nil {
				if !fw.isDependencyGroup(d.Binding.Group) {
					continue
				}
			} else if !fw.hinted(d.Alias, false) {
				continue
			}
			v = c.dependencyVersion(e, managed)
		default:
			continue
		}
		coord := d.Coordinate()
		if coord == "" {
			coord = d.Catalog + "." + d.Alias
		}
		deps = append(deps, facts.DependencyFact{
			Coordinate:    coord,
			Configuration: d.Configuration,
			Version:       v,
			Origin:        e.origin,
		})
		evidence = append(evidence, e.contribution())
	}
	return deps, evidence
}

func toolchain(entries []entry) string {
	best := -1
	for i, e := range entries {
		if e.decl.Kind != declare.Toolchain {
			continue
		}
		if best < 0 || e.distance < entries[best].distance {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return entries[best].decl.LanguageVersion
}

// Context returns the inherited context of scope i as contributions, in
// the order they apply: ancestors root first, project() injections, the
// scope's own declarations, with applied conventions expanded in place.
func (r *Resolver) Context(i int) []facts.Contribution {
	c := r.context(i)
	out := make([]facts.Contribution, len(c.entries))
	for k, e := range c.entries {
		out[k] = e.contribution()
	}
	return out
}

// Explain describes how ResolveScope reached its conclusion.
func (r *Resolver) Explain(i int, fw Framework) string {
	f := r.ResolveScope(i, fw)
	return fmt.Sprintf("%s %s: present=%t version=%s confidence=%s (%d evidence, %d context declarations)",
		f.ScopeID, f.Framework, f.Present, describe(f.Version), f.Confidence, len(f.Evidence), len(r.context(i).entries))
}

func describe(v facts.ResolvedVersion) string {
	if v.Value == "" {
		return string(v.Kind)
	}
	return string(v.Kind) + "(" + v.Value + ")"
}
