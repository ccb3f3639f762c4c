package resolve

import (
	"fmt"

	"github.com/dejo1307/gradlefacts/internal/catalog"
	"github.com/dejo1307/gradlefacts/internal/declare"
	"github.com/dejo1307/gradlefacts/internal/facts"
	"github.com/dejo1307/gradlefacts/internal/project"
)

// entry is one declaration in a scope's inherited context.
type entry struct {
	decl   declare.Declaration
	origin string
	// distance is the number of levels between the scope and the scope
	// the declaration came from.
	distance int
	// via names the convention plugin the declaration was expanded from.
	via string
	// build marks declarations of a convention build script.
	build bool
}

func (e entry) programmatic() bool {
	return e.via != "" || e.decl.Kind == declare.Programmatic
}

func (e entry) cost() indirection {
	var c indirection
	if e.programmatic() {
		c |= viaConvention
	}
	if e.distance > 0 {
		c |= viaInheritance
	}
	return c
}

func (e entry) contribution() facts.Contribution {
	return facts.Contribution{Decl: e.decl, Origin: e.origin, Via: e.via}
}

func (e entry) same(o entry) bool {
	return e.origin == o.origin && e.via == o.via && e.decl.File == o.decl.File &&
		e.decl.Line == o.decl.Line && e.decl.Raw == o.decl.Raw && e.decl.Kind == o.decl.Kind
}

// scopeContext is the derived, never stored, view of one scope.
type scopeContext struct {
	entries []entry
	// sources holds every declaration that may pin a version, grouped by
	// distance: the scope itself first, then each ancestor.
	sources [][]entry
	chain   []string
	notes   []facts.Note
	faulted bool
}

func (r *Resolver) context(i int) scopeContext {
	t := r.tree
	s := &t.Scopes[i]
	anc := t.Ancestors(i)
	c := scopeContext{sources: make([][]entry, len(anc)+1), chain: t.Chain(i)}
	x := expander{tree: t, ctx: &c, stack: make(map[string]bool), seenNotes: make(map[string]bool)}

	for k := len(anc) - 1; k >= 0; k-- {
		a := &t.Scopes[anc[k]]
		for _, at := range a.Declarations {
			if at.AppliesToDescendants {
				x.attached(at, k+1)
			}
		}
	}
	for _, at := range t.Injections(s.ID) {
		dist := 0
		if at.Origin != s.ID {
			dist = 1
			if o, ok := t.Lookup(at.Origin); ok && s.Depth-o.Depth > 1 {
				dist = s.Depth - o.Depth
			}
		}
		x.attached(at, dist)
	}
	for _, at := range s.Declarations {
		if !at.ExcludesRoot {
			x.attached(at, 0)
		}
	}

	// Version sources: every declaration of each scope on the chain, in
	// source order, followed by what conventions contributed at that level.
	chain := append([]int{i}, anc...)
	for k, si := range chain {
		for _, at := range t.Scopes[si].Declarations {
			if at.Convention != "" {
				continue
			}
			c.sources[k] = append(c.sources[k], entry{decl: at.Decl, origin: at.Origin, distance: k})
		}
		if k == 0 {
			for _, at := range t.Injections(s.ID) {
				c.sources[0] = append(c.sources[0], entry{decl: at.Decl, origin: at.Origin})
			}
		}
	}
	for _, e := range c.entries {
		if e.via != "" && e.distance < len(c.sources) {
			c.sources[e.distance] = append(c.sources[e.distance], e)
		}
	}

	for _, n := range s.Notes {
		x.note(s.ID, n)
	}
	if s.Faulted {
		c.faulted = true
	}
	for _, a := range anc {
		if t.Scopes[a].Faulted {
			c.faulted = true
			x.note(t.Scopes[a].ID, fmt.Sprintf("ancestor %s has unparseable build files", t.Scopes[a].ID))
		}
	}
	return c
}

type expander struct {
	tree      *project.Tree
	ctx       *scopeContext
	stack     map[string]bool
	seenNotes map[string]bool
}

func (x *expander) note(scope, text string) {
	key := scope + "\x00" + text
	if x.seenNotes[key] {
		return
	}
	x.seenNotes[key] = true
	x.ctx.notes = append(x.ctx.notes, facts.Note{Scope: scope, Text: text})
}

func (x *expander) attached(at project.Attached, dist int) {
	if at.Convention != "" {
		if cp, ok := x.tree.ConventionByFile(at.Convention); ok {
			x.convention(cp, at.Origin, dist)
		}
		return
	}
	x.add(entry{decl: at.Decl, origin: at.Origin, distance: dist})
}

func (x *expander) add(e entry) {
	x.ctx.entries = append(x.ctx.entries, e)
	d := e.decl
	if !d.Applied || (d.Kind != declare.Plugin && d.Kind != declare.Programmatic) {
		return
	}
	if cp, ok := x.tree.ConventionFor(d); ok {
		x.convention(cp, e.origin, e.distance)
	}
}

// convention expands an applied convention plugin in place. Conventions
// that apply each other are expanded once per path.
func (x *expander) convention(cp *project.ConventionPlugin, origin string, dist int) {
	key := cp.File + "#" + cp.Class
	if x.stack[key] {
		return
	}
	x.stack[key] = true
	defer delete(x.stack, key)

	for _, n := range cp.Notes {
		x.note(origin, n)
	}
	if cp.Faulted {
		x.ctx.faulted = true
	}
	for _, d := range cp.Decls {
		x.add(entry{decl: d, origin: origin, distance: dist, via: cp.Name()})
	}
	for _, d := range cp.BuildDecls {
		x.ctx.entries = append(x.ctx.entries, entry{decl: d, origin: origin, distance: dist, via: cp.Name(), build: true})
	}
}

// property finds the closest definition of name; within one level the
// last assignment wins.
func (c scopeContext) property(name string) (string, entry, bool) {
	for _, level := range c.sources {
		var found *entry
		for k := range level {
			d := level[k].decl
			if d.Kind == declare.Property && d.Name == name {
				found = &level[k]
			}
		}
		if found != nil {
			return found.decl.Value, *found, true
		}
	}
	return "", entry{}, false
}

// pin returns the concrete version a declaration states, following
// catalog bindings and property references.
func (c scopeContext) pin(e entry) (string, indirection, *entry, bool) {
	d := e.decl
	switch d.Version.Kind {
	case declare.LiteralVersion:
		return d.Version.Value, 0, nil, true
	case declare.CatalogVersion:
		if d.Binding != nil && d.Binding.Version != "" {
			return d.Binding.Version, viaCatalog, nil, true
		}
	case declare.PropertyVersion:
		if v, prop, ok := c.property(d.Version.Value); ok {
			return v, viaIndirect, &prop, true
		}
	case declare.NoVersion:
		if d.Kind == declare.CatalogAlias && d.Binding != nil && d.Binding.Version != "" {
			return d.Binding.Version, viaCatalog, nil, true
		}
	}
	return "", 0, nil, false
}

// dependencyVersion resolves a framework dependency's own version.
func (c scopeContext) dependencyVersion(e entry, managed bool) facts.ResolvedVersion {
	d := e.decl
	if d.Kind == declare.CatalogAlias {
		switch {
		case d.Binding == nil:
			return facts.UnresolvedCatalogAlias(d.Catalog + "." + d.Alias)
		case d.Binding.Version != "":
			return facts.Literal(d.Binding.Version)
		case managed:
			return facts.ManagedByCompanionPlugin()
		default:
			return facts.UnresolvedCatalogAlias(d.Catalog + "." + d.Alias)
		}
	}
	switch d.Version.Kind {
	case declare.LiteralVersion:
		return facts.Literal(d.Version.Value)
	case declare.PropertyVersion:
		if v, _, ok := c.property(d.Version.Value); ok {
			return facts.Literal(v)
		}
	case declare.CatalogVersion:
		if d.Binding != nil && d.Binding.Version != "" {
			return facts.Literal(d.Binding.Version)
		}
		return facts.UnresolvedCatalogAlias(catalog.DefaultName + "." + d.Version.Value)
	case declare.NoVersion:
		if managed {
			return facts.ManagedByCompanionPlugin()
		}
	}
	return facts.Unknown()
}
