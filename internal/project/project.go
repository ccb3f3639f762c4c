// Package project assembles per-file declarations into the tree of project
// scopes Gradle would configure, plus the convention plugins those scopes
// can apply.
package project

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dejo1307/gradlefacts/internal/declare"
	"github.com/dejo1307/gradlefacts/internal/script"
)

// Role says what a file contributes.
type Role int

const (
	// BuildScript is a build.gradle(.kts); it defines the scope at its module path.
	BuildScript Role = iota
	// Settings is the root settings script.
	Settings
	// Properties is a gradle.properties file.
	Properties
	// ConventionScript is a precompiled script plugin (buildSrc/src/main/kotlin/x.gradle.kts).
	ConventionScript
	// ConventionClass is a Plugin<Project> implementation class.
	ConventionClass
	// ConventionBuild is the build script of a convention build (buildSrc, build-logic).
	ConventionBuild
	// ConventionDescriptor is a META-INF/gradle-plugins/<id>.properties descriptor.
	ConventionDescriptor
)

var roleNames = [...]string{"build", "settings", "properties", "convention-script", "convention-class", "convention-build", "convention-descriptor"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// IsConvention reports whether files of this role belong to a convention build.
func (r Role) IsConvention() bool { return r >= ConventionScript }

// File is one interpreted input.
type File struct {
	Path       string
	ModulePath string
	Role       Role
	// ConventionRoot is the directory of the convention build the file
	// belongs to, for convention roles.
	ConventionRoot string
	Declarations   []declare.Declaration
	// Classes declared by a ConventionClass file. Defaults to the file's base name.
	Classes []string
	// Faults are the recovered errors of this file: a *script.ParseError or
	// *declare.MalformedDeclaration values.
	Faults []error
}

// ErrNoScopes is returned by Build when no file defines a scope.
var ErrNoScopes = errors.New("no build scripts")

// OrphanModuleError reports a module that has no parent scope reachable
// through the file hierarchy.
type OrphanModuleError struct {
	Module string
	File   string
	Reason string
}

func (e *OrphanModuleError) Error() string {
	return fmt.Sprintf("orphan module %s (%s): %s", e.Module, e.File, e.Reason)
}

// ModulePath maps a directory relative to the root to a Gradle project
// path: "" -> ":", "services/orders" -> ":services:orders".
func ModulePath(dir string) string {
	dir = strings.Trim(strings.ReplaceAll(dir, "\\", "/"), "/")
	if dir == "" || dir == "." {
		return ":"
	}
	return ":" + strings.ReplaceAll(path.Clean(dir), "/", ":")
}

// PathChain returns id followed by every module path above it, closest
// first: ":a:b" -> [":a:b", ":a", ":"].
func PathChain(id string) []string {
	var out []string
	for ; id != ""; id = parentPath(id) {
		out = append(out, id)
	}
	return out
}

// parentPath returns the path one level up, or "" for the root.
func parentPath(id string) string {
	if id == ":" {
		return ""
	}
	i := strings.LastIndexByte(id, ':')
	if i <= 0 {
		return ":"
	}
	return id[:i]
}

// Attached is a declaration placed on a scope.
type Attached struct {
	Decl declare.Declaration
	// Origin is the id of the scope whose file holds the declaration.
	Origin string
	// AppliesToDescendants marks allprojects and subprojects content.
	AppliesToDescendants bool
	// ExcludesRoot marks subprojects content: it does not apply to the
	// scope that declared it.
	ExcludesRoot bool
	// Target is the module path of a project(":x") block.
	Target string
	// Convention is set on implicit convention attachments: the file of a
	// convention plugin no build script references. Decl is zero then.
	Convention string
}

// Scope is one node of the project tree.
type Scope struct {
	ID       string
	Dir      string
	Parent   int
	Children []int
	Depth    int
	Files    []string

	Declarations []Attached
	Notes        []string
	// Faulted is set when a file of this scope failed to parse.
	Faulted bool
}

// ConventionPlugin is a plugin implemented in a convention build.
type ConventionPlugin struct {
	IDs   []string
	Class string
	Root  string
	File  string
	Decls []declare.Declaration
	// BuildDecls are the declarations of the convention build script,
	// typically the framework plugin artifacts it depends on.
	BuildDecls []declare.Declaration
	Notes      []string
	Faulted    bool
	Linked     bool
}

// Name is the id the plugin is best known by.
func (c *ConventionPlugin) Name() string {
	if len(c.IDs) > 0 {
		return c.IDs[0]
	}
	return c.Class
}

// Tree is the index-based scope hierarchy. Scopes[0] is the root and
// every parent precedes its children.
type Tree struct {
	Scopes      []Scope
	Conventions []ConventionPlugin

	index      map[string]int
	injections map[string][]Attached
	byID       map[string]int
	byClass    map[string]int
	byFile     map[string]int
}

// Root returns the root scope.
func (t *Tree) Root() *Scope { return &t.Scopes[0] }

// Lookup finds a scope by module path.
func (t *Tree) Lookup(id string) (*Scope, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return &t.Scopes[i], true
}

// Index returns the slice index of a scope id, or -1.
func (t *Tree) Index(id string) int {
	if i, ok := t.index[id]; ok {
		return i
	}
	return -1
}

// Ancestors returns the indices of i's ancestors, closest first.
func (t *Tree) Ancestors(i int) []int {
	var out []int
	for p := t.Scopes[i].Parent; p >= 0; p = t.Scopes[p].Parent {
		out = append(out, p)
	}
	return out
}

// Chain returns the ids of i and its ancestors, closest first.
func (t *Tree) Chain(i int) []string {
	out := []string{t.Scopes[i].ID}
	for _, a := range t.Ancestors(i) {
		out = append(out, t.Scopes[a].ID)
	}
	return out
}

// Levels groups scope indices by depth; level 0 holds the root.
func (t *Tree) Levels() [][]int {
	var levels [][]int
	for i, s := range t.Scopes {
		for len(levels) <= s.Depth {
			levels = append(levels, nil)
		}
		levels[s.Depth] = append(levels[s.Depth], i)
	}
	return levels
}

// Injections returns the project(":x") declarations other scopes target at id.
func (t *Tree) Injections(id string) []Attached {
	return t.injections[id]
}

// ConventionFor returns the convention plugin a plugin application refers to.
func (t *Tree) ConventionFor(d declare.Declaration) (*ConventionPlugin, bool) {
	if d.PluginID != "" {
		if i, ok := t.byID[d.PluginID]; ok {
			return &t.Conventions[i], true
		}
	}
	if d.Class != "" {
		if i, ok := t.byClass[d.Class]; ok {
			return &t.Conventions[i], true
		}
	}
	return nil, false
}

// ConventionByFile returns the convention plugin defined in file.
func (t *Tree) ConventionByFile(file string) (*ConventionPlugin, bool) {
	i, ok := t.byFile[file]
	if !ok {
		return nil, false
	}
	return &t.Conventions[i], true
}

// Build assembles the scope tree. It fails with *OrphanModuleError when a
// module cannot be placed under a root scope and with ErrNoScopes when no
// file defines one.
func Build(files []File) (*Tree, error) {
	var (
		modules     = make(map[string]string) // module path -> defining file
		hasRoot     bool
		conventions []File
		scoped      []File
	)
	for _, f := range files {
		if f.Role.IsConvention() {
			conventions = append(conventions, f)
			continue
		}
		scoped = append(scoped, f)
		switch f.Role {
		case BuildScript:
			if !strings.HasPrefix(f.ModulePath, ":") {
				return nil, &OrphanModuleError{Module: f.ModulePath, File: f.Path, Reason: "module path is not absolute"}
			}
			if _, dup := modules[f.ModulePath]; !dup {
				modules[f.ModulePath] = f.Path
			}
			if f.ModulePath == ":" {
				hasRoot = true
			}
		case Settings:
			hasRoot = true
		}
	}
	if !hasRoot && len(modules) == 0 && len(conventions) > 0 {
		hasRoot = true
	}
	if len(modules) == 0 && !hasRoot {
		return nil, ErrNoScopes
	}
	if !hasRoot {
		ids := make([]string, 0, len(modules))
		for id := range modules {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return nil, &OrphanModuleError{Module: ids[0], File: modules[ids[0]], Reason: "no root build or settings script"}
	}
	if _, ok := modules[":"]; !ok {
		modules[":"] = ""
	}

	t := newTree(modules)
	for _, f := range scoped {
		t.attach(f)
	}
	t.linkConventions(conventions)
	return t, nil
}

func newTree(modules map[string]string) *Tree {
	ids := make([]string, 0, len(modules))
	for id := range modules {
		ids = append(ids, id)
	}
	// A parent path is a prefix of its children, so it sorts first.
	sort.Strings(ids)

	t := &Tree{
		index:      make(map[string]int, len(ids)),
		injections: make(map[string][]Attached),
		byID:       make(map[string]int),
		byClass:    make(map[string]int),
		byFile:     make(map[string]int),
	}
	for i, id := range ids {
		t.index[id] = i
		s := Scope{ID: id, Dir: dirOf(id), Parent: -1}
		if id != ":" {
			p := t.nearest(parentPath(id))
			s.Parent = p
			s.Depth = t.Scopes[p].Depth + 1
			t.Scopes[p].Children = append(t.Scopes[p].Children, i)
		}
		t.Scopes = append(t.Scopes, s)
	}
	return t
}

func dirOf(id string) string {
	if id == ":" {
		return ""
	}
	return strings.ReplaceAll(strings.TrimPrefix(id, ":"), ":", "/")
}

// nearest returns the closest existing scope at or above id.
func (t *Tree) nearest(id string) int {
	for id != "" {
		if i, ok := t.index[id]; ok {
			return i
		}
		id = parentPath(id)
	}
	return 0
}

func (t *Tree) attach(f File) {
	owner := 0
	if f.Role != Settings {
		owner = t.nearest(f.ModulePath)
	}
	s := &t.Scopes[owner]
	s.Files = append(s.Files, f.Path)
	for _, err := range f.Faults {
		s.Notes = append(s.Notes, err.Error())
		var pe *script.ParseError
		if errors.As(err, &pe) {
			s.Faulted = true
		}
	}
	for _, d := range f.Declarations {
		a := Attached{Decl: d, Origin: s.ID}
		if f.Role == BuildScript {
			switch d.Region.Kind {
			case declare.AllProjects:
				a.AppliesToDescendants = true
			case declare.SubProjects:
				a.AppliesToDescendants = true
				a.ExcludesRoot = true
			case declare.Project:
				a.Target = d.Region.Target
				if !strings.HasPrefix(a.Target, ":") {
					a.Target = ":" + a.Target
				}
				t.injections[a.Target] = append(t.injections[a.Target], a)
				continue
			}
		}
		s.Declarations = append(s.Declarations, a)
	}
}

func (t *Tree) linkConventions(files []File) {
	builds := make(map[string][]declare.Declaration)
	buildNotes := make(map[string][]string)
	registered := make(map[string][]string) // class -> ids
	for _, f := range files {
		switch f.Role {
		case ConventionBuild, ConventionDescriptor:
			for _, d := range f.Declarations {
				if d.Kind == declare.Registration {
					registered[d.Class] = append(registered[d.Class], d.PluginID)
					continue
				}
				if f.Role == ConventionBuild {
					builds[f.ConventionRoot] = append(builds[f.ConventionRoot], d)
				}
			}
			for _, err := range f.Faults {
				buildNotes[f.ConventionRoot] = append(buildNotes[f.ConventionRoot], err.Error())
			}
		}
	}

	for _, f := range files {
		var plugins []ConventionPlugin
		switch f.Role {
		case ConventionScript:
			plugins = append(plugins, ConventionPlugin{IDs: []string{scriptPluginID(f.Path)}})
		case ConventionClass:
			classes := f.Classes
			if len(classes) == 0 {
				classes = []string{baseName(f.Path)}
			}
			for _, c := range classes {
				plugins = append(plugins, ConventionPlugin{IDs: registered[c], Class: c})
			}
		default:
			continue
		}
		for _, p := range plugins {
			p.Root = f.ConventionRoot
			p.File = f.Path
			p.Decls = f.Declarations
			p.BuildDecls = builds[f.ConventionRoot]
			p.Notes = append(p.Notes, buildNotes[f.ConventionRoot]...)
			for _, err := range f.Faults {
				p.Notes = append(p.Notes, err.Error())
				var pe *script.ParseError
				if errors.As(err, &pe) {
					p.Faulted = true
				}
			}
			i := len(t.Conventions)
			t.Conventions = append(t.Conventions, p)
			for _, id := range p.IDs {
				if _, dup := t.byID[id]; !dup {
					t.byID[id] = i
				}
			}
			if p.Class != "" {
				if _, dup := t.byClass[p.Class]; !dup {
					t.byClass[p.Class] = i
				}
			}
			if _, dup := t.byFile[p.File]; !dup {
				t.byFile[p.File] = i
			}
		}
	}

	t.markLinked()
	root := &t.Scopes[0]
	for i := range t.Conventions {
		c := &t.Conventions[i]
		if c.Linked {
			continue
		}
		if _, ok := t.byFile[c.File]; !ok || t.byFile[c.File] != i {
			continue
		}
		root.Declarations = append(root.Declarations, Attached{
			Origin:               root.ID,
			AppliesToDescendants: true,
			Convention:           c.File,
		})
	}
}

// markLinked flags conventions applied from any scope, injection or other
// convention.
func (t *Tree) markLinked() {
	mark := func(d declare.Declaration) {
		if d.Kind != declare.Plugin && d.Kind != declare.Programmatic {
			return
		}
		if c, ok := t.ConventionFor(d); ok {
			c.Linked = true
		}
	}
	for _, s := range t.Scopes {
		for _, a := range s.Declarations {
			mark(a.Decl)
		}
	}
	for _, inj := range t.injections {
		for _, a := range inj {
			mark(a.Decl)
		}
	}
	for _, c := range t.Conventions {
		for _, d := range c.Decls {
			mark(d)
		}
	}
}

// scriptPluginID derives the id of a precompiled script plugin from its
// file name: "spring-conventions.gradle.kts" -> "spring-conventions".
func scriptPluginID(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	base = strings.TrimSuffix(base, ".kts")
	return strings.TrimSuffix(base, ".gradle")
}

func baseName(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
