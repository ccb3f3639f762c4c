package declare

import (
	"strings"

	"go.uber.org/multierr"

	"github.com/dejo1307/gradlefacts/internal/script"
)

// Options controls interpretation of one file.
type Options struct {
	// File is recorded on every declaration and error.
	File string
	// Dialect of the source the tree came from.
	Dialect script.Dialect
	// Settings marks a settings script: plugins declared there only
	// pin versions and are never applied to a project.
	Settings bool
	// CatalogAccessors are the version catalog accessor names (default "libs").
	CatalogAccessors []string
}

// Interpreter turns a block tree into declarations.
type Interpreter struct {
	opts     Options
	catalogs map[string]bool
	decls    []Declaration
	errs     error
}

// section is the kind of block a statement sits in.
type section int

const (
	sectionNone section = iota
	sectionPlugins
	sectionDependencies
	sectionExt
	sectionImports
	sectionRegistrations
	// sectionGradlePlugin is the inside of gradlePlugin { } up to its
	// plugins block.
	sectionGradlePlugin
)

type walkCtx struct {
	region      Region
	section     section
	buildscript bool
}

// Interpret walks root in source order. The returned error, when non-nil,
// combines one *MalformedDeclaration per rejected statement; use
// multierr.Errors to split it. The declarations are valid either way.
func Interpret(root *script.Block, opts Options) ([]Declaration, error) {
	in := NewInterpreter(opts)
	return in.Interpret(root)
}

// NewInterpreter creates an interpreter.
func NewInterpreter(opts Options) *Interpreter {
	if len(opts.CatalogAccessors) == 0 {
		opts.CatalogAccessors = []string{"libs"}
	}
	in := &Interpreter{opts: opts, catalogs: make(map[string]bool)}
	for _, c := range opts.CatalogAccessors {
		in.catalogs[c] = true
	}
	return in
}

// Interpret walks root and returns its declarations.
func (in *Interpreter) Interpret(root *script.Block) ([]Declaration, error) {
	in.decls = nil
	in.errs = nil
	in.walk(root, walkCtx{})
	return in.decls, in.errs
}

func (in *Interpreter) walk(b *script.Block, ctx walkCtx) {
	for _, n := range b.Nodes() {
		if n.Statement != nil {
			in.statement(n.Statement, ctx)
			continue
		}
		in.block(n.Block, ctx)
	}
}

func (in *Interpreter) block(b *script.Block, ctx walkCtx) {
	name := b.Name
	switch {
	case ctx.section == sectionRegistrations:
		in.registration(b, ctx)
		return
	case ctx.section == sectionDependencies:
		// implementation("g:a:v") { exclude(...) } carries its coordinate
		// in the block header.
		if in.dependency(b.Header, b.Line, script.Join(b.Header), ctx) {
			return
		}
	case name == "allprojects" || strings.HasSuffix(name, ".allprojects"):
		ctx.region = Region{Kind: AllProjects}
		ctx.section = sectionNone
	case name == "subprojects" || strings.HasSuffix(name, ".subprojects"):
		ctx.region = Region{Kind: SubProjects}
		ctx.section = sectionNone
	case name == "configure":
		if r, ok := configureRegion(b.Call()); ok {
			ctx.region = r
			ctx.section = sectionNone
		}
	case name == "project" || name == "rootProject.project":
		if seg, _, ok := b.Call().Segment("project"); ok {
			if a, ok := seg.Arg("", 0); ok {
				if t, ok := a.Literal(); ok {
					ctx.region = Region{Kind: Project, Target: t.Text}
					ctx.section = sectionNone
				}
			}
		}
	case name == "buildscript":
		ctx.buildscript = true
	case name == "plugins" && ctx.section == sectionGradlePlugin:
		ctx.section = sectionRegistrations
	case name == "plugins":
		ctx.section = sectionPlugins
	case name == "dependencies":
		ctx.section = sectionDependencies
	case name == "ext" || name == "extra":
		ctx.section = sectionExt
	case name == "imports":
		ctx.section = sectionImports
	case name == "gradlePlugin":
		ctx.section = sectionGradlePlugin
	}
	in.walk(b, ctx)
}

func configureRegion(c script.Chain) (Region, bool) {
	seg, _, ok := c.Segment("configure")
	if !ok {
		return Region{}, false
	}
	a, ok := seg.Arg("", 0)
	if !ok || len(a.Tokens) == 0 {
		return Region{}, false
	}
	inner := a.Chain()
	switch inner.Head() {
	case "allprojects":
		return Region{Kind: AllProjects}, true
	case "subprojects":
		return Region{Kind: SubProjects}, true
	case "project":
		if pa, ok := inner.Segments[0].Arg("", 0); ok {
			if t, ok := pa.Literal(); ok {
				return Region{Kind: Project, Target: t.Text}, true
			}
		}
	}
	return Region{}, false
}

func (in *Interpreter) statement(s *script.Statement, ctx walkCtx) {
	if s.Apply != nil {
		in.apply(s, ctx)
		return
	}
	switch ctx.section {
	case sectionPlugins:
		in.plugin(s, ctx)
		return
	case sectionDependencies:
		in.dependency(s.Tokens, s.Line, s.Raw, ctx)
		return
	case sectionImports:
		in.bom(s, ctx)
		return
	case sectionExt:
		if in.extAssignment(s, ctx) {
			return
		}
	}
	if in.toolchain(s, ctx) {
		return
	}
	in.property(s, ctx)
}

func (in *Interpreter) emit(d Declaration, ctx walkCtx, line int, raw string) {
	d.Region = ctx.region
	d.File = in.opts.File
	d.Line = line
	d.Raw = raw
	in.decls = append(in.decls, d)
}

func (in *Interpreter) malformed(line int, raw, reason string) {
	in.errs = multierr.Append(in.errs, &MalformedDeclaration{File: in.opts.File, Line: line, Raw: raw, Reason: reason})
}

func (in *Interpreter) apply(s *script.Statement, ctx walkCtx) {
	call := s.Apply
	if call.PluginID == "" && call.Class == "" {
		in.malformed(s.Line, s.Raw, "empty plugin id")
		return
	}
	kind := Plugin
	if in.opts.Dialect == script.Programmatic {
		kind = Programmatic
	}
	in.emit(Declaration{
		Kind:     kind,
		PluginID: call.PluginID,
		Class:    call.Class,
		Applied:  !in.opts.Settings,
	}, ctx, s.Line, s.Raw)
}

// corePlugins lists plugin ids that can be written as bare identifiers.
var corePlugins = map[string]bool{
	"java": true, "java-library": true, "java-platform": true, "application": true,
	"groovy": true, "scala": true, "war": true, "ear": true, "idea": true, "eclipse": true,
	"maven-publish": true, "jacoco": true, "checkstyle": true, "pmd": true, "base": true,
	"java-gradle-plugin": true, "kotlin-dsl": true, "java-test-fixtures": true, "distribution": true,
}

func (in *Interpreter) plugin(s *script.Statement, ctx walkCtx) {
	c := script.ParseChain(s.Tokens)
	if len(c.Segments) == 0 || c.Op != "" {
		return
	}
	head := c.Segments[0]
	d := Declaration{Kind: Plugin, Applied: !in.opts.Settings}

	switch {
	case head.Name == "id":
		a, ok := head.Arg("", 0)
		if !ok {
			in.malformed(s.Line, s.Raw, "plugin id missing")
			return
		}
		t, ok := a.Literal()
		if !ok {
			return
		}
		if strings.TrimSpace(t.Text) == "" {
			in.malformed(s.Line, s.Raw, "empty plugin id")
			return
		}
		d.PluginID = strings.TrimSpace(t.Text)
	case head.Name == "kotlin" && head.Called:
		a, ok := head.Arg("", 0)
		if !ok {
			return
		}
		t, ok := a.Literal()
		if !ok || t.Text == "" {
			in.malformed(s.Line, s.Raw, "empty kotlin plugin name")
			return
		}
		d.PluginID = "org.jetbrains.kotlin." + t.Text
	case head.Name == "alias":
		a, ok := head.Arg("", 0)
		if !ok {
			return
		}
		catalog, path, ok := in.catalogPath(a.Tokens)
		if !ok {
			return
		}
		d.Kind = CatalogAlias
		d.Catalog = catalog
		d.Alias = path
		d.PluginAlias = strings.HasPrefix(path, "plugins.")
	case !head.Called && len(c.Segments) == 1 && corePlugins[head.Name]:
		d.PluginID = head.Name
	default:
		return
	}

	for _, seg := range c.Segments[1:] {
		switch seg.Name {
		case "version":
			if a, ok := seg.Arg("", 0); ok {
				d.Version = in.versionRef(a.Tokens)
			}
		case "apply":
			if a, ok := seg.Arg("", 0); ok && len(a.Tokens) == 1 && a.Tokens[0].IsIdent("false") {
				d.Applied = false
			}
		}
	}
	in.emit(d, ctx, s.Line, s.Raw)
}

// versionRef reads the argument of a version clause.
func (in *Interpreter) versionRef(toks []script.Token) VersionRef {
	if len(toks) == 1 {
		t := toks[0]
		switch t.Kind {
		case script.String:
			if t.Interpolated {
				if name, ok := PropertyRef(t.Text); ok {
					return VersionRef{Kind: PropertyVersion, Value: name}
				}
			}
			return VersionRef{Kind: LiteralVersion, Value: t.Text}
		case script.Number:
			return VersionRef{Kind: LiteralVersion, Value: t.Text}
		case script.Ident:
			return VersionRef{Kind: PropertyVersion, Value: t.Text}
		}
	}
	if _, path, ok := in.catalogPath(toks); ok {
		return VersionRef{Kind: CatalogVersion, Value: path}
	}
	// property("x"), extra["x"], project.property("x")
	c := script.ParseChain(toks)
	for _, seg := range c.Segments {
		if seg.Name == "property" || seg.Name == "findProperty" {
			if a, ok := seg.Arg("", 0); ok {
				if t, ok := a.Literal(); ok {
					return VersionRef{Kind: PropertyVersion, Value: t.Text}
				}
			}
		}
		if (seg.Name == "extra" || seg.Name == "ext") && len(seg.Index) == 1 && seg.Index[0].Kind == script.String {
			return VersionRef{Kind: PropertyVersion, Value: seg.Index[0].Text}
		}
	}
	if len(c.Segments) > 0 && len(c.Rest) == 0 {
		last := c.Segments[len(c.Segments)-1]
		if !last.Called {
			return VersionRef{Kind: PropertyVersion, Value: last.Name}
		}
	}
	return VersionRef{}
}

// catalogPath recognises libs.a.b.c (optionally ending in .get() or
// .asProvider()) and returns the accessor and normalized alias path.
func (in *Interpreter) catalogPath(toks []script.Token) (string, string, bool) {
	c := script.ParseChain(toks)
	if len(c.Segments) < 2 || len(c.Rest) > 0 || c.Op != "" || !in.catalogs[c.Segments[0].Name] {
		return "", "", false
	}
	var parts []string
	for _, seg := range c.Segments[1:] {
		if seg.Called {
			if seg.Name == "get" || seg.Name == "asProvider" || seg.Name == "getOrNull" {
				continue
			}
			return "", "", false
		}
		parts = append(parts, seg.Name)
	}
	if len(parts) == 0 {
		return "", "", false
	}
	return c.Segments[0].Name, NormalizeAlias(strings.Join(parts, ".")), true
}

// NormalizeAlias maps catalog keys and accessor paths to one form:
// "spring-boot_starter" and "spring.boot.starter" both become
// "spring.boot.starter".
func NormalizeAlias(s string) string {
	return strings.NewReplacer("-", ".", "_", ".").Replace(s)
}

var skippedConfigurations = map[string]bool{
	"constraints": true, "components": true, "modules": true, "attributesSchema": true,
	"if": true, "else": true, "for": true, "val": true, "var": true, "def": true,
}

// dependency interprets one dependencies statement and reports whether it
// produced a declaration.
func (in *Interpreter) dependency(toks []script.Token, line int, raw string, ctx walkCtx) bool {
	c := script.ParseChain(toks)
	if len(c.Segments) == 0 || c.Op != "" {
		return false
	}
	head := c.Segments[0]
	if skippedConfigurations[head.Name] || !head.Called {
		return false
	}
	config := head.Name
	args := head.Args
	if head.Name == "add" && len(args) >= 2 {
		if t, ok := args[0].Literal(); ok {
			config = t.Text
			args = args[1:]
		}
	}
	if ctx.buildscript && config != "classpath" {
		return false
	}

	if group, ok := head.Arg("group", 0); ok {
		d := Declaration{Kind: Dependency, Configuration: config}
		d.Group = literalText(group.Tokens)
		if name, ok := head.Arg("name", 0); ok {
			d.Artifact = literalText(name.Tokens)
		}
		if v, ok := head.Arg("version", 0); ok {
			d.Version = in.versionRef(v.Tokens)
		}
		if d.Group == "" || d.Artifact == "" {
			in.malformed(line, raw, "dependency needs group and name")
			return true
		}
		in.emit(d, ctx, line, raw)
		return true
	}

	emitted := false
	for _, a := range args {
		if a.Name != "" {
			continue
		}
		if in.dependencyArg(a.Tokens, config, false, line, raw, ctx) {
			emitted = true
		}
	}
	return emitted
}

func (in *Interpreter) dependencyArg(toks []script.Token, config string, platform bool, line int, raw string, ctx walkCtx) bool {
	if len(toks) == 0 {
		return false
	}
	if len(toks) == 1 && toks[0].Kind == script.String {
		d, ok, err := ParseCoordinate(toks[0].Text, toks[0].Interpolated)
		if err != "" {
			in.malformed(line, raw, err)
			return true
		}
		if !ok {
			return false
		}
		d.Configuration = config
		d.Platform = platform
		in.emit(d, ctx, line, raw)
		return true
	}
	if catalog, path, ok := in.catalogPath(toks); ok {
		in.emit(Declaration{
			Kind:          CatalogAlias,
			Catalog:       catalog,
			Alias:         path,
			PluginAlias:   strings.HasPrefix(path, "plugins."),
			Configuration: config,
			Platform:      platform,
		}, ctx, line, raw)
		return true
	}
	c := script.ParseChain(toks)
	if len(c.Segments) == 1 && (c.Head() == "platform" || c.Head() == "enforcedPlatform") {
		if a, ok := c.Segments[0].Arg("", 0); ok {
			return in.dependencyArg(a.Tokens, config, true, line, raw, ctx)
		}
	}
	return false
}

// ParseCoordinate splits "group:artifact[:version[:classifier]][@ext]".
// ok is false for strings that are not coordinates; reason is set when the
// string has coordinate shape with empty parts.
func ParseCoordinate(s string, interpolated bool) (d Declaration, ok bool, reason string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || strings.ContainsAny(s, " /\\") {
		return d, false, ""
	}
	d.Kind = Dependency
	d.Group = parts[0]
	d.Artifact = parts[1]
	if d.Group == "" || d.Artifact == "" {
		return d, false, "coordinate has empty group or artifact"
	}
	if len(parts) >= 3 && parts[2] != "" {
		v := parts[2]
		if interpolated {
			if name, ok := PropertyRef(v); ok {
				d.Version = VersionRef{Kind: PropertyVersion, Value: name}
				return d, true, ""
			}
		}
		d.Version = VersionRef{Kind: LiteralVersion, Value: v}
	}
	return d, true, ""
}

func (in *Interpreter) bom(s *script.Statement, ctx walkCtx) {
	c := script.ParseChain(s.Tokens)
	if c.Head() != "mavenBom" {
		return
	}
	a, ok := c.Segments[0].Arg("", 0)
	if !ok {
		return
	}
	in.dependencyArg(a.Tokens, "mavenBom", true, s.Line, s.Raw, ctx)
}

// registration reads a gradlePlugin { plugins { name { id = ...;
// implementationClass = ... } } } entry.
func (in *Interpreter) registration(b *script.Block, ctx walkCtx) {
	d := Declaration{Kind: Registration}
	for _, s := range b.Statements {
		c := script.ParseChain(s.Tokens)
		if len(c.Segments) == 0 {
			continue
		}
		var value string
		if c.Op == "=" {
			value = literalText(c.Value)
		} else if seg := c.Segments[len(c.Segments)-1]; seg.Name == "set" {
			if a, ok := seg.Arg("", 0); ok {
				value = literalText(a.Tokens)
			}
		}
		switch c.Head() {
		case "id":
			d.PluginID = value
		case "implementationClass":
			d.Class = value
		}
	}
	if d.PluginID == "" {
		in.malformed(b.Line, script.Join(b.Header), "plugin registration without id")
		return
	}
	if i := strings.LastIndexByte(d.Class, '.'); i >= 0 {
		d.Class = d.Class[i+1:]
	}
	in.emit(d, ctx, b.Line, script.Join(b.Header))
}

// extAssignment reads "name = value" and set("name", value) inside ext { }.
func (in *Interpreter) extAssignment(s *script.Statement, ctx walkCtx) bool {
	c := script.ParseChain(s.Tokens)
	if len(c.Segments) == 1 && c.Op == "=" {
		in.emitProperty(c.Segments[0].Name, c.Value, s, ctx)
		return true
	}
	if len(c.Segments) == 1 && c.Head() == "set" {
		if len(c.Segments[0].Args) == 2 {
			if t, ok := c.Segments[0].Args[0].Literal(); ok {
				in.emitProperty(t.Text, c.Segments[0].Args[1].Tokens, s, ctx)
				return true
			}
		}
	}
	return false
}

// property recognises ext.x = v, ext["x"] = v, extra["x"] = v,
// extra.set("x", v), val x by extra(v) and script-level val/def x = v.
func (in *Interpreter) property(s *script.Statement, ctx walkCtx) {
	c := script.ParseChain(s.Tokens)
	n := len(c.Segments)
	if n == 0 {
		return
	}
	receiver := func(name string) bool { return name == "ext" || name == "extra" }
	last := c.Segments[n-1]
	switch {
	case c.Op == "=" && n >= 2 && receiver(c.Segments[n-2].Name):
		in.emitProperty(last.Name, c.Value, s, ctx)
	case c.Op == "=" && receiver(last.Name) && len(last.Index) == 1 && last.Index[0].Kind == script.String:
		in.emitProperty(last.Index[0].Text, c.Value, s, ctx)
	case c.Op == "" && n >= 2 && last.Name == "set" && receiver(c.Segments[n-2].Name) && len(last.Args) == 2:
		if t, ok := last.Args[0].Literal(); ok {
			in.emitProperty(t.Text, last.Args[1].Tokens, s, ctx)
		}
	case (c.Head() == "val" || c.Head() == "def" || c.Head() == "var") && len(c.Segments[0].Args) == 1:
		name := literalIdent(c.Segments[0].Args[0].Tokens)
		if name == "" {
			return
		}
		if c.Op == "=" {
			in.emitProperty(name, c.Value, s, ctx)
			return
		}
		if by, _, ok := c.Segment("by"); ok {
			if a, ok := by.Arg("", 0); ok {
				inner := a.Chain()
				if inner.Head() == "extra" && len(inner.Segments[0].Args) == 1 {
					in.emitProperty(name, inner.Segments[0].Args[0].Tokens, s, ctx)
				}
			}
		}
	}
}

func (in *Interpreter) emitProperty(name string, value []script.Token, s *script.Statement, ctx walkCtx) {
	v := literalText(value)
	if name == "" || v == "" {
		return
	}
	in.emit(Declaration{Kind: Property, Name: name, Value: v}, ctx, s.Line, s.Raw)
}

// toolchain recognises Java language version requirements.
func (in *Interpreter) toolchain(s *script.Statement, ctx walkCtx) bool {
	c := script.ParseChain(s.Tokens)
	if len(c.Segments) == 0 {
		return false
	}
	names := c.Names()
	var version string
	switch {
	case strings.HasSuffix(names, "languageVersion") && c.Op == "=":
		version = javaVersion(c.Value)
	case strings.HasSuffix(names, "languageVersion.set"):
		if a, ok := c.Segments[len(c.Segments)-1].Arg("", 0); ok {
			version = javaVersion(a.Tokens)
		}
	case c.Head() == "jvmToolchain" || strings.HasSuffix(names, ".jvmToolchain"):
		if a, ok := c.Segments[len(c.Segments)-1].Arg("", 0); ok {
			version = javaVersion(a.Tokens)
		}
	case (names == "sourceCompatibility" || strings.HasSuffix(names, ".sourceCompatibility")) && c.Op == "=":
		version = javaVersion(c.Value)
	default:
		return false
	}
	if version == "" {
		return false
	}
	in.emit(Declaration{Kind: Toolchain, LanguageVersion: version}, ctx, s.Line, s.Raw)
	return true
}

// javaVersion extracts "17" from 17, '17', JavaLanguageVersion.of(17),
// JavaVersion.VERSION_17 or JavaVersion.toVersion("1.8").
func javaVersion(toks []script.Token) string {
	for _, t := range toks {
		switch t.Kind {
		case script.Number:
			return t.Text
		case script.String:
			if t.Text != "" && !t.Interpolated {
				return t.Text
			}
		case script.Ident:
			if strings.HasPrefix(t.Text, "VERSION_") {
				v := strings.TrimPrefix(t.Text, "VERSION_")
				if v == "HIGHER" {
					continue
				}
				return strings.ReplaceAll(v, "_", ".")
			}
		}
	}
	return ""
}

// literalText returns the text of a single string or number token.
func literalText(toks []script.Token) string {
	if len(toks) != 1 {
		return ""
	}
	switch t := toks[0]; t.Kind {
	case script.String, script.Number:
		return t.Text
	}
	return ""
}

func literalIdent(toks []script.Token) string {
	if len(toks) == 1 && toks[0].Kind == script.Ident {
		return toks[0].Text
	}
	return ""
}
