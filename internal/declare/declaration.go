// Package declare interprets extracted block trees into typed declarations:
// plugin applications, dependency coordinates, catalog alias references,
// toolchain requirements and the properties and plugin registrations that
// feed version resolution.
package declare

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Declaration.
type Kind int

const (
	// Plugin is a declarative plugin application (plugins block, or an
	// apply call written in a build script).
	Plugin Kind = iota
	// Programmatic is a plugin applied from convention-plugin code.
	Programmatic
	// Dependency is a group:artifact coordinate.
	Dependency
	// CatalogAlias is a reference to a version-catalog entry.
	CatalogAlias
	// Toolchain is a Java language version requirement.
	Toolchain
	// Property defines a named value usable in ${} version templates.
	Property
	// Registration maps a convention plugin id to its implementation class.
	Registration
)

var kindNames = [...]string{"plugin", "programmatic", "dependency", "catalog-alias", "toolchain", "property", "registration"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// VersionKind classifies how a declaration states its version.
type VersionKind int

const (
	NoVersion VersionKind = iota
	LiteralVersion
	CatalogVersion
	PropertyVersion
)

// VersionRef is the version written on a declaration. Value is the literal
// text, the normalized catalog alias path (e.g. "versions.spring.boot") or
// the property name.
type VersionRef struct {
	Kind  VersionKind
	Value string
}

func (v VersionRef) String() string {
	switch v.Kind {
	case LiteralVersion:
		return v.Value
	case CatalogVersion:
		return "catalog:" + v.Value
	case PropertyVersion:
		return "${" + v.Value + "}"
	default:
		return ""
	}
}

// RegionKind says which projects a declaration was written for.
type RegionKind int

const (
	Local RegionKind = iota
	AllProjects
	SubProjects
	Project
)

// Region is the project-scope block enclosing a declaration. Target is the
// module path for project(":x") blocks.
type Region struct {
	Kind   RegionKind
	Target string
}

func (r Region) String() string {
	switch r.Kind {
	case AllProjects:
		return "allprojects"
	case SubProjects:
		return "subprojects"
	case Project:
		return "project(" + r.Target + ")"
	default:
		return "local"
	}
}

// Binding is the catalog entry a CatalogAlias declaration, or a catalog
// version reference, resolved to.
type Binding struct {
	Found    bool
	Group    string
	Artifact string
	PluginID string
	Version  string
}

// Declaration is one normalized statement of intent. Which fields are
// meaningful depends on Kind.
type Declaration struct {
	Kind Kind

	PluginID string
	Class    string
	Version  VersionRef
	// Applied is false for plugins declared with "apply false" and for
	// version-only declarations in settings pluginManagement.
	Applied bool

	Group         string
	Artifact      string
	Configuration string
	Platform      bool

	Catalog     string
	Alias       string
	PluginAlias bool

	LanguageVersion string

	Name  string
	Value string

	Region Region
	File   string
	Line   int
	Raw    string

	Binding *Binding
}

// Coordinate returns "group:artifact" for dependencies.
func (d Declaration) Coordinate() string {
	if d.Group == "" && d.Artifact == "" {
		return ""
	}
	return d.Group + ":" + d.Artifact
}

// Summary is a short human readable description.
func (d Declaration) Summary() string {
	var sb strings.Builder
	sb.WriteString(d.Kind.String())
	switch d.Kind {
	case Plugin, Programmatic, Registration:
		id := d.PluginID
		if id == "" {
			id = d.Class
		}
		sb.WriteString(" " + id)
	case Dependency:
		sb.WriteString(" " + d.Coordinate())
	case CatalogAlias:
		sb.WriteString(" " + d.Catalog + "." + d.Alias)
	case Toolchain:
		sb.WriteString(" java " + d.LanguageVersion)
	case Property:
		sb.WriteString(" " + d.Name + "=" + d.Value)
	}
	if v := d.Version.String(); v != "" {
		sb.WriteString(" " + v)
	}
	if d.Region.Kind != Local {
		sb.WriteString(" [" + d.Region.String() + "]")
	}
	return sb.String()
}

// MalformedDeclaration reports a recognized statement with structurally
// invalid arguments. Interpretation continues past it.
type MalformedDeclaration struct {
	File   string
	Line   int
	Raw    string
	Reason string
}

func (e *MalformedDeclaration) Error() string {
	return fmt.Sprintf("%s:%d: malformed declaration %q: %s", e.File, e.Line, e.Raw, e.Reason)
}
