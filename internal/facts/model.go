package facts

import "github.com/dejo1307/gradlefacts/internal/declare"

// VersionKind classifies a resolved framework version.
type VersionKind string

const (
	VersionLiteral           VersionKind = "literal"
	VersionManaged           VersionKind = "managed"
	VersionCatalogUnresolved VersionKind = "catalog-unresolved"
	VersionUnknown           VersionKind = "unknown"
)

// ResolvedVersion is one of Literal(v), ManagedByCompanionPlugin,
// UnresolvedCatalogAlias(path) or Unknown.
type ResolvedVersion struct {
	Kind  VersionKind `json:"kind"`
	Value string      `json:"value"`
}

// Literal is a concrete version string.
func Literal(v string) ResolvedVersion {
	return ResolvedVersion{Kind: VersionLiteral, Value: v}
}

// ManagedByCompanionPlugin defers the version to a dependency-management plugin.
func ManagedByCompanionPlugin() ResolvedVersion {
	return ResolvedVersion{Kind: VersionManaged}
}

// UnresolvedCatalogAlias is a catalog reference no available table could answer.
func UnresolvedCatalogAlias(path string) ResolvedVersion {
	return ResolvedVersion{Kind: VersionCatalogUnresolved, Value: path}
}

// Unknown means no version information was found.
func Unknown() ResolvedVersion {
	return ResolvedVersion{Kind: VersionUnknown}
}

// IsLiteral reports whether v carries a concrete version.
func (v ResolvedVersion) IsLiteral() bool { return v.Kind == VersionLiteral }

// Confidence grades a fact. The zero value is High.
type Confidence int

const (
	High Confidence = iota
	Medium
	Low
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// Downgrade lowers c by n levels, never below Low.
func (c Confidence) Downgrade(n int) Confidence {
	c += Confidence(n)
	if c > Low {
		return Low
	}
	if c < High {
		return High
	}
	return c
}

// AtMost returns the lower of c and limit.
func (c Confidence) AtMost(limit Confidence) Confidence {
	if c < limit {
		return limit
	}
	return c
}

// ParseConfidence maps "high", "medium" and "low" back to a Confidence.
func ParseConfidence(s string) (Confidence, bool) {
	switch s {
	case "high":
		return High, true
	case "medium":
		return Medium, true
	case "low":
		return Low, true
	}
	return Low, false
}

// Contribution is one declaration on a fact's evidence trail, tagged with
// the scope whose file declared it.
type Contribution struct {
	Decl   declare.Declaration
	Origin string
	// Via names the convention plugin the declaration came through, if any.
	Via string
}

// DependencyFact is a framework dependency found in a scope.
type DependencyFact struct {
	Coordinate    string
	Configuration string
	Version       ResolvedVersion
	Origin        string
}

// Note is a parse or expansion note, tagged with the scope it concerns.
type Note struct {
	Scope string
	Text  string
}

// Fact is the resolver's conclusion for one scope and one framework.
type Fact struct {
	ScopeID      string
	Framework    string
	Present      bool
	Version      ResolvedVersion
	Confidence   Confidence
	Evidence     []Contribution
	Toolchain    string
	Dependencies []DependencyFact
	Notes        []Note
}

// Record is the external, JSON-shaped form of a Fact.
type Record struct {
	Scope        string             `json:"scope"`
	Framework    string             `json:"framework"`
	Present      bool               `json:"present"`
	Version      ResolvedVersion    `json:"version"`
	Confidence   string             `json:"confidence"`
	Evidence     []RecordEvidence   `json:"evidence"`
	Toolchain    string             `json:"toolchain,omitempty"`
	Dependencies []RecordDependency `json:"dependencies,omitempty"`
}

// RecordEvidence is one evidence entry. Kind is "plugin", "programmatic",
// "dependency" or "note".
type RecordEvidence struct {
	Scope  string `json:"scope"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// RecordDependency is a framework dependency with its resolved version.
type RecordDependency struct {
	Coordinate    string          `json:"coordinate"`
	Configuration string          `json:"configuration,omitempty"`
	Version       ResolvedVersion `json:"version"`
}

// Evidence kinds.
const (
	EvidencePlugin       = "plugin"
	EvidenceProgrammatic = "programmatic"
	EvidenceDependency   = "dependency"
	EvidenceNote         = "note"
)

// Insight is a cross-scope observation produced by an explainer.
type Insight struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Confidence  float64    `json:"confidence"` // 0.0 - 1.0
	Evidence    []Evidence `json:"evidence"`
	Actions     []string   `json:"suggested_actions,omitempty"`
}

// Evidence links an insight back to scopes and files.
type Evidence struct {
	Scope  string `json:"scope,omitempty"`
	File   string `json:"file,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Artifact represents a generated output file.
type Artifact struct {
	Name    string `json:"name"` // e.g. "report.md"
	Content []byte `json:"-"`
	Type    string `json:"type"` // MIME type hint
}

// Snapshot holds the complete result of a scan.
type Snapshot struct {
	Meta      SnapshotMeta `json:"meta"`
	Records   []Record     `json:"records"`
	Facts     []Fact       `json:"-"`
	Insights  []Insight    `json:"insights"`
	Artifacts []Artifact   `json:"artifacts"`
}

// SnapshotMeta contains metadata about a scan.
type SnapshotMeta struct {
	RunID        string     `json:"run_id"`
	RootPath     string     `json:"root_path"`
	GeneratedAt  string     `json:"generated_at"`
	Duration     string     `json:"duration"`
	Frameworks   []string   `json:"frameworks"`
	Explainers   []string   `json:"explainers"`
	Renderers    []string   `json:"renderers"`
	FileHashes   []FileHash `json:"file_hashes,omitempty"`
	ScopeCount   int        `json:"scope_count"`
	RecordCount  int        `json:"record_count"`
	InsightCount int        `json:"insight_count"`
	Faults       []string   `json:"faults,omitempty"`
}

// FileHash tracks a scanned file's content hash.
type FileHash struct {
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	ModTime string `json:"mod_time,omitempty"`
}
