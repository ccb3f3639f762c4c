package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dejo1307/gradlefacts/internal/config"
	"github.com/dejo1307/gradlefacts/internal/engine"
	"github.com/dejo1307/gradlefacts/internal/facts"
	"github.com/dejo1307/gradlefacts/internal/resolve"
)

// Server wraps the MCP server and connects it to the scan engine.
type Server struct {
	mcp *mcp.Server
	eng *engine.Engine
	cfg *config.Config
}

// New creates a new MCP server wired to the given engine.
func New(eng *engine.Engine, cfg *config.Config, version string) (*Server, error) {
	s := &Server{
		eng: eng,
		cfg: cfg,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "gradlefacts",
		Version: version,
	}, nil)
	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	log.Println("[server] starting MCP server on stdio transport")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// artifactResource describes one snapshot artifact exposed as a resource.
type artifactResource struct {
	uri, name, description, artifact, mime string
}

var resources = []artifactResource{
	{"gradlefacts://snapshot/report", "Framework Report", "Markdown summary of the last scan", "report.md", "text/markdown"},
	{"gradlefacts://snapshot/facts", "Framework Facts", "One record per scope and framework in JSONL format", "facts.jsonl", "application/jsonl"},
	{"gradlefacts://snapshot/insights", "Scan Insights", "Cross-scope insights such as version drift", "insights.json", "application/json"},
	{"gradlefacts://snapshot/meta", "Snapshot Metadata", "Metadata about the last scan", "snapshot.meta.json", "application/json"},
}

// registerResources adds MCP resources for snapshot artifacts.
func (s *Server) registerResources() {
	for _, r := range resources {
		s.mcp.AddResource(&mcp.Resource{
			URI:         r.uri,
			Name:        r.name,
			Description: r.description,
			MIMEType:    r.mime,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			content, err := s.eng.GetArtifact(r.artifact)
			if err != nil {
				return nil, fmt.Errorf("no snapshot available: %w (run scan_project first)", err)
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: req.Params.URI, Text: string(content), MIMEType: r.mime},
				},
			}, nil
		})
	}
}

// scanArgs are the arguments for the scan_project tool.
type scanArgs struct {
	RootPath string `json:"root_path,omitempty" jsonschema:"Path to the Gradle build root. Defaults to the configured repo path."`
}

// queryFactsArgs are the arguments for the query_facts tool.
type queryFactsArgs struct {
	Scope         string   `json:"scope,omitempty" jsonschema:"Exact module path, e.g. :services:orders"`
	Scopes        []string `json:"scopes,omitempty" jsonschema:"Several module paths (OR-combined with scope)"`
	ScopePrefix   string   `json:"scope_prefix,omitempty" jsonschema:"Module path prefix, e.g. :services"`
	Framework     string   `json:"framework,omitempty" jsonschema:"Framework id, e.g. spring-boot"`
	Present       *bool    `json:"present,omitempty" jsonschema:"Only records where the framework is (or is not) present"`
	VersionKind   string   `json:"version_kind,omitempty" jsonschema:"literal, managed, catalog-unresolved or unknown"`
	Confidence    string   `json:"confidence,omitempty" jsonschema:"Exact confidence: high, medium or low"`
	MinConfidence string   `json:"min_confidence,omitempty" jsonschema:"Drop records below this confidence"`
	Offset        int      `json:"offset,omitempty" jsonschema:"Number of results to skip"`
	Limit         int      `json:"limit,omitempty" jsonschema:"Max results (default 100, max 500)"`
}

// explainArgs are the arguments for the explain_scope tool.
type explainArgs struct {
	Scope        string `json:"scope" jsonschema:"required,Module path to explain, e.g. :api"`
	Framework    string `json:"framework,omitempty" jsonschema:"Framework id. Defaults to the first configured framework."`
	ShowSource   bool   `json:"show_source,omitempty" jsonschema:"Include the source lines of each evidence declaration"`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"Source lines shown around each declaration (default 4)"`
}

// queryResult is the JSON shape returned by query_facts.
type queryResult struct {
	Total   int            `json:"total"`
	Offset  int            `json:"offset"`
	Records []facts.Record `json:"records"`
}

// registerTools adds MCP tools for scanning and querying.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scan_project",
		Description: "Scan a Gradle build and infer, per module, whether the target JVM framework is applied, its version, and how confident that conclusion is.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args scanArgs) (*mcp.CallToolResult, any, error) {
		return s.scan(ctx, args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_facts",
		Description: "Query the framework facts of the last scan by scope, framework, presence, version kind or confidence. Returns matching records as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryFactsArgs) (*mcp.CallToolResult, any, error) {
		return s.query(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "explain_scope",
		Description: "Explain how the fact of one module was reached: the declarations in its inherited context, the evidence trail and optionally the source lines behind it.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args explainArgs) (*mcp.CallToolResult, any, error) {
		return s.explain(args), nil, nil
	})
}

func (s *Server) scan(ctx context.Context, args scanArgs) *mcp.CallToolResult {
	rootPath := args.RootPath
	if rootPath == "" {
		rootPath = s.cfg.Repo
	}
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid root path: %v", err))
	}

	snapshot, err := s.eng.GenerateSnapshot(ctx, absRoot)
	if err != nil {
		return errorResult(fmt.Sprintf("scan failed: %v", err))
	}
	if err := s.eng.WriteArtifacts(absRoot); err != nil {
		log.Printf("[server] warning: failed to write artifacts: %v", err)
	}

	present := 0
	for _, r := range snapshot.Records {
		if r.Present {
			present++
		}
	}
	summary := fmt.Sprintf(
		"Scan completed.\n\n"+
			"- Root: %s\n"+
			"- Scopes: %d\n"+
			"- Records: %d (%d present)\n"+
			"- Insights: %d\n"+
			"- Faults: %d\n"+
			"- Duration: %s\n"+
			"- Frameworks: %v\n\n"+
			"Use the gradlefacts://snapshot/report resource for the summary or query_facts to filter records.",
		snapshot.Meta.RootPath,
		snapshot.Meta.ScopeCount,
		snapshot.Meta.RecordCount, present,
		snapshot.Meta.InsightCount,
		len(snapshot.Meta.Faults),
		snapshot.Meta.Duration,
		snapshot.Meta.Frameworks,
	)
	return textResult(summary)
}

func (s *Server) query(args queryFactsArgs) *mcp.CallToolResult {
	store := s.eng.Store()
	if store.Count() == 0 {
		return errorResult("No facts available. Run scan_project first.")
	}

	records, total := store.Query(facts.QueryOpts{
		Scope:         args.Scope,
		Scopes:        args.Scopes,
		ScopePrefix:   args.ScopePrefix,
		Framework:     args.Framework,
		Present:       args.Present,
		VersionKind:   args.VersionKind,
		Confidence:    args.Confidence,
		MinConfidence: args.MinConfidence,
		Offset:        args.Offset,
		Limit:         args.Limit,
	})
	if records == nil {
		records = []facts.Record{}
	}

	data, err := json.MarshalIndent(queryResult{Total: total, Offset: args.Offset, Records: records}, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal results: %v", err))
	}
	text := string(data)
	if shown := args.Offset + len(records); shown < total {
		text += fmt.Sprintf("\n\n... (showing %d-%d of %d results, use offset to page)", args.Offset+1, shown, total)
	}
	return textResult(text)
}

func (s *Server) explain(args explainArgs) *mcp.CallToolResult {
	res := s.eng.Result()
	snapshot := s.eng.Snapshot()
	if res == nil || snapshot == nil {
		return errorResult("No scan available. Run scan_project first.")
	}
	if args.Scope == "" {
		return errorResult("scope is required")
	}
	i := res.Tree.Index(args.Scope)
	if i < 0 {
		return errorResult(fmt.Sprintf("Unknown scope %q", args.Scope))
	}
	fw, ok := findFramework(res.Resolver.Frameworks(), args.Framework)
	if !ok {
		return errorResult(fmt.Sprintf("Unknown framework %q", args.Framework))
	}

	contextLines := args.ContextLines
	if contextLines <= 0 {
		contextLines = 4
	}

	f := res.Resolver.ResolveScope(i, fw)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", res.Resolver.Explain(i, fw))
	if f.Toolchain != "" {
		fmt.Fprintf(&sb, "Toolchain: Java %s\n\n", f.Toolchain)
	}

	sb.WriteString("## Evidence\n\n")
	if len(f.Evidence) == 0 {
		sb.WriteString("_None._\n")
	}
	for _, c := range f.Evidence {
		fmt.Fprintf(&sb, "- [%s] %s", c.Origin, c.Decl.Summary())
		if c.Via != "" {
			fmt.Fprintf(&sb, " (via %s)", c.Via)
		}
		if c.Decl.File != "" {
			fmt.Fprintf(&sb, " at %s:%d", c.Decl.File, c.Decl.Line)
		}
		sb.WriteString("\n")
		if args.ShowSource && c.Decl.File != "" && c.Decl.Line > 0 {
			source, err := readSourceWindow(filepath.Join(snapshot.Meta.RootPath, c.Decl.File), c.Decl.Line, contextLines)
			if err != nil {
				fmt.Fprintf(&sb, "  _Could not read source: %v_\n", err)
				continue
			}
			fmt.Fprintf(&sb, "```\n%s```\n", source)
		}
	}
	for _, n := range f.Notes {
		fmt.Fprintf(&sb, "- note [%s]: %s\n", n.Scope, n.Text)
	}

	sb.WriteString("\n## Inherited context\n\n")
	for _, c := range res.Resolver.Context(i) {
		fmt.Fprintf(&sb, "- [%s] %s", c.Origin, c.Decl.Summary())
		if c.Via != "" {
			fmt.Fprintf(&sb, " (via %s)", c.Via)
		}
		sb.WriteString("\n")
	}
	return textResult(sb.String())
}

func findFramework(fws []resolve.Framework, id string) (resolve.Framework, bool) {
	if id == "" && len(fws) > 0 {
		return fws[0], true
	}
	for _, fw := range fws {
		if fw.ID == id {
			return fw, true
		}
	}
	return resolve.Framework{}, false
}

// readSourceWindow reads lines from a file centered around the given line number.
func readSourceWindow(absFile string, centerLine, contextLines int) (string, error) {
	data, err := os.ReadFile(absFile)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	startLine := centerLine - contextLines/2
	if startLine < 1 {
		startLine = 1
	}
	endLine := centerLine + contextLines/2
	if endLine > len(lines) {
		endLine = len(lines)
	}

	var sb strings.Builder
	for i := startLine; i <= endLine; i++ {
		fmt.Fprintf(&sb, "%4d│ %s\n", i, lines[i-1])
	}
	return sb.String(), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
