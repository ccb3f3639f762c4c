package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dejo1307/gradlefacts/internal/facts"
	"github.com/dejo1307/gradlefacts/internal/renderers/text"
)

// ReportRenderer produces a markdown summary of a scan.
type ReportRenderer struct {
	maxChars int
}

// New creates a new ReportRenderer. maxChars bounds the report size; zero
// means 64000.
func New(maxChars int) *ReportRenderer {
	if maxChars <= 0 {
		maxChars = 64000
	}
	return &ReportRenderer{maxChars: maxChars}
}

func (r *ReportRenderer) Name() string {
	return "report"
}

// section holds a rendered section with its display name.
type section struct {
	name    string
	content string
}

// Render produces report.md. Sections are ordered by priority; lower
// priority sections are omitted first when the size budget is tight.
func (r *ReportRenderer) Render(ctx context.Context, snapshot *facts.Snapshot) ([]facts.Artifact, error) {
	sections := []section{
		{"Summary", r.renderSummary(snapshot)},
		{"Scopes", r.renderScopes(snapshot)},
		{"Insights", r.renderInsights(snapshot)},
		{"Dependencies", r.renderDependencies(snapshot)},
		{"Evidence", r.renderEvidence(snapshot)},
		{"Meta", r.renderMeta(snapshot)},
	}

	header := "# Gradle Framework Facts\n\n"
	remaining := r.maxChars - len(header)

	var sb strings.Builder
	sb.WriteString(header)

	for i, sec := range sections {
		if sec.content == "" {
			continue
		}
		if len(sec.content) <= remaining {
			sb.WriteString(sec.content)
			remaining -= len(sec.content)
			continue
		}
		if remaining > 200 {
			cut := strings.LastIndexByte(sec.content[:remaining-100], '\n')
			if cut < 0 {
				cut = remaining - 100
			}
			sb.WriteString(sec.content[:cut])
			fmt.Fprintf(&sb, "\n\n---\n*[Truncated in: %s]*\n", sec.name)
			break
		}
		var omitted []string
		for _, s := range sections[i:] {
			if s.content != "" {
				omitted = append(omitted, s.name)
			}
		}
		fmt.Fprintf(&sb, "\n\n---\n*[Omitted: %s]*\n", strings.Join(omitted, ", "))
		break
	}

	return []facts.Artifact{{
		Name:    "report.md",
		Content: []byte(sb.String()),
		Type:    "text/markdown",
	}}, nil
}

func (r *ReportRenderer) renderSummary(snapshot *facts.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("## Summary\n\n")
	if len(snapshot.Records) == 0 {
		sb.WriteString("_No scopes resolved._\n\n")
		return sb.String()
	}

	type tally struct{ present, high, medium, low int }
	byFramework := make(map[string]*tally)
	var order []string
	for _, rec := range snapshot.Records {
		t := byFramework[rec.Framework]
		if t == nil {
			t = &tally{}
			byFramework[rec.Framework] = t
			order = append(order, rec.Framework)
		}
		if !rec.Present {
			continue
		}
		t.present++
		switch rec.Confidence {
		case "high":
			t.high++
		case "medium":
			t.medium++
		default:
			t.low++
		}
	}
	fmt.Fprintf(&sb, "%d scopes scanned.\n\n", snapshot.Meta.ScopeCount)
	for _, fw := range order {
		t := byFramework[fw]
		fmt.Fprintf(&sb, "- **%s**: present in %d scope(s) (high %d, medium %d, low %d)\n", fw, t.present, t.high, t.medium, t.low)
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *ReportRenderer) renderScopes(snapshot *facts.Snapshot) string {
	if len(snapshot.Records) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Scopes\n\n")
	sb.WriteString("| Scope | Framework | Present | Version | Confidence | Toolchain |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, rec := range snapshot.Records {
		present := "no"
		if rec.Present {
			present = "yes"
		}
		toolchain := rec.Toolchain
		if toolchain == "" {
			toolchain = "-"
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %s | %s |\n",
			rec.Scope, rec.Framework, present, text.Version(rec.Version), rec.Confidence, toolchain)
	}
	sb.WriteString("\n")
	return sb.String()
}

func (r *ReportRenderer) renderInsights(snapshot *facts.Snapshot) string {
	if len(snapshot.Insights) == 0 {
		return ""
	}
	insights := make([]facts.Insight, len(snapshot.Insights))
	copy(insights, snapshot.Insights)
	sort.SliceStable(insights, func(i, j int) bool { return insights[i].Confidence > insights[j].Confidence })

	var sb strings.Builder
	sb.WriteString("## Insights\n\n")
	for _, in := range insights {
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n", in.Title, in.Description)
		for _, ev := range in.Evidence {
			fmt.Fprintf(&sb, "- `%s` %s\n", ev.Scope, ev.Detail)
		}
		for _, a := range in.Actions {
			fmt.Fprintf(&sb, "- _Action:_ %s\n", a)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *ReportRenderer) renderDependencies(snapshot *facts.Snapshot) string {
	var sb strings.Builder
	for _, rec := range snapshot.Records {
		if len(rec.Dependencies) == 0 {
			continue
		}
		if sb.Len() == 0 {
			sb.WriteString("## Dependencies\n\n")
		}
		fmt.Fprintf(&sb, "**%s** (%s)\n\n", rec.Scope, rec.Framework)
		for _, d := range rec.Dependencies {
			fmt.Fprintf(&sb, "- `%s` %s %s\n", d.Coordinate, d.Configuration, text.Version(d.Version))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *ReportRenderer) renderEvidence(snapshot *facts.Snapshot) string {
	var sb strings.Builder
	for _, rec := range snapshot.Records {
		if !rec.Present {
			continue
		}
		if sb.Len() == 0 {
			sb.WriteString("## Evidence\n\n")
		}
		fmt.Fprintf(&sb, "**%s** (%s)\n\n", rec.Scope, rec.Framework)
		for _, ev := range rec.Evidence {
			fmt.Fprintf(&sb, "- %s `%s`: %s\n", ev.Kind, ev.Scope, ev.Detail)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r *ReportRenderer) renderMeta(snapshot *facts.Snapshot) string {
	m := snapshot.Meta
	var sb strings.Builder
	sb.WriteString("## Meta\n\n")
	fmt.Fprintf(&sb, "- Run: `%s`\n", m.RunID)
	fmt.Fprintf(&sb, "- Root: `%s`\n", m.RootPath)
	fmt.Fprintf(&sb, "- Generated: %s\n", m.GeneratedAt)
	fmt.Fprintf(&sb, "- Files: %d\n", len(m.FileHashes))
	if len(m.Faults) > 0 {
		fmt.Fprintf(&sb, "- Faults: %d\n", len(m.Faults))
	}
	return sb.String()
}
