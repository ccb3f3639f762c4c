package report

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/gradlefacts/internal/facts"
)

func sampleSnapshot() *facts.Snapshot {
	return &facts.Snapshot{
		Meta: facts.SnapshotMeta{RunID: "run-1", RootPath: "/repo", ScopeCount: 2},
		Records: []facts.Record{
			{Scope: ":", Framework: "spring-boot", Version: facts.Unknown(), Confidence: "medium"},
			{Scope: ":api", Framework: "spring-boot", Present: true, Version: facts.Literal("3.2.0"), Confidence: "high",
				Toolchain: "17",
				Evidence:  []facts.RecordEvidence{{Scope: ":api", Kind: "plugin", Detail: "org.springframework.boot 3.2.0"}},
				Dependencies: []facts.RecordDependency{{
					Coordinate: "org.springframework.boot:spring-boot-starter-web", Configuration: "implementation",
					Version: facts.ManagedByCompanionPlugin(),
				}}},
		},
		Insights: []facts.Insight{{Title: "Version drift: spring-boot (2 versions)", Description: "d", Confidence: 1}},
	}
}

func TestRender(t *testing.T) {
	arts, err := New(0).Render(context.Background(), sampleSnapshot())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "report.md", arts[0].Name)

	out := string(arts[0].Content)
	assert.Contains(t, out, "- **spring-boot**: present in 1 scope(s) (high 1, medium 0, low 0)")
	assert.Contains(t, out, "| `:api` | spring-boot | yes | 3.2.0 | high | 17 |")
	assert.Contains(t, out, "### Version drift: spring-boot (2 versions)")
	assert.Contains(t, out, "`org.springframework.boot:spring-boot-starter-web` implementation managed")
	assert.Contains(t, out, "- plugin `:api`: org.springframework.boot 3.2.0")
	assert.Contains(t, out, "- Run: `run-1`")
}

func TestRender_Budget(t *testing.T) {
	arts, err := New(300).Render(context.Background(), sampleSnapshot())
	require.NoError(t, err)
	out := string(arts[0].Content)
	assert.LessOrEqual(t, len(out), 400)
	assert.True(t, strings.Contains(out, "*[Truncated in:") || strings.Contains(out, "*[Omitted:"), out)
	assert.Contains(t, out, "## Summary")
}

func TestRender_Empty(t *testing.T) {
	arts, err := New(0).Render(context.Background(), &facts.Snapshot{})
	require.NoError(t, err)
	assert.Contains(t, string(arts[0].Content), "_No scopes resolved._")
}
