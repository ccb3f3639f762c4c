package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dejo1307/gradlefacts/internal/config"
	"github.com/dejo1307/gradlefacts/internal/engine"
	"github.com/dejo1307/gradlefacts/internal/extractors/conventionextractor"
	"github.com/dejo1307/gradlefacts/internal/extractors/gradleextractor"
	"github.com/dejo1307/gradlefacts/internal/renderers/jsonl"
)

func TestReadSourceWindow(t *testing.T) {
	// Create a 10-line temp file
	dir := t.TempDir()
	path := filepath.Join(dir, "build.gradle")
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, "line "+string(rune('0'+i)))
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name         string
		centerLine   int
		contextLines int
		wantStart    int
		wantEnd      int
	}{
		{"center middle", 5, 6, 2, 8},
		{"center at start", 1, 10, 1, 6},
		{"center at end", 10, 10, 5, 10},
		{"context larger than file", 5, 20, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readSourceWindow(path, tt.centerLine, tt.contextLines)
			if err != nil {
				t.Fatalf("readSourceWindow: %v", err)
			}

			outputLines := strings.Split(strings.TrimRight(got, "\n"), "\n")
			if !strings.Contains(outputLines[0], "│") {
				t.Fatalf("expected line number format with │, got: %s", outputLines[0])
			}

			expectedCount := tt.wantEnd - tt.wantStart + 1
			if len(outputLines) != expectedCount {
				t.Errorf("got %d output lines, want %d (lines %d-%d)",
					len(outputLines), expectedCount, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestReadSourceWindow_SingleLineFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.gradle")
	if err := os.WriteFile(path, []byte("rootProject.name = 'x'"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readSourceWindow(path, 1, 30)
	if err != nil {
		t.Fatalf("readSourceWindow: %v", err)
	}
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 line for single-line file, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "rootProject.name") {
		t.Errorf("unexpected output: %s", lines[0])
	}
}

// --- test helpers ---

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"settings.gradle.kts": "rootProject.name = \"demo\"\n",
		"build.gradle.kts": `plugins {
    id("org.springframework.boot") version "3.2.0" apply false
}
`,
		"api/build.gradle.kts": `plugins {
    id("org.springframework.boot")
}
`,
		"lib/build.gradle.kts": "plugins {\n    java\n}\n",
	}
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.Default()
	cfg.Repo = root
	eng, err := engine.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	eng.RegisterExtractor(gradleextractor.New())
	eng.RegisterExtractor(conventionextractor.New())
	eng.RegisterRenderer(jsonl.New())

	s, err := New(eng, cfg, "test")
	if err != nil {
		t.Fatal(err)
	}
	return s, root
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(r.Content))
	}
	tc, ok := r.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *mcp.TextContent", r.Content[0])
	}
	return tc.Text
}

// --- tool tests ---

func TestTools_BeforeScan(t *testing.T) {
	s, _ := newTestServer(t)

	if r := s.query(queryFactsArgs{}); !r.IsError {
		t.Error("query before scan should fail")
	}
	if r := s.explain(explainArgs{Scope: ":api"}); !r.IsError {
		t.Error("explain before scan should fail")
	}
}

func TestScan(t *testing.T) {
	s, root := newTestServer(t)

	r := s.scan(context.Background(), scanArgs{})
	text := resultText(t, r)
	if r.IsError {
		t.Fatalf("scan failed: %s", text)
	}
	if !strings.Contains(text, "- Scopes: 3") {
		t.Errorf("summary missing scope count:\n%s", text)
	}
	if !strings.Contains(text, "- Records: 3 (1 present)") {
		t.Errorf("summary missing record count:\n%s", text)
	}
	if _, err := os.Stat(filepath.Join(root, ".gradlefacts", "facts.jsonl")); err != nil {
		t.Errorf("artifacts not written: %v", err)
	}

	if r := s.scan(context.Background(), scanArgs{RootPath: t.TempDir()}); !r.IsError {
		t.Error("scanning an empty directory should fail")
	}
}

func TestQuery(t *testing.T) {
	s, _ := newTestServer(t)
	if r := s.scan(context.Background(), scanArgs{}); r.IsError {
		t.Fatal(resultText(t, r))
	}

	present := true
	tests := []struct {
		name   string
		args   queryFactsArgs
		total  int
		scopes []string
	}{
		{"all", queryFactsArgs{}, 3, []string{":", ":api", ":lib"}},
		{"present", queryFactsArgs{Present: &present}, 1, []string{":api"}},
		{"scope", queryFactsArgs{Scope: ":lib"}, 1, []string{":lib"}},
		{"paged", queryFactsArgs{Offset: 1, Limit: 1}, 3, []string{":api"}},
		{"no match", queryFactsArgs{Framework: "micronaut"}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := s.query(tt.args)
			text := resultText(t, r)
			if r.IsError {
				t.Fatal(text)
			}
			if i := strings.Index(text, "\n\n..."); i >= 0 {
				text = text[:i]
			}
			var got queryResult
			if err := json.Unmarshal([]byte(text), &got); err != nil {
				t.Fatalf("decoding %q: %v", text, err)
			}
			if got.Total != tt.total {
				t.Errorf("total = %d, want %d", got.Total, tt.total)
			}
			var scopes []string
			for _, rec := range got.Records {
				scopes = append(scopes, rec.Scope)
			}
			if strings.Join(scopes, ",") != strings.Join(tt.scopes, ",") {
				t.Errorf("scopes = %v, want %v", scopes, tt.scopes)
			}
		})
	}
}

func TestExplain(t *testing.T) {
	s, _ := newTestServer(t)
	if r := s.scan(context.Background(), scanArgs{}); r.IsError {
		t.Fatal(resultText(t, r))
	}

	r := s.explain(explainArgs{Scope: ":api", ShowSource: true})
	text := resultText(t, r)
	if r.IsError {
		t.Fatal(text)
	}
	for _, want := range []string{
		":api spring-boot: present=true version=literal(3.2.0) confidence=medium",
		"[:api] plugin org.springframework.boot at api/build.gradle.kts:2",
		`   2│     id("org.springframework.boot")`,
		"## Inherited context",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("explain output missing %q:\n%s", want, text)
		}
	}

	if r := s.explain(explainArgs{Scope: ":missing"}); !r.IsError {
		t.Error("unknown scope should fail")
	}
	if r := s.explain(explainArgs{Scope: ":api", Framework: "quarkus"}); !r.IsError {
		t.Error("unknown framework should fail")
	}
	if r := s.explain(explainArgs{}); !r.IsError {
		t.Error("missing scope should fail")
	}
}
