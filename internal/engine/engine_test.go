package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/gradlefacts/internal/config"
	"github.com/dejo1307/gradlefacts/internal/explainers/drift"
	"github.com/dejo1307/gradlefacts/internal/explainers/gaps"
	"github.com/dejo1307/gradlefacts/internal/extractors/conventionextractor"
	"github.com/dejo1307/gradlefacts/internal/extractors/gradleextractor"
	"github.com/dejo1307/gradlefacts/internal/facts"
	"github.com/dejo1307/gradlefacts/internal/project"
	"github.com/dejo1307/gradlefacts/internal/renderers/jsonl"
	"github.com/dejo1307/gradlefacts/internal/renderers/report"
)

// --- helpers ---

func newEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	eng, err := New(cfg)
	require.NoError(t, err)
	eng.RegisterExtractor(gradleextractor.New(cfg.CatalogAccessors...))
	eng.RegisterExtractor(conventionextractor.New())
	eng.RegisterExplainer(drift.New())
	eng.RegisterExplainer(gaps.New())
	eng.RegisterRenderer(jsonl.New())
	eng.RegisterRenderer(report.New(0))
	return eng
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func recordFor(t *testing.T, snap *facts.Snapshot, scope string) facts.Record {
	t.Helper()
	for _, r := range snap.Records {
		if r.Scope == scope {
			return r
		}
	}
	t.Fatalf("no record for scope %s", scope)
	return facts.Record{}
}

// multiModule is a build whose :api module applies a convention plugin
// from buildSrc and whose :web module pins its own version.
var multiModule = map[string]string{
	"settings.gradle.kts": `rootProject.name = "shop"
include(":api", ":web", ":lib")
`,
	"build.gradle.kts": `plugins {
    java
}
`,
	"api/build.gradle.kts": `plugins {
    id("spring-conventions")
}
`,
	"web/build.gradle.kts": `plugins {
    id("org.springframework.boot") version "3.1.5"
}
`,
	"lib/build.gradle.kts": `plugins {
    ` + "`java-library`" + `
}
`,
	"buildSrc/build.gradle.kts": `plugins {
    ` + "`kotlin-dsl`" + `
}
dependencies {
    implementation("org.springframework.boot:spring-boot-gradle-plugin:3.2.0")
}
`,
	"buildSrc/src/main/kotlin/spring-conventions.gradle.kts": `plugins {
    id("org.springframework.boot")
}
`,
	"build/tmp/build.gradle":     "this is ignored {",
	"api/src/test/build.gradle":  "also ignored {",
	"gradle/libs.versions.toml":  "[versions]\nboot = \"3.2.0\"\n",
	"docs/readme.md":             "# docs",
	"web/src/main/kotlin/App.kt": "class App",
}

// --- tests ---

func TestIsIgnored(t *testing.T) {
	tests := []struct {
		name     string
		relPath  string
		isDir    bool
		patterns []string
		want     bool
	}{
		{"git directory", ".git/HEAD", false, []string{".git/**"}, true},
		{"git dir itself", ".git", true, []string{".git/**"}, true},
		{"root build output", "build/tmp/x.gradle", false, []string{"**/build/**"}, true},
		{"module build dir", "api/build", true, []string{"**/build/**"}, true},
		{"build script kept", "api/build.gradle.kts", false, []string{"**/build/**"}, false},
		{"test sources", "api/src/test/kotlin/A.kt", false, []string{"**/src/test/**"}, true},
		{"output dir", ".gradlefacts/facts.jsonl", false, []string{".gradlefacts/**"}, true},
		{"normal source not ignored", "api/src/main/kotlin/A.kt", false, []string{".git/**"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Ignore = tt.patterns

			eng, _ := New(cfg)
			got := eng.isIgnored(tt.relPath, tt.isDir)
			if got != tt.want {
				t.Errorf("isIgnored(%q, isDir=%v) with patterns %v = %v, want %v",
					tt.relPath, tt.isDir, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	eng, _ := New(config.Default())
	tests := []struct {
		rel     string
		ok      bool
		role    project.Role
		module  string
		convDir string
		catalog bool
	}{
		{rel: "build.gradle", ok: true, role: project.BuildScript, module: ":"},
		{rel: "services/orders/build.gradle.kts", ok: true, role: project.BuildScript, module: ":services:orders"},
		{rel: "settings.gradle.kts", ok: true, role: project.Settings, module: ":"},
		{rel: "api/settings.gradle", ok: false},
		{rel: "api/gradle.properties", ok: true, role: project.Properties, module: ":api"},
		{rel: "gradle/libs.versions.toml", ok: true, catalog: true},
		{rel: "gradle/wrapper/gradle-wrapper.properties", ok: false},
		{rel: "buildSrc/build.gradle.kts", ok: true, role: project.ConventionBuild, module: ":", convDir: "buildSrc"},
		{rel: "buildSrc/src/main/kotlin/boot.gradle.kts", ok: true, role: project.ConventionScript, module: ":", convDir: "buildSrc"},
		{rel: "build-logic/conventions/src/main/java/acme/Boot.java", ok: true, role: project.ConventionClass, module: ":", convDir: "build-logic"},
		{rel: "buildSrc/src/main/resources/META-INF/gradle-plugins/acme.boot.properties", ok: true, role: project.ConventionDescriptor, module: ":", convDir: "buildSrc"},
		{rel: "buildSrc/README.md", ok: false},
		{rel: "api/src/main/kotlin/App.kt", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, ok := eng.classify(tt.rel)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.catalog, got.catalog)
			if tt.catalog {
				return
			}
			assert.Equal(t, tt.role, got.role)
			assert.Equal(t, tt.module, got.module)
			assert.Equal(t, tt.convDir, got.convDir)
		})
	}
}

func TestDiscover(t *testing.T) {
	root := writeTree(t, multiModule)
	eng := newEngine(t)

	in, err := eng.Discover(context.Background(), root)
	require.NoError(t, err)

	var paths []string
	for _, s := range in.Scripts {
		paths = append(paths, s.Path)
	}
	assert.Equal(t, []string{
		"api/build.gradle.kts",
		"build.gradle.kts",
		"buildSrc/build.gradle.kts",
		"buildSrc/src/main/kotlin/spring-conventions.gradle.kts",
		"lib/build.gradle.kts",
		"settings.gradle.kts",
		"web/build.gradle.kts",
	}, paths)
	require.Len(t, in.Catalogs, 1)
	assert.Equal(t, "libs", in.Catalogs[0].Name)
	assert.Equal(t, ":api", in.Scripts[0].ModulePath)
	assert.Contains(t, in.Scripts[0].Text, "spring-conventions")
	assert.Equal(t, "buildSrc", in.Scripts[3].ConventionRoot)
}

func TestGenerateSnapshot(t *testing.T) {
	root := writeTree(t, multiModule)
	eng := newEngine(t)

	snap, err := eng.GenerateSnapshot(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.Meta.ScopeCount)
	assert.Len(t, snap.Records, 4)
	assert.NotEmpty(t, snap.Meta.RunID)
	assert.Equal(t, []string{"spring-boot"}, snap.Meta.Frameworks)
	assert.Equal(t, []string{"jsonl", "report"}, snap.Meta.Renderers)

	api := recordFor(t, snap, ":api")
	assert.True(t, api.Present)
	assert.Equal(t, facts.Literal("3.2.0"), api.Version)
	assert.Equal(t, "medium", api.Confidence)

	web := recordFor(t, snap, ":web")
	assert.True(t, web.Present)
	assert.Equal(t, facts.Literal("3.1.5"), web.Version)
	assert.Equal(t, "high", web.Confidence)

	lib := recordFor(t, snap, ":lib")
	assert.False(t, lib.Present)
	assert.Equal(t, facts.Unknown(), lib.Version)

	require.NotEmpty(t, snap.Insights)
	assert.Equal(t, "Version drift: spring-boot (2 versions)", snap.Insights[0].Title)

	require.NoError(t, eng.WriteArtifacts(root))
	for _, name := range []string{"facts.jsonl", "report.md", "insights.json", "snapshot.meta.json"} {
		_, err := os.Stat(filepath.Join(root, ".gradlefacts", name))
		assert.NoError(t, err, name)
	}

	data, err := eng.GetArtifact("facts.jsonl")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scope":":api"`)
	_, err = eng.GetArtifact("missing.md")
	assert.Error(t, err)
}

func TestGenerateSnapshot_Idempotent(t *testing.T) {
	root := writeTree(t, multiModule)
	eng := newEngine(t)

	first, err := eng.GenerateSnapshot(context.Background(), root)
	require.NoError(t, err)
	cached := eng.cache.Len()
	assert.Positive(t, cached)

	second, err := eng.GenerateSnapshot(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, cached, eng.cache.Len(), "unchanged files are served from the cache")
	assert.NotEqual(t, first.Meta.RunID, second.Meta.RunID)
}

func TestGenerateSnapshot_ParseErrorIsNotFatal(t *testing.T) {
	root := writeTree(t, map[string]string{
		"settings.gradle":  "include ':api', ':web'\n",
		"build.gradle":     "",
		"api/build.gradle": "plugins {\n    id 'org.springframework.boot' version '3.2.0'\n",
		"web/build.gradle": "plugins {\n    id 'org.springframework.boot' version '3.2.0'\n}\n",
	})
	eng := newEngine(t)

	snap, err := eng.GenerateSnapshot(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, snap.Meta.Faults, 1)

	api := recordFor(t, snap, ":api")
	assert.False(t, api.Present)
	web := recordFor(t, snap, ":web")
	assert.True(t, web.Present)
	assert.Equal(t, "high", web.Confidence)
}

func TestGenerateSnapshot_Orphan(t *testing.T) {
	root := writeTree(t, map[string]string{
		"api/build.gradle": "plugins { id 'java' }\n",
		"web/build.gradle": "plugins { id 'java' }\n",
	})
	eng := newEngine(t)

	_, err := eng.GenerateSnapshot(context.Background(), root)
	var orphan *project.OrphanModuleError
	require.True(t, errors.As(err, &orphan), "got %v", err)
	assert.Equal(t, ":api", orphan.Module)
}

func TestGenerateSnapshot_NoBuildScripts(t *testing.T) {
	root := writeTree(t, map[string]string{
		"README.md":         "hi",
		"gradle.properties": "springBootVersion=3.2.0\n",
	})
	eng := newEngine(t)

	_, err := eng.GenerateSnapshot(context.Background(), root)
	assert.ErrorIs(t, err, ErrNoBuildScripts)
}

func TestGenerateFromInput(t *testing.T) {
	eng := newEngine(t)
	snap, err := eng.GenerateFromInput(context.Background(), "memory", Input{
		Scripts: []ScriptSource{{
			Path:       "build.gradle.kts",
			ModulePath: ":",
			Role:       project.BuildScript,
			Text:       "plugins {\n    alias(libs.plugins.spring.boot)\n}\n",
		}},
	})
	require.NoError(t, err)
	root := recordFor(t, snap, ":")
	assert.True(t, root.Present)
	assert.Equal(t, facts.UnresolvedCatalogAlias("libs.plugins.spring.boot"), root.Version)
	assert.Equal(t, "low", root.Confidence)
	require.NotNil(t, eng.Result())
	assert.Equal(t, 1, len(eng.Result().Tree.Scopes))
}

func TestGenerateSnapshot_Cancelled(t *testing.T) {
	root := writeTree(t, multiModule)
	eng := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.GenerateSnapshot(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestGenerateSnapshot_ConcurrentCallsSerialized verifies that concurrent
// scans do not corrupt shared engine state.
func TestGenerateSnapshot_ConcurrentCallsSerialized(t *testing.T) {
	root := writeTree(t, multiModule)
	eng := newEngine(t)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = eng.GenerateSnapshot(context.Background(), root)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "goroutine %d", i)
	}
	assert.Equal(t, 4, eng.Store().Count())
}
