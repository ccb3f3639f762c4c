package engine

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dejo1307/gradlefacts/internal/catalog"
	"github.com/dejo1307/gradlefacts/internal/extractors"
	"github.com/dejo1307/gradlefacts/internal/project"
)

// ScriptSource is one build-configuration input.
type ScriptSource = extractors.Source

// Input is everything a scan reads: script sources and parsed catalogs.
// Callers that do their own discovery can build it directly.
type Input struct {
	Scripts  []ScriptSource
	Catalogs []catalog.Table
}

type discovered struct {
	rel     string
	role    project.Role
	module  string
	convDir string
	catalog bool
}

// Discover walks root and eagerly reads every Gradle input it finds.
func (e *Engine) Discover(ctx context.Context, root string) (Input, error) {
	var found []discovered
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if e.isIgnored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if f, ok := e.classify(rel); ok {
			found = append(found, f)
		}
		return nil
	})
	if err != nil {
		return Input{}, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].rel < found[j].rel })

	texts := make([]string, len(found))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, f := range found {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := readFile(filepath.Join(root, filepath.FromSlash(f.rel)))
			if err != nil {
				return err
			}
			texts[i] = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Input{}, err
	}

	var in Input
	for i, f := range found {
		if f.catalog {
			t, err := catalog.LoadTOML(catalog.NameFromFile(f.rel), ":", f.rel, []byte(texts[i]))
			if err != nil {
				log.Printf("[engine] skipping catalog: %v", err)
				continue
			}
			in.Catalogs = append(in.Catalogs, t)
			continue
		}
		in.Scripts = append(in.Scripts, ScriptSource{
			Path:           f.rel,
			ModulePath:     f.module,
			Role:           f.role,
			ConventionRoot: f.convDir,
			Text:           texts[i],
		})
	}
	return in, nil
}

// readFile reads a whole file, reporting close errors too.
func readFile(p string) (data []byte, err error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))
	data, err = io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return data, nil
}

// isIgnored checks whether a path matches any ignore pattern. A directory
// is ignored when the files directly inside it would be.
func (e *Engine) isIgnored(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range e.cfg.Ignore {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
		if isDir {
			if ok, _ := doublestar.Match(pattern, relPath+"/x"); ok {
				return true
			}
		}
	}
	return false
}

func isBuildScript(base string) bool {
	return base == "build.gradle" || base == "build.gradle.kts"
}

func isSettingsScript(base string) bool {
	return base == "settings.gradle" || base == "settings.gradle.kts"
}

// classify assigns a role to a repository file, or reports it irrelevant.
func (e *Engine) classify(rel string) (discovered, bool) {
	base := path.Base(rel)
	dir := path.Dir(rel)
	if dir == "." {
		dir = ""
	}

	first, rest, nested := strings.Cut(rel, "/")
	for _, root := range e.cfg.ConventionRoots {
		if nested && first == root {
			return classifyConvention(rel, root, rest)
		}
	}

	switch {
	case isBuildScript(base):
		return discovered{rel: rel, role: project.BuildScript, module: project.ModulePath(dir)}, true
	case isSettingsScript(base) && dir == "":
		return discovered{rel: rel, role: project.Settings, module: ":"}, true
	case base == "gradle.properties":
		return discovered{rel: rel, role: project.Properties, module: project.ModulePath(dir)}, true
	case dir == e.cfg.CatalogDir && strings.HasSuffix(base, ".versions.toml"):
		return discovered{rel: rel, catalog: true}, true
	}
	return discovered{}, false
}

// classifyConvention places a file below a convention build directory.
// rest is the path inside root.
func classifyConvention(rel, root, rest string) (discovered, bool) {
	base := path.Base(rel)
	d := discovered{rel: rel, module: ":", convDir: root}
	switch {
	case isBuildScript(base):
		d.role = project.ConventionBuild
		return d, true
	case strings.Contains(rest, "src/main/resources/META-INF/gradle-plugins/") && strings.HasSuffix(base, ".properties"):
		d.role = project.ConventionDescriptor
		return d, true
	case !strings.Contains(rest, "src/main/"):
		return discovered{}, false
	case strings.HasSuffix(base, ".gradle.kts") || strings.HasSuffix(base, ".gradle"):
		d.role = project.ConventionScript
		return d, true
	case strings.HasSuffix(base, ".kt") || strings.HasSuffix(base, ".java") || strings.HasSuffix(base, ".groovy"):
		d.role = project.ConventionClass
		return d, true
	}
	return discovered{}, false
}
