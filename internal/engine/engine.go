package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dejo1307/gradlefacts/internal/catalog"
	"github.com/dejo1307/gradlefacts/internal/config"
	"github.com/dejo1307/gradlefacts/internal/explainers"
	"github.com/dejo1307/gradlefacts/internal/extractors"
	"github.com/dejo1307/gradlefacts/internal/facts"
	"github.com/dejo1307/gradlefacts/internal/observability"
	"github.com/dejo1307/gradlefacts/internal/project"
	"github.com/dejo1307/gradlefacts/internal/renderers"
	"github.com/dejo1307/gradlefacts/internal/resolve"
)

// ErrNoBuildScripts is returned when the input holds nothing to scan.
var ErrNoBuildScripts = errors.New("no gradle build scripts found")

// Result is one analysis of an Input.
type Result struct {
	Tree     *project.Tree
	Resolver *resolve.Resolver
	Facts    []facts.Fact
	Files    []project.File
}

// Faults returns the recovered file faults, in file order.
func (r *Result) Faults() []string {
	var out []string
	for _, f := range r.Files {
		for _, err := range f.Faults {
			out = append(out, err.Error())
		}
	}
	return out
}

// Engine orchestrates the scan pipeline.
type Engine struct {
	mu         sync.Mutex
	cfg        *config.Config
	extractors *extractors.Registry
	explainers *explainers.Registry
	renderers  *renderers.Registry
	store      *facts.Store
	snapshot   *facts.Snapshot
	result     *Result
	// cache holds interpreted files keyed by a hash of role, path and text.
	cache *lru.Cache[string, project.File]
}

// New creates a new Engine with the given config.
// Extractors, explainers, and renderers must be registered after creation.
func New(cfg *config.Config) (*Engine, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, project.File](size)
	if err != nil {
		return nil, fmt.Errorf("creating parse cache: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Engine{
		cfg:        cfg,
		extractors: extractors.NewRegistry(),
		explainers: explainers.NewRegistry(),
		renderers:  renderers.NewRegistry(),
		store:      facts.NewStore(),
		cache:      cache,
	}, nil
}

// RegisterExtractor adds an extractor to the engine.
func (e *Engine) RegisterExtractor(ext extractors.Extractor) {
	e.extractors.Register(ext)
}

// RegisterExplainer adds an explainer to the engine.
func (e *Engine) RegisterExplainer(exp explainers.Explainer) {
	e.explainers.Register(exp)
}

// RegisterRenderer adds a renderer to the engine.
func (e *Engine) RegisterRenderer(rnd renderers.Renderer) {
	e.renderers.Register(rnd)
}

// Store returns the record store.
func (e *Engine) Store() *facts.Store {
	return e.store
}

// Snapshot returns the last generated snapshot, or nil.
func (e *Engine) Snapshot() *facts.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Result returns the last analysis, or nil.
func (e *Engine) Result() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Config returns the engine config.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Analyze runs extract -> bind -> build -> resolve over in. A file that
// cannot be parsed is a fault on its scope; an orphan module fails the run.
func (e *Engine) Analyze(ctx context.Context, in Input) (*Result, error) {
	scripts := make([]ScriptSource, 0, len(in.Scripts))
	scoped := false
	for _, s := range in.Scripts {
		if e.extractors.For(s) == nil {
			log.Printf("[engine] no extractor for %s (%s)", s.Path, s.Role)
			continue
		}
		scripts = append(scripts, s)
		if s.Role != project.Properties {
			scoped = true
		}
	}
	if !scoped {
		return nil, ErrNoBuildScripts
	}
	sort.SliceStable(scripts, func(i, j int) bool { return scripts[i].Path < scripts[j].Path })

	catalogs := catalog.NewResolver(in.Catalogs...)

	xctx, span := observability.StartPhaseSpan(ctx, "extract")
	files, err := e.extract(xctx, scripts, catalogs)
	observability.RecordCount(span, "files", len(files))
	observability.RecordError(span, err)
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = observability.StartPhaseSpan(ctx, "build")
	tree, err := project.Build(files)
	observability.RecordError(span, err)
	span.End()
	if err != nil {
		if errors.Is(err, project.ErrNoScopes) {
			return nil, ErrNoBuildScripts
		}
		return nil, fmt.Errorf("building project tree: %w", err)
	}
	log.Printf("[engine] %d scopes, %d convention plugins", len(tree.Scopes), len(tree.Conventions))

	rctx, span := observability.StartPhaseSpan(ctx, "resolve")
	r := resolve.New(tree, catalogs,
		resolve.WithFrameworks(e.cfg.Frameworks...),
		resolve.WithWorkers(e.cfg.Workers))
	ff, err := r.Resolve(rctx)
	observability.RecordCount(span, "facts", len(ff))
	observability.RecordError(span, err)
	span.End()
	if err != nil {
		return nil, err
	}

	return &Result{Tree: tree, Resolver: r, Facts: ff, Files: files}, nil
}

// extract interprets every script concurrently. Results keep input order.
func (e *Engine) extract(ctx context.Context, scripts []ScriptSource, catalogs *catalog.Resolver) ([]project.File, error) {
	files := make([]project.File, len(scripts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, src := range scripts {
		g.Go(func() error {
			key := cacheKey(src)
			f, ok := e.cache.Get(key)
			if !ok {
				var err error
				f, err = e.extractors.For(src).Extract(gctx, src)
				if err != nil {
					return err
				}
				e.cache.Add(key, f)
			}
			f.Declarations = catalogs.Bind(f.Declarations, project.PathChain(src.ModulePath))
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func cacheKey(src ScriptSource) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%s\x00%s\x00%s\x00", src.Role, src.Path, src.ModulePath, src.ConventionRoot)
	h.Write([]byte(src.Text))
	return hex.EncodeToString(h.Sum(nil))
}

func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// GenerateSnapshot runs the full pipeline: discover -> analyze -> explain -> render.
func (e *Engine) GenerateSnapshot(ctx context.Context, repoPath string) (*facts.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	if repoPath == "" {
		repoPath = e.cfg.Repo
	}
	absRepo, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}

	dctx, span := observability.StartPhaseSpan(ctx, "discover")
	in, err := e.Discover(dctx, absRepo)
	observability.RecordCount(span, "scripts", len(in.Scripts))
	observability.RecordError(span, err)
	span.End()
	if err != nil {
		return nil, err
	}
	log.Printf("[engine] found %d scripts and %d catalogs in %s", len(in.Scripts), len(in.Catalogs), absRepo)

	snap, err := e.snapshotFor(ctx, absRepo, in)
	if err != nil {
		return nil, err
	}
	snap.Meta.Duration = time.Since(start).String()
	log.Printf("[engine] snapshot generated in %s", snap.Meta.Duration)
	return snap, nil
}

// GenerateFromInput runs analyze -> explain -> render over caller-provided input.
func (e *Engine) GenerateFromInput(ctx context.Context, rootLabel string, in Input) (*facts.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	snap, err := e.snapshotFor(ctx, rootLabel, in)
	if err != nil {
		return nil, err
	}
	snap.Meta.Duration = time.Since(start).String()
	return snap, nil
}

func (e *Engine) snapshotFor(ctx context.Context, root string, in Input) (*facts.Snapshot, error) {
	res, err := e.Analyze(ctx, in)
	if err != nil {
		return nil, err
	}

	e.store.Clear()
	records := facts.EncodeAll(res.Facts)
	e.store.Add(records...)
	log.Printf("[engine] resolved %d records over %d scopes", len(records), len(res.Tree.Scopes))

	xctx, span := observability.StartPhaseSpan(ctx, "explain")
	insights, usedExplainers := e.runExplainers(xctx)
	observability.RecordCount(span, "insights", len(insights))
	span.End()

	var hashes []facts.FileHash
	for _, s := range in.Scripts {
		hashes = append(hashes, facts.FileHash{Path: s.Path, Hash: contentHash(s.Text)})
	}
	var frameworks []string
	for _, fw := range res.Resolver.Frameworks() {
		frameworks = append(frameworks, fw.ID)
	}

	snap := &facts.Snapshot{
		Meta: facts.SnapshotMeta{
			RunID:        uuid.NewString(),
			RootPath:     root,
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
			Frameworks:   frameworks,
			Explainers:   usedExplainers,
			Renderers:    []string{},
			FileHashes:   hashes,
			ScopeCount:   len(res.Tree.Scopes),
			RecordCount:  len(records),
			InsightCount: len(insights),
			Faults:       res.Faults(),
		},
		Records:  records,
		Facts:    res.Facts,
		Insights: insights,
	}

	rctx, span := observability.StartPhaseSpan(ctx, "render")
	snap.Meta.Renderers = e.runRenderers(rctx, snap)
	observability.RecordCount(span, "artifacts", len(snap.Artifacts))
	span.End()

	e.snapshot = snap
	e.result = res
	return snap, nil
}

// runExplainers runs all enabled explainers. A failing explainer is logged
// and skipped.
func (e *Engine) runExplainers(ctx context.Context) ([]facts.Insight, []string) {
	var allInsights []facts.Insight
	var usedNames []string

	for _, exp := range e.explainers.Enabled(e.cfg.IsExplainerEnabled) {
		insights, err := exp.Explain(ctx, e.store)
		if err != nil {
			log.Printf("[engine] explainer %s error: %v", exp.Name(), err)
			continue
		}
		allInsights = append(allInsights, insights...)
		usedNames = append(usedNames, exp.Name())
		log.Printf("[engine] explainer %s: produced %d insights", exp.Name(), len(insights))
	}
	return allInsights, usedNames
}

// runRenderers runs all enabled renderers.
func (e *Engine) runRenderers(ctx context.Context, snapshot *facts.Snapshot) []string {
	usedNames := []string{}
	for _, rnd := range e.renderers.Enabled(e.cfg.IsRendererEnabled) {
		artifacts, err := rnd.Render(ctx, snapshot)
		if err != nil {
			log.Printf("[engine] renderer %s error: %v", rnd.Name(), err)
			continue
		}
		snapshot.Artifacts = append(snapshot.Artifacts, artifacts...)
		usedNames = append(usedNames, rnd.Name())
	}
	return usedNames
}

// WriteArtifacts writes all snapshot artifacts to the output directory,
// plus insights.json and snapshot.meta.json.
func (e *Engine) WriteArtifacts(repoPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		return fmt.Errorf("no snapshot generated")
	}

	outDir := filepath.Join(repoPath, e.cfg.Output.Dir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	for _, a := range e.snapshot.Artifacts {
		path := filepath.Join(outDir, a.Name)
		if err := os.WriteFile(path, a.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", a.Name, err)
		}
		log.Printf("[engine] wrote %s (%d bytes)", path, len(a.Content))
	}

	insightsJSON, err := json.MarshalIndent(e.snapshot.Insights, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling insights: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "insights.json"), insightsJSON, 0o644); err != nil {
		return fmt.Errorf("writing insights.json: %w", err)
	}

	metaJSON, err := json.MarshalIndent(e.snapshot.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "snapshot.meta.json"), metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing snapshot.meta.json: %w", err)
	}
	return nil
}

// GetArtifact returns the content of a named artifact, or the generated JSONL/JSON files.
func (e *Engine) GetArtifact(name string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		return nil, fmt.Errorf("no snapshot generated")
	}

	switch name {
	case "facts.jsonl":
		var buf bytes.Buffer
		if err := e.store.WriteJSONL(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "insights.json":
		return json.MarshalIndent(e.snapshot.Insights, "", "  ")
	case "snapshot.meta.json":
		return json.MarshalIndent(e.snapshot.Meta, "", "  ")
	default:
		for _, a := range e.snapshot.Artifacts {
			if a.Name == name {
				return a.Content, nil
			}
		}
		return nil, fmt.Errorf("artifact %q not found", name)
	}
}
