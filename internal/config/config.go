package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dejo1307/gradlefacts/internal/resolve"
)

// FileName is the configuration file looked up in the scanned root.
const FileName = "gradlefacts.yaml"

// Config represents the gradlefacts.yaml configuration.
type Config struct {
	Repo   string   `yaml:"repo"`
	Ignore []string `yaml:"ignore"`
	// Frameworks replaces the built-in Spring Boot table when set.
	Frameworks []resolve.Framework `yaml:"frameworks"`
	// ConventionRoots are directories holding convention builds.
	ConventionRoots []string `yaml:"convention_roots"`
	// CatalogDir holds <name>.versions.toml files.
	CatalogDir       string       `yaml:"catalog_dir"`
	CatalogAccessors []string     `yaml:"catalog_accessors"`
	Workers          int          `yaml:"workers"`
	CacheSize        int          `yaml:"cache_size"`
	Explainers       []string     `yaml:"explainers"`
	Renderers        []string     `yaml:"renderers"`
	Output           OutputConfig `yaml:"output"`
	Trace            bool         `yaml:"trace"`
}

// OutputConfig controls where and how output artifacts are generated.
type OutputConfig struct {
	Dir string `yaml:"dir"`
	// Format is "jsonl" or "text" for scan output on stdout.
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Repo: ".",
		Ignore: []string{
			".git/**",
			".gradle/**",
			".idea/**",
			"**/build/**",
			"**/out/**",
			"**/node_modules/**",
			"**/src/test/**",
			".gradlefacts/**",
		},
		Frameworks:       []resolve.Framework{resolve.SpringBoot},
		ConventionRoots:  []string{"buildSrc", "build-logic"},
		CatalogDir:       "gradle",
		CatalogAccessors: []string{"libs"},
		Workers:          4,
		CacheSize:        512,
		Explainers:       []string{"drift", "gaps"},
		Renderers:        []string{"jsonl", "report"},
		Output: OutputConfig{
			Dir:    ".gradlefacts",
			Format: "jsonl",
		},
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	// Ensure required defaults
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = ".gradlefacts"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "jsonl"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}
	if len(cfg.Frameworks) == 0 {
		cfg.Frameworks = []resolve.Framework{resolve.SpringBoot}
	}
	if len(cfg.CatalogAccessors) == 0 {
		cfg.CatalogAccessors = []string{"libs"}
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate reports framework tables that cannot identify anything.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, fw := range c.Frameworks {
		if fw.ID == "" {
			return fmt.Errorf("frameworks[%d]: missing id", i)
		}
		if seen[fw.ID] {
			return fmt.Errorf("frameworks[%d]: duplicate id %q", i, fw.ID)
		}
		seen[fw.ID] = true
		if len(fw.PluginIDs) == 0 && len(fw.PluginClasses) == 0 {
			return fmt.Errorf("framework %s: needs plugin_ids or plugin_classes", fw.ID)
		}
	}
	switch c.Output.Format {
	case "", "jsonl", "text":
	default:
		return fmt.Errorf("output.format %q: want jsonl or text", c.Output.Format)
	}
	return nil
}

// IsExplainerEnabled returns true if the named explainer is enabled.
func (c *Config) IsExplainerEnabled(name string) bool {
	return contains(c.Explainers, name)
}

// IsRendererEnabled returns true if the named renderer is enabled.
func (c *Config) IsRendererEnabled(name string) bool {
	return contains(c.Renderers, name)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
