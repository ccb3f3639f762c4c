package catalog

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/dejo1307/gradlefacts/internal/declare"
)

type tomlCatalog struct {
	Versions  map[string]any `toml:"versions"`
	Libraries map[string]any `toml:"libraries"`
	Plugins   map[string]any `toml:"plugins"`
	Bundles   map[string]any `toml:"bundles"`
}

// LoadTOML parses a Gradle version catalog. Bundles are not entries: an
// alias that names a bundle stays unresolved.
func LoadTOML(name, scope, source string, data []byte) (Table, error) {
	var raw tomlCatalog
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Table{}, fmt.Errorf("parsing catalog %s: %w", source, err)
	}

	t := Table{Name: name, Scope: scope, Source: source, Entries: make(map[string]Entry)}
	versions := make(map[string]string, len(raw.Versions))
	for k, v := range raw.Versions {
		ver := richVersion(v)
		versions[k] = ver
		versions[declare.NormalizeAlias(k)] = ver
		t.Entries["versions."+declare.NormalizeAlias(k)] = Entry{Version: ver}
	}

	for k, v := range raw.Libraries {
		e, err := library(v, versions)
		if err != nil {
			return Table{}, fmt.Errorf("%s: library %q: %w", source, k, err)
		}
		t.Entries[declare.NormalizeAlias(k)] = e
	}

	for k, v := range raw.Plugins {
		e, err := plugin(v, versions)
		if err != nil {
			return Table{}, fmt.Errorf("%s: plugin %q: %w", source, k, err)
		}
		t.Entries["plugins."+declare.NormalizeAlias(k)] = e
	}
	return t, nil
}

func library(v any, versions map[string]string) (Entry, error) {
	switch x := v.(type) {
	case string:
		parts := strings.Split(x, ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return Entry{}, fmt.Errorf("bad notation %q", x)
		}
		e := Entry{Group: parts[0], Artifact: parts[1]}
		if len(parts) > 2 {
			e.Version = parts[2]
		}
		return e, nil
	case map[string]any:
		var e Entry
		if m, ok := x["module"].(string); ok {
			g, a, ok := strings.Cut(m, ":")
			if !ok || g == "" || a == "" {
				return Entry{}, fmt.Errorf("bad module %q", m)
			}
			e.Group, e.Artifact = g, a
		} else {
			e.Group, _ = x["group"].(string)
			e.Artifact, _ = x["name"].(string)
		}
		if e.Group == "" || e.Artifact == "" {
			return Entry{}, fmt.Errorf("missing module or group/name")
		}
		e.Version = entryVersion(x["version"], versions)
		return e, nil
	}
	return Entry{}, fmt.Errorf("unsupported value %T", v)
}

func plugin(v any, versions map[string]string) (Entry, error) {
	switch x := v.(type) {
	case string:
		id, ver, _ := strings.Cut(x, ":")
		if id == "" {
			return Entry{}, fmt.Errorf("bad notation %q", x)
		}
		return Entry{PluginID: id, Version: ver}, nil
	case map[string]any:
		id, _ := x["id"].(string)
		if id == "" {
			return Entry{}, fmt.Errorf("missing id")
		}
		return Entry{PluginID: id, Version: entryVersion(x["version"], versions)}, nil
	}
	return Entry{}, fmt.Errorf("unsupported value %T", v)
}

// entryVersion reads "1.0", { ref = "x" } or a rich version table.
func entryVersion(v any, versions map[string]string) string {
	if m, ok := v.(map[string]any); ok {
		if ref, ok := m["ref"].(string); ok {
			return versions[ref]
		}
	}
	return richVersion(v)
}

func richVersion(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case map[string]any:
		for _, k := range []string{"require", "strictly", "prefer"} {
			if s, ok := x[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
