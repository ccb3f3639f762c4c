package resolve

import (
	"strings"

	"github.com/dejo1307/gradlefacts/internal/declare"
)

// Framework is the injected table that identifies one target framework.
type Framework struct {
	ID string `yaml:"id"`
	// PluginIDs identify the framework's Gradle plugin.
	PluginIDs []string `yaml:"plugin_ids"`
	// CompanionIDs identify dependency-management plugins that supply
	// versions for the framework.
	CompanionIDs []string `yaml:"companion_ids"`
	// PluginClasses are implementation class names accepted in
	// class-literal apply calls.
	PluginClasses []string `yaml:"plugin_classes"`
	// VersionArtifacts are group:artifact coordinates whose version is the
	// framework version (plugin artifact on a buildscript classpath, BOM).
	VersionArtifacts []string `yaml:"version_artifacts"`
	// DependencyGroups select the dependencies reported on a fact.
	DependencyGroups []string `yaml:"dependency_groups"`
	// AliasHints are normalized catalog alias prefixes that name the
	// framework when no catalog is available to bind them.
	AliasHints []string `yaml:"alias_hints"`
}

// SpringBoot is the default framework table.
var SpringBoot = Framework{
	ID:           "spring-boot",
	PluginIDs:    []string{"org.springframework.boot"},
	CompanionIDs: []string{"io.spring.dependency-management"},
	PluginClasses: []string{
		"SpringBootPlugin",
	},
	VersionArtifacts: []string{
		"org.springframework.boot:spring-boot-gradle-plugin",
		"org.springframework.boot:spring-boot-dependencies",
	},
	DependencyGroups: []string{"org.springframework.boot"},
	AliasHints:       []string{"spring.boot", "springboot"},
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f Framework) isPluginID(id string) bool { return id != "" && contains(f.PluginIDs, id) }

func (f Framework) isCompanion(id string) bool { return id != "" && contains(f.CompanionIDs, id) }

func (f Framework) isVersionArtifact(coord string) bool {
	return coord != "" && contains(f.VersionArtifacts, coord)
}

func (f Framework) isDependencyGroup(group string) bool {
	return group != "" && contains(f.DependencyGroups, group)
}

// hinted reports whether an unbound catalog alias names the framework.
func (f Framework) hinted(alias string, plugin bool) bool {
	alias = declare.NormalizeAlias(alias)
	if plugin {
		alias = strings.TrimPrefix(alias, "plugins.")
		return contains(f.AliasHints, alias)
	}
	for _, h := range f.AliasHints {
		if alias == h || strings.HasPrefix(alias, h+".") {
			return true
		}
	}
	return false
}
