// Package gradleextractor interprets Gradle build scripts, settings
// scripts, precompiled script plugins and gradle.properties files.
package gradleextractor

import (
	"context"
	"log"

	"go.uber.org/multierr"

	"github.com/dejo1307/gradlefacts/internal/declare"
	"github.com/dejo1307/gradlefacts/internal/extractors"
	"github.com/dejo1307/gradlefacts/internal/project"
	"github.com/dejo1307/gradlefacts/internal/script"
)

// GradleExtractor handles the declarative Gradle inputs.
type GradleExtractor struct {
	accessors []string
}

// New creates a GradleExtractor. accessors are the version catalog
// accessor names; empty means "libs".
func New(accessors ...string) *GradleExtractor {
	return &GradleExtractor{accessors: accessors}
}

func (e *GradleExtractor) Name() string {
	return "gradle"
}

// Detect returns true for build, settings, properties and precompiled
// script plugin sources.
func (e *GradleExtractor) Detect(src extractors.Source) bool {
	switch src.Role {
	case project.BuildScript, project.Settings, project.Properties, project.ConventionScript, project.ConventionBuild:
		return true
	}
	return false
}

// Extract interprets one source. A parse error leaves the file without
// declarations; malformed statements are dropped individually.
func (e *GradleExtractor) Extract(ctx context.Context, src extractors.Source) (project.File, error) {
	f := project.File{
		Path:           src.Path,
		ModulePath:     src.ModulePath,
		Role:           src.Role,
		ConventionRoot: src.ConventionRoot,
	}
	if err := ctx.Err(); err != nil {
		return f, err
	}

	if src.Role == project.Properties {
		f.Declarations = declare.PropertiesFile(src.Path, src.Text)
		return f, nil
	}

	root, err := script.Extract(script.NewSourceFile(src.Path, src.Text, script.Declarative))
	if err != nil {
		log.Printf("[gradle-extractor] %v", err)
		f.Faults = append(f.Faults, err)
		return f, nil
	}

	decls, err := declare.Interpret(root, declare.Options{
		File:             src.Path,
		Dialect:          script.Declarative,
		Settings:         src.Role == project.Settings,
		CatalogAccessors: e.accessors,
	})
	for _, m := range multierr.Errors(err) {
		log.Printf("[gradle-extractor] %v", m)
		f.Faults = append(f.Faults, m)
	}
	f.Declarations = decls
	return f, nil
}
