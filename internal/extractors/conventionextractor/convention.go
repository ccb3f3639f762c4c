// Package conventionextractor interprets convention plugin code: classes
// implementing Plugin<Project> and META-INF/gradle-plugins descriptors.
package conventionextractor

import (
	"bufio"
	"context"
	"log"
	"path"
	"regexp"
	"strings"

	"go.uber.org/multierr"

	"github.com/dejo1307/gradlefacts/internal/declare"
	"github.com/dejo1307/gradlefacts/internal/extractors"
	"github.com/dejo1307/gradlefacts/internal/project"
	"github.com/dejo1307/gradlefacts/internal/script"
)

// ConventionExtractor extracts plugin applications from convention
// plugin classes written in Kotlin, Java or Groovy.
type ConventionExtractor struct{}

// New creates a new ConventionExtractor.
func New() *ConventionExtractor {
	return &ConventionExtractor{}
}

func (e *ConventionExtractor) Name() string {
	return "convention"
}

// Detect returns true for convention classes and plugin descriptors.
func (e *ConventionExtractor) Detect(src extractors.Source) bool {
	return src.Role == project.ConventionClass || src.Role == project.ConventionDescriptor
}

// Extract interprets one convention source.
func (e *ConventionExtractor) Extract(ctx context.Context, src extractors.Source) (project.File, error) {
	f := project.File{
		Path:           src.Path,
		ModulePath:     src.ModulePath,
		Role:           src.Role,
		ConventionRoot: src.ConventionRoot,
	}
	if err := ctx.Err(); err != nil {
		return f, err
	}

	if src.Role == project.ConventionDescriptor {
		if d, ok := Descriptor(src.Path, src.Text); ok {
			f.Declarations = []declare.Declaration{d}
		}
		return f, nil
	}

	f.Classes = PluginClasses(src.Text)
	root, err := script.Extract(script.NewSourceFile(src.Path, src.Text, script.Programmatic))
	if err != nil {
		log.Printf("[convention-extractor] %v", err)
		f.Faults = append(f.Faults, err)
		return f, nil
	}
	decls, err := declare.Interpret(root, declare.Options{File: src.Path, Dialect: script.Programmatic})
	for _, m := range multierr.Errors(err) {
		log.Printf("[convention-extractor] %v", m)
		f.Faults = append(f.Faults, m)
	}
	f.Declarations = decls
	return f, nil
}

// --- Regex patterns ---

var (
	// Captures the class name (group 1).
	classRe = regexp.MustCompile(
		`^\s*(?:(?:public|private|internal|protected|open|abstract|final|sealed)\s+)*class\s+(\w+)`)

	pluginSuperRe = regexp.MustCompile(`\bPlugin\s*<\s*(?:Project|Settings)\s*>`)
)

// PluginClasses returns the classes declared in text that implement
// Plugin<Project>, in declaration order. The supertype may follow on a
// later line before the class body opens.
func PluginClasses(text string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	var pending string
	for scanner.Scan() {
		line := scanner.Text()
		if m := classRe.FindStringSubmatch(line); m != nil {
			pending = m[1]
		}
		if pending == "" {
			continue
		}
		if pluginSuperRe.MatchString(line) {
			out = append(out, pending)
			pending = ""
			continue
		}
		if strings.Contains(line, "{") {
			pending = ""
		}
	}
	return out
}

// Descriptor reads META-INF/gradle-plugins/<id>.properties into a
// registration of <id> to its implementation class.
func Descriptor(p, text string) (declare.Declaration, bool) {
	id := strings.TrimSuffix(path.Base(strings.ReplaceAll(p, "\\", "/")), ".properties")
	for _, prop := range declare.PropertiesFile(p, text) {
		if prop.Name != "implementation-class" {
			continue
		}
		class := prop.Value
		if i := strings.LastIndexByte(class, '.'); i >= 0 {
			class = class[i+1:]
		}
		return declare.Declaration{
			Kind:     declare.Registration,
			PluginID: id,
			Class:    class,
			File:     p,
			Line:     prop.Line,
			Raw:      prop.Raw,
		}, true
	}
	return declare.Declaration{}, false
}
