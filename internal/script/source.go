// Package script turns Gradle build-configuration sources into a tree of
// named blocks and statements. It understands enough of the Groovy and
// Kotlin DSLs (and of plain Java/Kotlin convention classes) to find plugin,
// dependency and toolchain statements without evaluating anything.
package script

import (
	"path"
	"strings"
)

// Dialect selects how a source is read.
type Dialect int

const (
	// Declarative sources are build scripts and precompiled script plugins.
	Declarative Dialect = iota
	// Programmatic sources are convention-plugin classes. Only plugin
	// application calls are kept from them.
	Programmatic
)

func (d Dialect) String() string {
	if d == Programmatic {
		return "programmatic"
	}
	return "declarative"
}

// Syntax is the surface language of a source file.
type Syntax int

const (
	Groovy Syntax = iota
	Kotlin
	Java
)

func (s Syntax) String() string {
	switch s {
	case Kotlin:
		return "kotlin"
	case Java:
		return "java"
	default:
		return "groovy"
	}
}

// SyntaxFor guesses the syntax from a file name.
func SyntaxFor(name string) Syntax {
	switch strings.ToLower(path.Ext(name)) {
	case ".kts", ".kt":
		return Kotlin
	case ".java":
		return Java
	default:
		return Groovy
	}
}

// SourceFile is one immutable input to Extract.
type SourceFile struct {
	Path    string
	Text    string
	Dialect Dialect
	Syntax  Syntax
}

// NewSourceFile builds a SourceFile, deriving the syntax from the path.
func NewSourceFile(p, text string, d Dialect) SourceFile {
	return SourceFile{Path: p, Text: text, Dialect: d, Syntax: SyntaxFor(p)}
}
