// Package text prints records as an aligned, colored table for terminals.
package text

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dejo1307/gradlefacts/internal/facts"
)

var (
	highColor   = color.New(color.FgGreen)
	mediumColor = color.New(color.FgYellow)
	lowColor    = color.New(color.FgRed)
	dimColor    = color.New(color.Faint)
	boldColor   = color.New(color.Bold)
)

func confidenceColor(c string) *color.Color {
	switch c {
	case "high":
		return highColor
	case "medium":
		return mediumColor
	default:
		return lowColor
	}
}

// Version renders a resolved version for humans.
func Version(v facts.ResolvedVersion) string {
	switch v.Kind {
	case facts.VersionLiteral:
		return v.Value
	case facts.VersionManaged:
		return "managed"
	case facts.VersionCatalogUnresolved:
		return "? (" + v.Value + ")"
	default:
		return "-"
	}
}

// Write prints one row per record and, when verbose, its evidence.
// Coloring follows color.NoColor.
func Write(w io.Writer, records []facts.Record, verbose bool) error {
	width := len("SCOPE")
	for _, r := range records {
		width = max(width, len(r.Scope))
	}

	if _, err := boldColor.Fprintf(w, "%-*s  %-12s  %-8s  %-24s  %s\n", width, "SCOPE", "FRAMEWORK", "PRESENT", "VERSION", "CONFIDENCE"); err != nil {
		return err
	}
	for _, r := range records {
		present := "no"
		if r.Present {
			present = "yes"
		}
		if _, err := fmt.Fprintf(w, "%-*s  %-12s  %-8s  %-24s  ", width, r.Scope, r.Framework, present, Version(r.Version)); err != nil {
			return err
		}
		if _, err := confidenceColor(r.Confidence).Fprintln(w, r.Confidence); err != nil {
			return err
		}
		if !verbose {
			continue
		}
		for _, ev := range r.Evidence {
			if _, err := dimColor.Fprintf(w, "%s  %s %s: %s\n", strings.Repeat(" ", width), ev.Scope, ev.Kind, ev.Detail); err != nil {
				return err
			}
		}
	}
	return nil
}
