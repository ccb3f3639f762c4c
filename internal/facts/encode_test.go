package facts

import (
	"testing"

	"github.com/dejo1307/gradlefacts/internal/declare"
)

func TestEncode(t *testing.T) {
	f := Fact{
		ScopeID:    ":app",
		Framework:  "spring-boot",
		Present:    true,
		Version:    Literal("3.2.0"),
		Confidence: Medium,
		Evidence: []Contribution{
			{
				Decl:   declare.Declaration{Kind: declare.Programmatic, PluginID: "org.springframework.boot", Raw: `project.plugins.apply("org.springframework.boot")`},
				Origin: ":",
				Via:    "SpringBootPlugin",
			},
			{
				Decl:   declare.Declaration{Kind: declare.Property, Name: "springBootVersion", Value: "3.2.0", Raw: "springBootVersion = '3.2.0'"},
				Origin: ":",
			},
		},
		Notes: []Note{
			{Scope: ":", Text: "build.gradle: 3:1: unterminated string"},
			{Text: "convention without scope"},
		},
	}

	r := Encode(f)
	if r.Scope != ":app" || r.Confidence != "medium" || !r.Present {
		t.Fatalf("unexpected record header: %+v", r)
	}
	if len(r.Evidence) != 4 {
		t.Fatalf("evidence = %d, want 4", len(r.Evidence))
	}
	if r.Evidence[0].Kind != EvidenceProgrammatic {
		t.Errorf("evidence[0].Kind = %q", r.Evidence[0].Kind)
	}
	if want := `project.plugins.apply("org.springframework.boot") (via SpringBootPlugin)`; r.Evidence[0].Detail != want {
		t.Errorf("evidence[0].Detail = %q, want %q", r.Evidence[0].Detail, want)
	}
	if r.Evidence[1].Kind != EvidencePlugin || r.Evidence[1].Scope != ":" {
		t.Errorf("evidence[1] = %+v", r.Evidence[1])
	}
	if want := "property springBootVersion = '3.2.0'"; r.Evidence[1].Detail != want {
		t.Errorf("evidence[1].Detail = %q, want %q", r.Evidence[1].Detail, want)
	}
	if r.Evidence[2].Kind != EvidenceNote || r.Evidence[2].Scope != ":" {
		t.Errorf("evidence[2] = %+v, want note from the ancestor scope", r.Evidence[2])
	}
	if r.Evidence[3].Kind != EvidenceNote || r.Evidence[3].Scope != ":app" {
		t.Errorf("evidence[3] = %+v", r.Evidence[3])
	}
}

func TestEncode_EvidenceKinds(t *testing.T) {
	allowed := map[string]bool{EvidencePlugin: true, EvidenceProgrammatic: true, EvidenceDependency: true, EvidenceNote: true}
	f := Fact{ScopeID: ":", Framework: "spring-boot", Evidence: []Contribution{
		{Decl: declare.Declaration{Kind: declare.Plugin, PluginID: "org.springframework.boot"}, Origin: ":"},
		{Decl: declare.Declaration{Kind: declare.Property, Name: "v", Value: "1"}, Origin: ":"},
		{Decl: declare.Declaration{Kind: declare.Toolchain, LanguageVersion: "17"}, Origin: ":"},
		{Decl: declare.Declaration{Kind: declare.CatalogAlias, Alias: "spring.boot"}, Origin: ":"},
	}, Notes: []Note{{Scope: ":", Text: "n"}}}
	for _, ev := range Encode(f).Evidence {
		if !allowed[ev.Kind] {
			t.Errorf("evidence kind %q is not part of the record schema", ev.Kind)
		}
	}
}

func TestEncode_ZeroFact(t *testing.T) {
	r := Encode(Fact{ScopeID: ":", Framework: "spring-boot"})
	if r.Version != Unknown() {
		t.Errorf("Version = %+v, want unknown", r.Version)
	}
	if r.Confidence != "high" {
		t.Errorf("Confidence = %q", r.Confidence)
	}
	if r.Evidence == nil {
		t.Error("Evidence should be an empty slice, not nil")
	}
}

func TestConfidence(t *testing.T) {
	if got := High.Downgrade(1); got != Medium {
		t.Errorf("High.Downgrade(1) = %v", got)
	}
	if got := Medium.Downgrade(5); got != Low {
		t.Errorf("Medium.Downgrade(5) = %v", got)
	}
	if got := High.AtMost(Medium); got != Medium {
		t.Errorf("High.AtMost(Medium) = %v", got)
	}
	if got := Low.AtMost(Medium); got != Low {
		t.Errorf("Low.AtMost(Medium) = %v", got)
	}
	if c, ok := ParseConfidence("medium"); !ok || c != Medium {
		t.Errorf("ParseConfidence(medium) = %v, %v", c, ok)
	}
	if _, ok := ParseConfidence("certain"); ok {
		t.Error("ParseConfidence(certain) should fail")
	}
}
