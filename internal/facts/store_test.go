package facts

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func makeRecord(scope, framework string, present bool, conf Confidence) Record {
	return Record{
		Scope:      scope,
		Framework:  framework,
		Present:    present,
		Version:    Unknown(),
		Confidence: conf.String(),
		Evidence:   []RecordEvidence{},
	}
}

func TestStore_AddAndIndexes(t *testing.T) {
	s := NewStore()
	s.Add(
		makeRecord(":", "spring-boot", false, Medium),
		makeRecord(":api", "spring-boot", true, High),
		makeRecord(":api", "micronaut", false, Medium),
	)

	if s.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", s.Count())
	}
	if got := s.ByScope(":api"); len(got) != 2 {
		t.Errorf("ByScope(:api) = %d, want 2", len(got))
	}
	if got := s.ByFramework("spring-boot"); len(got) != 2 {
		t.Errorf("ByFramework(spring-boot) = %d, want 2", len(got))
	}
	if got := s.ByScope(":missing"); len(got) != 0 {
		t.Errorf("ByScope(:missing) = %d, want 0", len(got))
	}
	scopes := s.Scopes()
	if len(scopes) != 2 || scopes[0] != ":" || scopes[1] != ":api" {
		t.Errorf("Scopes() = %v, want [: :api]", scopes)
	}
}

func TestStore_Query(t *testing.T) {
	s := NewStore()
	lit := makeRecord(":services:orders", "spring-boot", true, High)
	lit.Version = Literal("3.2.0")
	s.Add(
		makeRecord(":", "spring-boot", false, Medium),
		lit,
		makeRecord(":services:billing", "spring-boot", true, Low),
		makeRecord(":web", "spring-boot", true, Medium),
	)

	present := true
	tests := []struct {
		name string
		opts QueryOpts
		want int
	}{
		{"all", QueryOpts{}, 4},
		{"exact scope", QueryOpts{Scope: ":web"}, 1},
		{"multi scope", QueryOpts{Scope: ":web", Scopes: []string{":"}}, 2},
		{"prefix", QueryOpts{ScopePrefix: ":services"}, 2},
		{"present", QueryOpts{Present: &present}, 3},
		{"version kind", QueryOpts{VersionKind: "literal"}, 1},
		{"confidence", QueryOpts{Confidence: "medium"}, 2},
		{"min confidence", QueryOpts{MinConfidence: "medium"}, 3},
		{"framework mismatch", QueryOpts{Framework: "quarkus"}, 0},
		{"combined", QueryOpts{ScopePrefix: ":services", MinConfidence: "high"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := s.Query(tt.opts)
			if len(got) != tt.want || total != tt.want {
				t.Errorf("Query(%+v) = %d results (total %d), want %d", tt.opts, len(got), total, tt.want)
			}
		})
	}
}

func TestStore_QueryPagination(t *testing.T) {
	s := NewStore()
	for i := 0; i < 10; i++ {
		s.Add(makeRecord(":m", "spring-boot", true, High))
	}

	got, total := s.Query(QueryOpts{Offset: 8, Limit: 5})
	if total != 10 {
		t.Errorf("total = %d, want 10", total)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}

	got, total = s.Query(QueryOpts{Offset: 20})
	if got != nil || total != 10 {
		t.Errorf("offset past end: got %d results, total %d", len(got), total)
	}

	got, _ = s.Query(QueryOpts{Limit: 3})
	if len(got) != 3 {
		t.Errorf("limit 3: got %d", len(got))
	}
}

func TestJSONL_RoundTrip(t *testing.T) {
	original := NewStore()
	full := Record{
		Scope:      ":app",
		Framework:  "spring-boot",
		Present:    true,
		Version:    Literal("3.2.0"),
		Confidence: "medium",
		Evidence: []RecordEvidence{
			{Scope: ":", Kind: EvidencePlugin, Detail: `id("org.springframework.boot") version "3.2.0"`},
		},
		Toolchain: "17",
		Dependencies: []RecordDependency{
			{Coordinate: "org.springframework.boot:spring-boot-starter-web", Configuration: "implementation", Version: ManagedByCompanionPlugin()},
		},
	}
	original.Add(full, makeRecord(":", "spring-boot", false, Medium))

	var buf bytes.Buffer
	if err := original.WriteJSONL(&buf); err != nil {
		t.Fatalf("WriteJSONL: %v", err)
	}

	restored := NewStore()
	if err := restored.ReadJSONL(&buf); err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if restored.Count() != 2 {
		t.Fatalf("count mismatch: got %d, want 2", restored.Count())
	}

	r := restored.ByScope(":app")[0]
	if r.Version != full.Version || r.Toolchain != "17" || r.Confidence != "medium" {
		t.Errorf("basic fields mismatch: %+v", r)
	}
	if len(r.Evidence) != 1 || r.Evidence[0] != full.Evidence[0] {
		t.Errorf("evidence mismatch: %+v", r.Evidence)
	}
	if len(r.Dependencies) != 1 || r.Dependencies[0] != full.Dependencies[0] {
		t.Errorf("dependencies mismatch: %+v", r.Dependencies)
	}
}

func TestJSONL_SkipsEmptyLines(t *testing.T) {
	s := NewStore()
	input := `{"scope":":a","framework":"spring-boot"}

{"scope":":b","framework":"spring-boot"}

`
	if err := s.ReadJSONL(strings.NewReader(input)); err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if s.Count() != 2 {
		t.Errorf("count = %d, want 2 (empty lines should be skipped)", s.Count())
	}
}

func TestJSONL_InvalidLine(t *testing.T) {
	s := NewStore()
	if err := s.ReadJSONL(strings.NewReader("{not json}\n")); err == nil {
		t.Error("expected decode error")
	}
}

func TestClear_ResetsIndexes(t *testing.T) {
	s := NewStore()
	s.Add(makeRecord(":a", "spring-boot", true, High))
	s.Clear()

	if s.Count() != 0 {
		t.Errorf("post-clear Count() = %d, want 0", s.Count())
	}
	if got := s.ByScope(":a"); len(got) != 0 {
		t.Errorf("post-clear ByScope = %d, want 0", len(got))
	}

	s.Add(makeRecord(":b", "spring-boot", true, High))
	if got := s.ByFramework("spring-boot"); len(got) != 1 {
		t.Errorf("post-clear+add ByFramework = %d, want 1", len(got))
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	const n = 100
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(makeRecord(":m", "spring-boot", true, High))
		}()
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.All()
			_ = s.ByScope(":m")
			_, _ = s.Query(QueryOpts{Framework: "spring-boot"})
			_ = s.Count()
		}()
	}
	wg.Wait()

	if got := s.Count(); got != n {
		t.Errorf("after concurrent adds: Count() = %d, want %d", got, n)
	}
}
