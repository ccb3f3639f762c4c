package facts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Store provides in-memory storage and querying of records with JSONL persistence.
type Store struct {
	mu      sync.RWMutex
	records []Record

	// Indexes for fast lookups
	byScope     map[string][]int // scope -> indices into records
	byFramework map[string][]int // framework -> indices into records
}

// NewStore creates an empty record store.
func NewStore() *Store {
	return &Store{
		byScope:     make(map[string][]int),
		byFramework: make(map[string][]int),
	}
}

// Add adds records to the store.
func (s *Store) Add(rr ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rr {
		idx := len(s.records)
		s.records = append(s.records, r)
		if r.Scope != "" {
			s.byScope[r.Scope] = append(s.byScope[r.Scope], idx)
		}
		if r.Framework != "" {
			s.byFramework[r.Framework] = append(s.byFramework[r.Framework], idx)
		}
	}
}

// All returns all records in the store.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Record, len(s.records))
	copy(result, s.records)
	return result
}

// Count returns the number of records in the store.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ByScope returns all records for the given module path.
func (s *Store) ByScope(scope string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectByIndex(s.byScope[scope])
}

// ByFramework returns all records for the given framework id.
func (s *Store) ByFramework(framework string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectByIndex(s.byFramework[framework])
}

// Scopes returns the distinct scopes in insertion order.
func (s *Store) Scopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool, len(s.byScope))
	var out []string
	for _, r := range s.records {
		if !seen[r.Scope] {
			seen[r.Scope] = true
			out = append(out, r.Scope)
		}
	}
	return out
}

// QueryOpts holds the query filters for Query.
// Multi-value filters within a dimension are OR-combined; filters across
// different dimensions are AND-combined.
type QueryOpts struct {
	Scope         string   // exact module path
	Scopes        []string // multi-scope filter (OR with Scope)
	ScopePrefix   string   // module path prefix, e.g. ":services"
	Framework     string   // framework id
	Present       *bool    // presence filter
	VersionKind   string   // literal, managed, catalog-unresolved or unknown
	Confidence    string   // exact confidence
	MinConfidence string   // drop records below this confidence
	Offset        int      // number of results to skip
	Limit         int      // max results to return (0 = default 100, max 500)
}

// Query returns records matching opts along with the total count of
// matches before offset/limit are applied.
func (s *Store) Query(opts QueryOpts) ([]Record, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scopeSet := mergeIntoSet(opts.Scope, opts.Scopes)
	minConf, hasMin := ParseConfidence(opts.MinConfidence)

	var matched []Record
	for _, r := range s.records {
		if len(scopeSet) > 0 || opts.ScopePrefix != "" {
			scopeMatch := false
			if len(scopeSet) > 0 {
				_, scopeMatch = scopeSet[r.Scope]
			}
			if !scopeMatch && opts.ScopePrefix != "" {
				scopeMatch = strings.HasPrefix(r.Scope, opts.ScopePrefix)
			}
			if !scopeMatch {
				continue
			}
		}
		if opts.Framework != "" && r.Framework != opts.Framework {
			continue
		}
		if opts.Present != nil && r.Present != *opts.Present {
			continue
		}
		if opts.VersionKind != "" && string(r.Version.Kind) != opts.VersionKind {
			continue
		}
		if opts.Confidence != "" && r.Confidence != opts.Confidence {
			continue
		}
		if hasMin {
			if c, ok := ParseConfidence(r.Confidence); !ok || c > minConf {
				continue
			}
		}
		matched = append(matched, r)
	}

	total := len(matched)

	// Apply offset
	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, total
		}
		matched = matched[opts.Offset:]
	}

	// Apply limit
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, total
}

// mergeIntoSet combines a single value and a slice into a set.
// Empty strings are ignored.
func mergeIntoSet(single string, multi []string) map[string]struct{} {
	set := make(map[string]struct{}, len(multi)+1)
	if single != "" {
		set[single] = struct{}{}
	}
	for _, v := range multi {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// Clear removes all records from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.byScope = make(map[string][]int)
	s.byFramework = make(map[string][]int)
}

// WriteJSONL writes all records as JSONL to the given writer.
func (s *Store) WriteJSONL(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc := json.NewEncoder(w)
	for _, r := range s.records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding record %s/%s: %w", r.Scope, r.Framework, err)
		}
	}
	return nil
}

// WriteJSONLFile writes all records as JSONL to the given file path.
func (s *Store) WriteJSONLFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if err := s.WriteJSONL(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadJSONL reads records from a JSONL reader and adds them to the store.
func (s *Store) ReadJSONL(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// Allow large lines
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("decoding record: %w", err)
		}
		s.Add(rec)
	}
	return scanner.Err()
}

// ReadJSONLFile reads records from a JSONL file and adds them to the store.
func (s *Store) ReadJSONLFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return s.ReadJSONL(f)
}

func (s *Store) collectByIndex(indices []int) []Record {
	result := make([]Record, 0, len(indices))
	for _, idx := range indices {
		if idx < len(s.records) {
			result = append(result, s.records[idx])
		}
	}
	return result
}
