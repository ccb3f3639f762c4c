package jsonl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dejo1307/gradlefacts/internal/facts"
)

// JSONLRenderer writes one record per line.
type JSONLRenderer struct{}

// New creates a new JSONLRenderer.
func New() *JSONLRenderer {
	return &JSONLRenderer{}
}

func (r *JSONLRenderer) Name() string {
	return "jsonl"
}

// Render produces facts.jsonl.
func (r *JSONLRenderer) Render(ctx context.Context, snapshot *facts.Snapshot) ([]facts.Artifact, error) {
	var buf bytes.Buffer
	if err := Write(&buf, snapshot.Records); err != nil {
		return nil, err
	}
	return []facts.Artifact{{
		Name:    "facts.jsonl",
		Content: buf.Bytes(),
		Type:    "application/x-ndjson",
	}}, nil
}

// Write encodes records as JSON lines.
func Write(w io.Writer, records []facts.Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding record %s/%s: %w", rec.Scope, rec.Framework, err)
		}
	}
	return nil
}
