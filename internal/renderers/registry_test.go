package renderers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dejo1307/gradlefacts/internal/facts"
)

type stub string

func (s stub) Name() string { return string(s) }

func (s stub) Render(context.Context, *facts.Snapshot) ([]facts.Artifact, error) {
	return []facts.Artifact{{Name: string(s)}}, nil
}

func TestRegistry_EnabledFollowsConfigToggle(t *testing.T) {
	r := NewRegistry()
	r.Register(stub("jsonl"))
	r.Register(stub("report"))
	r.Register(stub("jsonl"))

	assert.Len(t, r.All(), 2)
	enabled := r.Enabled(func(name string) bool { return name != "report" })
	assert.Len(t, enabled, 1)
	assert.Equal(t, "jsonl", enabled[0].Name())
	assert.Nil(t, r.Get("llm"))
}
