package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejo1307/gradlefacts/internal/config"
	"github.com/dejo1307/gradlefacts/internal/engine"
	"github.com/dejo1307/gradlefacts/internal/project"
)

func TestExitCode(t *testing.T) {
	orphan := fmt.Errorf("scan: %w", &project.OrphanModuleError{Module: ":api"})
	assert.Equal(t, 3, exitCode(orphan))
	assert.Equal(t, 2, exitCode(fmt.Errorf("scan: %w", engine.ErrNoBuildScripts)))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestLoadConfig(t *testing.T) {
	root := t.TempDir()
	cfg, abs, err := loadConfig("", root)
	require.NoError(t, err)
	assert.Equal(t, root, abs)
	assert.Equal(t, root, cfg.Repo)
	assert.Equal(t, "jsonl", cfg.Output.Format)

	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte("output:\n  format: text\n"), 0o644))
	cfg, _, err = loadConfig("", root)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Output.Format)
}

func TestNewEngine(t *testing.T) {
	eng, err := newEngine(config.Default())
	require.NoError(t, err)
	assert.NotNil(t, eng.Store())
}
