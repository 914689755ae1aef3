package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandListsOwnCommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"dev", "migrate", "tiers"})

	for _, name := range []string{"dev", "migrate", "tiers", "DB_CONNECTION", "DO_NO_REBUILD"} {
		assert.Contains(t, root.Long, name)
	}
	assert.NotContains(t, root.Long, "goilerplate")
}

func TestNewestSource(t *testing.T) {
	dir := t.TempDir()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(time.Hour)

	write := func(name string, mod time.Time) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	write("cmd/main.go", old)
	write("db/migrations/001_init.sql", recent)
	write("README.md", recent.Add(time.Hour))

	got := newestSource([]string{filepath.Join(dir, "cmd"), filepath.Join(dir, "db"), filepath.Join(dir, "missing")})
	assert.True(t, got.Equal(recent), "got %v", got)

	assert.True(t, newestSource(nil).IsZero())
}
