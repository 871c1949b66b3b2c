package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	root := t.TempDir()
	out := bytes.Buffer{}
	opts := options{Root: root, Databases: []string{"one", "two"}, Mode: "c", Concurrent: 1, Report: true, Metrics: true, Backup: true}
	require.NoError(t, run(context.Background(), opts, &out))

	text := out.String()
	assert.Contains(t, text, "one: 18 rows in")
	assert.Contains(t, text, "two: 18 rows in")
	assert.Contains(t, text, ", backup backup/one")
	assert.Contains(t, text, "Database one")
	assert.Contains(t, text, "sqlite_facade_statements_prepared_total")
	assert.Contains(t, text, `sqlite_facade_function_calls_total{name="twice"}`)

	for _, name := range []string{"one", "two", "backup/one", "backup/two"} {
		_, err := os.Stat(filepath.Join(root, name))
		assert.NoError(t, err, name)
	}
}

func TestRun_Config(t *testing.T) {
	root := t.TempDir()
	cfgFile := filepath.Join(t.TempDir(), "demo.yml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("storage:\n  root: "+root+"\ndatabases:\n  - name: main\n    mode: c\n"), 0o600))

	out := bytes.Buffer{}
	require.NoError(t, run(context.Background(), options{Config: cfgFile}, &out))
	assert.Contains(t, out.String(), "main: 18 rows in")
	assert.NotContains(t, out.String(), "sqlite_facade_")
}

func TestRun_Errors(t *testing.T) {
	err := run(context.Background(), options{Config: "/nonexistent/demo.yml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "can't read config")

	err = run(context.Background(), options{Root: t.TempDir(), Databases: []string{"x"}, Mode: "bad"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid config")

	out := bytes.Buffer{}
	err = run(context.Background(), options{Root: t.TempDir(), Databases: []string{"missing"}, Mode: "w"}, &out)
	assert.ErrorContains(t, err, "can't open missing")
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(options{Root: "/tmp/x", Concurrent: 3})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", cfg.Storage.Root)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Len(t, cfg.Databases, 2)
}
