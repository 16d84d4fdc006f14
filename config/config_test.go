// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "SimpleWorkGraph", cfg.Shader.Program)
	assert.Len(t, cfg.Records, 2)
	assert.Equal(t, []uint32{2, 1, 1, 1, 3}, cfg.Records[1].Fields())
	assert.Equal(t, 65536, cfg.Output.ResultWords)
	assert.Equal(t, 16, cfg.Output.Rows)
	assert.False(t, cfg.Logging())
}

func TestDecode(t *testing.T) {
	const src = `
backend = "software"
debug = true
log_level = "debug"

[shader]
file = "graph.wgsl"
profile = "lib_6_9"
program = "Custom"

[[records]]
grid = [4, 1, 1]
index = 2
value = 9

[output]
rows = 2
table = true

[software]
memory_budget = "64 MiB"
adapter_name = "Test Adapter"
`
	cfg, err := Decode(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "software", cfg.Backend)
	assert.True(t, cfg.Debug)
	assert.Equal(t, Shader{File: "graph.wgsl", Profile: "lib_6_9", Program: "Custom"}, cfg.Shader)
	assert.Equal(t, []Record{{Grid: [3]uint32{4, 1, 1}, Index: 2, Value: 9}}, cfg.Records)
	assert.Equal(t, Output{ResultWords: 65536, Rows: 2, Table: true}, cfg.Output)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	budget, err := cfg.MemoryBudget()
	require.NoError(t, err)
	assert.Equal(t, uint64(64<<20), budget)
}

func TestDecodeKeepsDefaultRecords(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`debug = true`))
	require.NoError(t, err)
	assert.Equal(t, Default().Records, cfg.Records)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		invalid bool
	}{
		{"unknown key", `colour = "red"`, true},
		{"unknown nested key", "[shader]\nentry = \"x\"", true},
		{"syntax", `backend = `, false},
		{"wrong type", `debug = "yes"`, false},
		{"empty program", "[shader]\nprogram = \"\"", true},
		{"zero grid", "[[records]]\ngrid = [0, 1, 1]", true},
		{"zero result", "[output]\nresult_words = 0", true},
		{"rows overflow", "[output]\nresult_words = 8\nrows = 3", true},
		{"bad level", `log_level = "loud"`, true},
		{"bad budget", "[software]\nmemory_budget = \"lots\"", true},
		{"zero budget", "[software]\nmemory_budget = \"0\"", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.toml")
	require.NoError(t, os.WriteFile(path, []byte("backend = \"software\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "software", cfg.Backend)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("nope = 1\n"), 0o600))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), bad)
}
