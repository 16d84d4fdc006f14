// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads the TOML run configuration of the workgraph command.
//
// A minimal file:
//
//	backend = "software"
//	debug = true
//
//	[shader]
//	file = "SimpleWorkGraph.wgsl"
//	profile = "lib_6_8"
//
//	[[records]]
//	grid = [2, 1, 1]
//	index = 0
//	value = 1
//
// Unknown keys are rejected. Missing keys keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned for configurations that decode but do not validate.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is a run configuration.
type Config struct {
	// Backend is a registered backend name. Empty selects the default.
	Backend string `toml:"backend"`

	// Debug enables the validation layer.
	Debug bool `toml:"debug"`

	// LogLevel is one of debug, info, warn, error. Empty disables logging.
	LogLevel string `toml:"log_level"`

	Shader   Shader   `toml:"shader"`
	Records  []Record `toml:"records"`
	Output   Output   `toml:"output"`
	Software Software `toml:"software"`
}

// Shader selects the work graph source.
type Shader struct {
	// File is a WGSL file. Empty uses the built-in sample.
	File    string `toml:"file"`
	Profile string `toml:"profile"`
	Program string `toml:"program"`
}

// Record is one seed record of the entry node.
type Record struct {
	Grid  [3]uint32 `toml:"grid"`
	Index uint32    `toml:"index"`
	Value uint32    `toml:"value"`
}

// Fields returns the record as 32-bit fields in wire order.
func (r Record) Fields() []uint32 {
	return []uint32{r.Grid[0], r.Grid[1], r.Grid[2], r.Index, r.Value}
}

// Output controls result size and printing.
type Output struct {
	// ResultWords is the result buffer size in 32-bit words.
	ResultWords int `toml:"result_words"`

	// Rows is how many rows of four words are printed.
	Rows int `toml:"rows"`

	// Table prints a bordered table instead of comma-separated rows.
	Table bool `toml:"table"`
}

// Software configures the software backend.
type Software struct {
	// MemoryBudget is a size such as "512 MiB".
	MemoryBudget string `toml:"memory_budget"`
	AdapterName  string `toml:"adapter_name"`
}

// Default returns the built-in configuration: the sample graph on the
// default backend with its two seed records.
func Default() *Config {
	return &Config{
		Shader: Shader{Program: "SimpleWorkGraph"},
		Records: []Record{
			{Grid: [3]uint32{2, 1, 1}, Index: 0, Value: 1},
			{Grid: [3]uint32{2, 1, 1}, Index: 1, Value: 3},
		},
		Output: Output{ResultWords: 65536, Rows: 16},
	}
}

// Load reads and validates the file at path on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads TOML from r on top of Default and validates the result.
// A file that lists records replaces the default records.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.Records = nil
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s", ErrInvalid, strict.String())
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("config: line %d column %d: %w", row, col, err)
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Records == nil {
		cfg.Records = Default().Records
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Shader.Program == "" {
		return fmt.Errorf("%w: shader.program is empty", ErrInvalid)
	}
	if len(c.Records) == 0 {
		return fmt.Errorf("%w: no records", ErrInvalid)
	}
	for i, r := range c.Records {
		if r.Grid[0] == 0 || r.Grid[1] == 0 || r.Grid[2] == 0 {
			return fmt.Errorf("%w: records[%d]: grid %v has an empty dimension", ErrInvalid, i, r.Grid)
		}
	}
	if c.Output.ResultWords <= 0 {
		return fmt.Errorf("%w: output.result_words = %d", ErrInvalid, c.Output.ResultWords)
	}
	if c.Output.Rows < 0 || c.Output.Rows*4 > c.Output.ResultWords {
		return fmt.Errorf("%w: output.rows = %d does not fit %d words", ErrInvalid, c.Output.Rows, c.Output.ResultWords)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.MemoryBudget(); err != nil {
		return err
	}
	return nil
}

// Logging reports whether a log level is configured.
func (c *Config) Logging() bool { return c.LogLevel != "" }

// Level parses LogLevel. An empty level parses as info.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return lvl, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}
	return lvl, nil
}

// MemoryBudget parses Software.MemoryBudget. Zero means the backend default.
func (c *Config) MemoryBudget() (uint64, error) {
	if c.Software.MemoryBudget == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.Software.MemoryBudget)
	if err != nil {
		return 0, fmt.Errorf("%w: software.memory_budget: %w", ErrInvalid, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: software.memory_budget is zero", ErrInvalid)
	}
	return n, nil
}
