// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command workgraph compiles a work graph, dispatches it with CPU seed
// records, and prints the start of the result buffer.
//
// Usage:
//
//	workgraph [-config run.toml] [-shader graph.wgsl] [-profile lib_6_8]
//	          [-backend software] [-debug] [-v] [-rows 16] [-table]
//	workgraph -list-adapters
//
// The exit code is 0 on success and the number of the failing phase
// otherwise: 1 compiler init, 2 device init, 3 shader compile, 4 root
// signature, 5 state object, 6 allocation, 7 dispatch, 8 readback,
// 9 configuration.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/gogpu/workgraph"
	"github.com/gogpu/workgraph/backend"
	"github.com/gogpu/workgraph/backend/debug"
	"github.com/gogpu/workgraph/backend/software"
	"github.com/gogpu/workgraph/config"
	"github.com/gogpu/workgraph/examples/simplegraph"
	"github.com/gogpu/workgraph/internal/halprobe"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	config       string
	shader       string
	profile      string
	backend      string
	debug        bool
	verbose      bool
	rows         int
	table        bool
	listAdapters bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, *flag.FlagSet, error) {
	f := &flags{}
	fs := flag.NewFlagSet("workgraph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "TOML run configuration")
	fs.StringVar(&f.shader, "shader", "", "WGSL work graph source (default: built-in sample)")
	fs.StringVar(&f.profile, "profile", "", "target profile (default lib_6_8)")
	fs.StringVar(&f.backend, "backend", "", "device backend (registered: "+fmt.Sprint(backend.Available())+")")
	fs.BoolVar(&f.debug, "debug", false, "enable the validation layer")
	fs.BoolVar(&f.verbose, "v", false, "debug logging to stderr")
	fs.IntVar(&f.rows, "rows", -1, "result rows of four words to print")
	fs.BoolVar(&f.table, "table", false, "print the result as a table")
	fs.BoolVar(&f.listAdapters, "list-adapters", false, "list host GPU adapters and exit")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs, nil
}

// loadConfig reads the configuration and applies flags that were set.
func loadConfig(f *flags, fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return nil, err
		}
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "shader":
			cfg.Shader.File = f.shader
		case "profile":
			cfg.Shader.Profile = f.profile
		case "backend":
			cfg.Backend = f.backend
		case "debug":
			cfg.Debug = f.debug
		case "v":
			if f.verbose {
				cfg.LogLevel = "debug"
			}
		case "rows":
			cfg.Output.Rows = f.rows
		case "table":
			cfg.Output.Table = f.table
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	term := termenv.NewOutput(stderr)
	report := func(err error) int {
		code := workgraph.ExitCode(err)
		fmt.Fprintln(stderr, term.String("error:").Foreground(term.Color("1")).Bold().String(), err)
		return code
	}

	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return workgraph.PhaseConfig.ExitCode()
	}
	cfg, err := loadConfig(f, fs)
	if err != nil {
		return report(&workgraph.PhaseError{Phase: workgraph.PhaseConfig, Err: err})
	}
	if cfg.Logging() {
		lvl, _ := cfg.Level()
		workgraph.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl})))
	}

	if f.listAdapters {
		return listAdapters(stdout, stderr, term)
	}

	g, err := buildGraph(cfg)
	if err != nil {
		return report(err)
	}
	opts, err := runnerOptions(cfg, stderr, term)
	if err != nil {
		return report(&workgraph.PhaseError{Phase: workgraph.PhaseConfig, Err: err})
	}

	res, err := workgraph.NewRunner(opts...).Run(g)
	if err != nil {
		return report(err)
	}
	if f.verbose {
		fmt.Fprintf(stderr, "adapter %s (%s), bytecode %s, backing memory %s..%s\n",
			res.Adapter.Name,
			res.AdapterType,
			humanize.IBytes(uint64(res.BytecodeSize)),
			humanize.IBytes(res.Backing.MinSizeInBytes),
			humanize.IBytes(res.Backing.MaxSizeInBytes))
	}
	if cfg.Output.Table {
		fmt.Fprintln(stdout, renderTable(res.Words, cfg.Output.Rows))
	} else {
		printRows(stdout, res.Words, cfg.Output.Rows)
	}
	return 0
}

func buildGraph(cfg *config.Config) (*workgraph.Graph, error) {
	g := &workgraph.Graph{
		SourceName: simplegraph.SourceName,
		Source:     simplegraph.Source,
		Program:    cfg.Shader.Program,
		EntryNode:  simplegraph.FirstNode,
		RecordSize: simplegraph.RecordSize,
	}
	if cfg.Shader.File != "" {
		src, err := os.ReadFile(cfg.Shader.File)
		if err != nil {
			return nil, &workgraph.PhaseError{Phase: workgraph.PhaseCompile, Err: fmt.Errorf("%w: %w", workgraph.ErrCompile, err)}
		}
		g.SourceName, g.Source, g.EntryNode = cfg.Shader.File, src, ""
	}
	for _, r := range cfg.Records {
		g.Records = append(g.Records, r.Fields())
	}
	return g, nil
}

func runnerOptions(cfg *config.Config, stderr io.Writer, term *termenv.Output) ([]workgraph.Option, error) {
	opts := []workgraph.Option{
		workgraph.WithBackend(cfg.Backend),
		workgraph.WithProfile(cfg.Shader.Profile),
		workgraph.WithResultWords(cfg.Output.ResultWords),
		workgraph.WithReadWords(cfg.Output.Rows * 4),
		workgraph.WithDebugLayer(cfg.Debug, debug.WithMessageFunc(func(v debug.Violation) {
			color := "3"
			if v.Severity == debug.SeverityError {
				color = "1"
			}
			fmt.Fprintln(stderr, term.String(v.Severity.String()+":").Foreground(term.Color(color)).String(), v.Error())
		})),
	}

	budget, err := cfg.MemoryBudget()
	if err != nil {
		return nil, err
	}
	if budget != 0 || cfg.Software.AdapterName != "" {
		if cfg.Backend != "" && cfg.Backend != backend.BackendSoftware {
			return nil, fmt.Errorf("[software] settings given for backend %q", cfg.Backend)
		}
		var sopts []software.Option
		if budget != 0 {
			sopts = append(sopts, software.WithMemoryBudget(budget))
		}
		if cfg.Software.AdapterName != "" {
			sopts = append(sopts, software.WithAdapterName(cfg.Software.AdapterName))
		}
		opts = append(opts, workgraph.WithBackendInstance(software.New(sopts...)))
	}
	return opts, nil
}

func printRows(w io.Writer, words []uint32, rows int) {
	for i := 0; i < rows && i*4+3 < len(words); i++ {
		fmt.Fprintf(w, "%d, %d, %d, %d\n", words[i*4], words[i*4+1], words[i*4+2], words[i*4+3])
	}
}

func listAdapters(stdout, stderr io.Writer, term *termenv.Output) int {
	adapters, err := halprobe.Probe()
	if err != nil {
		fmt.Fprintln(stderr, term.String("warning:").Foreground(term.Color("3")).String(), err)
	}
	fmt.Fprintf(stdout, "%-10s %-10s %s\n", "backend", "type", "name")
	fmt.Fprintf(stdout, "%-10s %-10s %s\n", backend.BackendSoftware, "cpu", software.DefaultAdapterName)
	for _, a := range adapters {
		fmt.Fprintf(stdout, "%-10v %-10s %s\n", a.Backend, a.Kind(), a.Name)
	}
	return 0
}
