// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compiler

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/naga"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/cache"
	"github.com/gogpu/workgraph/internal/logging"
	"github.com/gogpu/workgraph/internal/spirv"
)

// ErrInit is returned when the compiler cannot be created.
var ErrInit = errors.New("compiler: initialization failed")

// DefaultProfile is the profile used when a compilation names none.
const DefaultProfile = "lib_6_8"

// DefaultMaxSourceSize bounds the size of a decoded source.
const DefaultMaxSourceSize = 4 << 20

// DefaultCacheSize is the number of compiled modules a Compiler keeps.
const DefaultCacheSize = 32

// probeSource is compiled once by New to check the toolchain works.
const probeSource = `@compute @workgroup_size(1)
fn probe() {}
`

// CompileError reports a failed compilation. It wraps gpucore.ErrCompile.
type CompileError struct {
	// Source is the name of the compiled source.
	Source string

	// Profile is the requested target profile.
	Profile string

	// Diagnostics is the compiler output.
	Diagnostics string

	Err error
}

// Error implements error.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compiler: %s (%s): %s", e.Source, e.Profile, e.Diagnostics)
}

// Unwrap returns gpucore.ErrCompile and the underlying cause.
func (e *CompileError) Unwrap() []error {
	if e.Err == nil {
		return []error{gpucore.ErrCompile}
	}
	return []error{gpucore.ErrCompile, e.Err}
}

// Unsupported reports whether the failure comes from a language feature
// the compiler does not implement yet rather than from the source.
func (e *CompileError) Unsupported() bool {
	d := e.Diagnostics
	return strings.Contains(d, "not yet implemented") || strings.Contains(d, "not supported")
}

// Program is compiled device code.
type Program struct {
	// Name identifies the source, usually its file name.
	Name string

	Profile gpucore.Profile

	// Bytecode is the SPIR-V module.
	Bytecode []byte

	// EntryPoints lists the compute entry points of the module.
	EntryPoints []string
}

// Len returns the bytecode size in bytes.
func (p *Program) Len() int {
	return len(p.Bytecode)
}

// Library returns the library description for a state object.
func (p *Program) Library() *gpucore.LibraryDesc {
	return &gpucore.LibraryDesc{Bytecode: p.Bytecode, Profile: p.Profile.String()}
}

// Option configures a Compiler.
type Option func(*options)

type options struct {
	defaultProfile string
	maxSourceSize  int
	cacheSize      int
}

// WithDefaultProfile sets the profile used when Compile is given none.
func WithDefaultProfile(profile string) Option {
	return func(o *options) {
		o.defaultProfile = profile
	}
}

// WithMaxSourceSize bounds the decoded source size in bytes.
func WithMaxSourceSize(n int) Option {
	return func(o *options) {
		o.maxSourceSize = n
	}
}

// WithCacheSize sets how many compiled modules are kept. Zero disables
// the cache.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// cacheKey identifies a compilation by decoded source digest and profile.
type cacheKey struct {
	sum     [sha256.Size]byte
	profile gpucore.Profile
}

type module struct {
	bytecode []byte
	entries  []string
}

// Compiler compiles WGSL sources. It is safe for concurrent use.
type Compiler struct {
	profile gpucore.Profile
	maxSize int
	modules *cache.Cache[cacheKey, module]
}

// New creates a compiler and checks that it can compile.
func New(opts ...Option) (*Compiler, error) {
	o := options{
		defaultProfile: DefaultProfile,
		maxSourceSize:  DefaultMaxSourceSize,
		cacheSize:      DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	profile, err := gpucore.ParseProfile(o.defaultProfile)
	if err != nil {
		return nil, fmt.Errorf("%w: default profile: %w", ErrInit, err)
	}
	if o.maxSourceSize <= 0 {
		return nil, fmt.Errorf("%w: max source size %d", ErrInit, o.maxSourceSize)
	}
	if _, err := naga.Compile(probeSource); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}
	logging.L().Debug("compiler: ready", "profile", profile.String())
	return &Compiler{
		profile: profile,
		maxSize: o.maxSourceSize,
		modules: cache.New[cacheKey, module](o.cacheSize),
	}, nil
}

// CacheStats returns the compiled module cache counters.
func (c *Compiler) CacheStats() cache.Stats {
	return c.modules.Stats()
}

// DefaultProfile returns the profile used when Compile is given none.
func (c *Compiler) DefaultProfile() gpucore.Profile {
	return c.profile
}

// CompileFile reads and compiles a source file.
func (c *Compiler) CompileFile(path, profile string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &CompileError{Source: path, Profile: profile, Diagnostics: err.Error(), Err: err}
	}
	return c.Compile(filepath.Base(path), src, profile)
}

// Compile compiles source for profile. An empty profile selects the
// compiler's default profile. Every failure is a *CompileError.
func (c *Compiler) Compile(name string, source []byte, profile string) (*Program, error) {
	p := c.profile
	if profile != "" {
		var err error
		if p, err = gpucore.ParseProfile(profile); err != nil {
			return nil, &CompileError{Source: name, Profile: profile, Diagnostics: err.Error(), Err: err}
		}
	}
	fail := func(format string, args ...any) error {
		return &CompileError{Source: name, Profile: p.String(), Diagnostics: fmt.Sprintf(format, args...)}
	}
	if p.Stage != gpucore.StageLibrary && p.Stage != gpucore.StageCompute {
		return nil, fail("stage %s cannot be compiled from WGSL compute code", p.Stage)
	}

	text, err := decodeSource(source)
	if err != nil {
		return nil, &CompileError{Source: name, Profile: p.String(), Diagnostics: err.Error(), Err: err}
	}
	if len(text) > c.maxSize {
		return nil, fail("source is %s, limit is %s",
			humanize.IBytes(uint64(len(text))), humanize.IBytes(uint64(c.maxSize)))
	}
	if strings.TrimSpace(text) == "" {
		return nil, fail("empty source")
	}

	key := cacheKey{sum: sha256.Sum256([]byte(text)), profile: p}
	if m, ok := c.modules.Get(key); ok {
		logging.L().Debug("compiler: cache hit", "source", name, "profile", p.String())
		return &Program{Name: name, Profile: p, Bytecode: slices.Clone(m.bytecode), EntryPoints: slices.Clone(m.entries)}, nil
	}

	code, err := naga.Compile(text)
	if err != nil {
		return nil, &CompileError{Source: name, Profile: p.String(), Diagnostics: err.Error()}
	}
	mod, err := spirv.Reflect(code)
	if err != nil {
		return nil, &CompileError{Source: name, Profile: p.String(), Diagnostics: err.Error(), Err: err}
	}

	var entries []string
	for _, ep := range mod.EntryPoints {
		if ep.Model == spirv.ExecutionModelGLCompute {
			entries = append(entries, ep.Name)
		}
	}
	if len(entries) == 0 {
		return nil, fail("no compute entry points")
	}
	if p.Stage == gpucore.StageCompute && len(entries) > 1 {
		return nil, fail("profile %s takes one entry point, source has %d", p, len(entries))
	}

	logging.L().Debug("compiler: compiled",
		"source", name,
		"profile", p.String(),
		"entry_points", entries,
		"bytecode", humanize.IBytes(uint64(len(code))))
	c.modules.Set(key, module{bytecode: slices.Clone(code), entries: slices.Clone(entries)})
	return &Program{Name: name, Profile: p, Bytecode: code, EntryPoints: entries}, nil
}

// decodeSource converts source bytes to UTF-8, honoring a UTF-8 or UTF-16
// byte order mark. Sources without a BOM are taken as UTF-8.
func decodeSource(b []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, b)
	if err != nil {
		return "", fmt.Errorf("decode source: %w", err)
	}
	return string(out), nil
}
