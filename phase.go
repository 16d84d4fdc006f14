// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package workgraph

import (
	"errors"
	"fmt"
)

// Phase is a step of a run. Its value is the process exit code when the
// step fails.
type Phase int

const (
	PhaseCompilerInit Phase = iota + 1
	PhaseDeviceInit
	PhaseCompile
	PhaseSignature
	PhaseProgram
	PhaseAllocation
	PhaseDispatch
	PhaseReadback

	// PhaseConfig covers loading and validating configuration before any
	// device work.
	PhaseConfig
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	switch p {
	case PhaseCompilerInit:
		return "compiler init"
	case PhaseDeviceInit:
		return "device init"
	case PhaseCompile:
		return "shader compile"
	case PhaseSignature:
		return "root signature build"
	case PhaseProgram:
		return "state object build"
	case PhaseAllocation:
		return "memory allocation"
	case PhaseDispatch:
		return "dispatch"
	case PhaseReadback:
		return "readback"
	case PhaseConfig:
		return "configuration"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// ExitCode returns the process exit code of a failure in p.
func (p Phase) ExitCode() int { return int(p) }

// PhaseError attributes a failure to the phase it happened in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("workgraph: %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// ExitCode maps err to a process exit code: 0 for nil, the phase code for
// a *PhaseError, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase.ExitCode()
	}
	return 1
}

func failed(p Phase, err error) error {
	if err == nil {
		return nil
	}
	return &PhaseError{Phase: p, Err: err}
}
