// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"fmt"
	"slices"
)

// State is the position of an orchestrator in the dispatch protocol.
type State int

const (
	// StateIdle accepts a new dispatch.
	StateIdle State = iota
	StateRecording
	StateSubmitted
	StateRetired
	StateCopyRecording
	StateCopySubmitted
	StateCopyRetired
	StateMapped
	StateUnmapped

	// StateLost is terminal: the device was lost.
	StateLost
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRecording:
		return "Recording"
	case StateSubmitted:
		return "Submitted"
	case StateRetired:
		return "Retired"
	case StateCopyRecording:
		return "CopyRecording"
	case StateCopySubmitted:
		return "CopySubmitted"
	case StateCopyRetired:
		return "CopyRetired"
	case StateMapped:
		return "Mapped"
	case StateUnmapped:
		return "Unmapped"
	case StateLost:
		return "Lost"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// transitions lists the states each state may move to.
var transitions = map[State][]State{
	StateIdle:          {StateRecording},
	StateRecording:     {StateSubmitted},
	StateSubmitted:     {StateRetired},
	StateRetired:       {StateCopyRecording, StateRecording},
	StateCopyRecording: {StateCopySubmitted},
	StateCopySubmitted: {StateCopyRetired},
	StateCopyRetired:   {StateMapped},
	StateMapped:        {StateUnmapped},
	StateUnmapped:      {StateRecording},
}

func canTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
