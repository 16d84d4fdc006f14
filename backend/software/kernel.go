// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// LaunchMode is how a node turns input records into thread groups.
type LaunchMode int

const (
	// LaunchBroadcasting runs a grid of thread groups per record. Every
	// thread sees the same record.
	LaunchBroadcasting LaunchMode = iota

	// LaunchCoalescing runs one thread group over a batch of up to
	// MaxInputRecords records.
	LaunchCoalescing

	// LaunchThread runs one single-thread group per record.
	LaunchThread
)

// String returns the string representation of LaunchMode.
func (m LaunchMode) String() string {
	switch m {
	case LaunchBroadcasting:
		return "Broadcasting"
	case LaunchCoalescing:
		return "Coalescing"
	case LaunchThread:
		return "Thread"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// NodeOutput declares an output of a node.
type NodeOutput struct {
	// Target is the entry point name of the receiving node.
	Target string

	// MaxRecords is the most records one thread group may emit.
	MaxRecords uint32
}

// NodeKernel is the CPU implementation of a node entry point.
type NodeKernel struct {
	Launch LaunchMode

	// RecordSize is the input record size in bytes. It must be a multiple
	// of four.
	RecordSize uint32

	// DispatchGrid is the fixed grid of a broadcasting node.
	DispatchGrid [3]uint32

	// GridFromRecord reads the grid of a broadcasting node from three
	// uint32 values at GridOffset in each record. MaxDispatchGrid bounds it.
	GridFromRecord  bool
	GridOffset      uint32
	MaxDispatchGrid [3]uint32

	// MaxInputRecords bounds the batch of a coalescing node.
	MaxInputRecords uint32

	Outputs []NodeOutput

	// Run executes one thread.
	Run func(inv *Invocation) error
}

func (k *NodeKernel) validate() error {
	if k.Run == nil {
		return fmt.Errorf("nil Run")
	}
	if k.RecordSize == 0 || k.RecordSize%4 != 0 {
		return fmt.Errorf("record size %d is not a positive multiple of 4", k.RecordSize)
	}
	switch k.Launch {
	case LaunchBroadcasting:
		if k.GridFromRecord {
			if k.GridOffset%4 != 0 || k.GridOffset+12 > k.RecordSize {
				return fmt.Errorf("dispatch grid at offset %d does not fit a %d byte record", k.GridOffset, k.RecordSize)
			}
			if gridVolume(k.MaxDispatchGrid) == 0 {
				return fmt.Errorf("grid from record needs a max dispatch grid")
			}
		} else if gridVolume(k.DispatchGrid) == 0 {
			return fmt.Errorf("broadcasting node needs a dispatch grid")
		}
	case LaunchCoalescing:
		if k.MaxInputRecords == 0 {
			return fmt.Errorf("coalescing node needs max input records")
		}
	case LaunchThread:
	default:
		return fmt.Errorf("unknown launch mode %d", k.Launch)
	}
	for _, o := range k.Outputs {
		if o.Target == "" || o.MaxRecords == 0 {
			return fmt.Errorf("output %q needs a target and max records", o.Target)
		}
	}
	return nil
}

func gridVolume(g [3]uint32) uint64 {
	return uint64(g[0]) * uint64(g[1]) * uint64(g[2])
}

var (
	kernelsMu sync.RWMutex
	kernels   = make(map[string]NodeKernel)
)

// RegisterNode registers the kernel for a node entry point name.
// This is typically called from init() functions. If a kernel with the same
// name is already registered, it will be replaced.
func RegisterNode(entryPoint string, k NodeKernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[entryPoint] = k
}

// UnregisterNode removes a kernel. This is useful for testing.
func UnregisterNode(entryPoint string) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	delete(kernels, entryPoint)
}

func lookupNode(entryPoint string) (NodeKernel, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	k, ok := kernels[entryPoint]
	return k, ok
}

// Invocation is the view of one node thread.
type Invocation struct {
	// Node is the entry point name of the running node.
	Node string

	// Record is the input record of broadcasting and thread nodes.
	Record []byte

	// Records holds the input batch of coalescing nodes.
	Records [][]byte

	GroupID          [3]uint32
	GroupThreadID    [3]uint32
	DispatchThreadID [3]uint32

	// GroupIndex is the flattened GroupThreadID.
	GroupIndex uint32

	group *groupState
}

// Uint32 reads a little-endian uint32 from Record at byte offset off.
// Out of range reads return zero.
func (inv *Invocation) Uint32(off uint32) uint32 {
	if uint64(off)+4 > uint64(len(inv.Record)) {
		return 0
	}
	return binary.LittleEndian.Uint32(inv.Record[off:])
}

// UAV returns the buffer bound to the root UAV at register u<register>
// in the given space.
func (inv *Invocation) UAV(register, space uint32) (RWBuffer, error) {
	return inv.group.sched.uav(register, space)
}

// Emit sends a record to the named output node.
func (inv *Invocation) Emit(target string, record []byte) error {
	return inv.group.emit(target, record)
}

// RWBuffer is a raw read-write buffer view, as a root UAV exposes it.
type RWBuffer struct {
	data []byte
}

// Len returns the size of the view in bytes.
func (b RWBuffer) Len() int { return len(b.data) }

// Load reads the uint32 at byte offset off.
func (b RWBuffer) Load(off uint32) (uint32, error) {
	if off%4 != 0 || uint64(off)+4 > uint64(len(b.data)) {
		return 0, fmt.Errorf("%w: load at %d of %d bytes", ErrOutOfBounds, off, len(b.data))
	}
	return binary.LittleEndian.Uint32(b.data[off:]), nil
}

// Store writes v at byte offset off.
func (b RWBuffer) Store(off, v uint32) error {
	if off%4 != 0 || uint64(off)+4 > uint64(len(b.data)) {
		return fmt.Errorf("%w: store at %d of %d bytes", ErrOutOfBounds, off, len(b.data))
	}
	binary.LittleEndian.PutUint32(b.data[off:], v)
	return nil
}

// InterlockedAdd adds v to the uint32 at off and returns the old value.
// Kernels of one dispatch run sequentially, so no atomics are needed.
func (b RWBuffer) InterlockedAdd(off, v uint32) (uint32, error) {
	old, err := b.Load(off)
	if err != nil {
		return 0, err
	}
	return old, b.Store(off, old+v)
}
