// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/workgraph/gpucore"
)

// scheduler runs one DispatchGraph. Node queues live in backing memory.
type scheduler struct {
	ctx   *execContext
	graph *workGraph
	mem   []byte

	groups  uint64
	threads uint64
}

// queue is a FIFO of fixed-size records inside backing memory. Its header
// holds head and tail record indices. Both rewind to zero when it drains.
type queue struct {
	mem      []byte
	off      uint64
	stride   uint32
	capacity uint64
}

func (q queue) head() uint32 { return binary.LittleEndian.Uint32(q.mem[q.off:]) }
func (q queue) tail() uint32 { return binary.LittleEndian.Uint32(q.mem[q.off+4:]) }

func (q queue) setHead(v uint32) { binary.LittleEndian.PutUint32(q.mem[q.off:], v) }
func (q queue) setTail(v uint32) { binary.LittleEndian.PutUint32(q.mem[q.off+4:], v) }

func (q queue) len() uint32 { return q.tail() - q.head() }

func (q queue) slot(i uint32) []byte {
	start := q.off + queueHeaderSize + uint64(i)*uint64(q.stride)
	return q.mem[start : start+uint64(q.stride)]
}

func (q queue) push(record []byte) error {
	t := q.tail()
	if uint64(t) >= q.capacity {
		return fmt.Errorf("%w: %d records", ErrQueueOverflow, q.capacity)
	}
	copy(q.slot(t), record)
	q.setTail(t + 1)
	return nil
}

// pop removes up to limit records from the front.
func (q queue) pop(limit uint32) [][]byte {
	h, t := q.head(), q.tail()
	n := min(limit, t-h)
	out := make([][]byte, n)
	for i := range out {
		out[i] = append([]byte(nil), q.slot(h+uint32(i))...)
	}
	h += n
	if h == t {
		h, t = 0, 0
		q.setTail(t)
	}
	q.setHead(h)
	return out
}

func (s *scheduler) queueOf(n *node) queue {
	return queue{mem: s.mem, off: n.queue, stride: n.kernel.RecordSize, capacity: uint64(n.capacity)}
}

// run stages the entry records in batches that fit the backing memory and
// drives each batch to completion.
func (s *scheduler) run(entry *node, records []byte, stride, count uint32) error {
	var capacity uint64
	if size := uint64(len(s.mem)); size > s.graph.staging+queueHeaderSize {
		capacity = (size - s.graph.staging - queueHeaderSize) / uint64(stride)
	}
	if capacity == 0 {
		return fmt.Errorf("%w: backing memory has no room to stage entry records", ErrQueueOverflow)
	}
	staging := queue{mem: s.mem, off: s.graph.staging, stride: stride, capacity: capacity}
	staging.setHead(0)
	staging.setTail(0)

	for done := uint32(0); done < count; {
		batch := uint32(min(capacity, uint64(count-done)))
		for i := uint32(0); i < batch; i++ {
			start := uint64(done+i) * uint64(stride)
			if err := staging.push(records[start : start+uint64(stride)]); err != nil {
				return err
			}
		}
		done += batch
		for staging.len() > 0 {
			if err := s.launch(entry, staging.pop(s.batchSize(entry))); err != nil {
				return err
			}
		}
	}
	return nil
}

// batchSize is how many records one launch of n consumes.
func (s *scheduler) batchSize(n *node) uint32 {
	if n.kernel.Launch == LaunchCoalescing {
		return n.kernel.MaxInputRecords
	}
	return 1
}

// drain runs every queued record of nodes deeper than depth, deepest first.
func (s *scheduler) drain(depth int) error {
	for {
		var next *node
		for _, n := range s.graph.nodes {
			if n.entry >= 0 || n.depth <= depth {
				continue
			}
			if s.queueOf(n).len() > 0 && (next == nil || n.depth > next.depth) {
				next = n
			}
		}
		if next == nil {
			return nil
		}
		if err := s.launch(next, s.queueOf(next).pop(s.batchSize(next))); err != nil {
			return err
		}
	}
}

// launch runs the thread groups for one record, or one batch for
// coalescing nodes.
func (s *scheduler) launch(n *node, records [][]byte) error {
	switch n.kernel.Launch {
	case LaunchBroadcasting:
		rec := records[0]
		grid := n.kernel.DispatchGrid
		if n.kernel.GridFromRecord {
			for i := range grid {
				grid[i] = binary.LittleEndian.Uint32(rec[n.kernel.GridOffset+uint32(i)*4:])
				if grid[i] > n.kernel.MaxDispatchGrid[i] {
					return fmt.Errorf("node %q: %w: dispatch grid %v exceeds %v",
						n.name, gpucore.ErrInvalidArgument, grid, n.kernel.MaxDispatchGrid)
				}
			}
		}
		for z := uint32(0); z < grid[2]; z++ {
			for y := uint32(0); y < grid[1]; y++ {
				for x := uint32(0); x < grid[0]; x++ {
					if err := s.runGroup(n, rec, nil, [3]uint32{x, y, z}); err != nil {
						return err
					}
				}
			}
		}
		return nil
	case LaunchCoalescing:
		return s.runGroup(n, nil, records, [3]uint32{})
	default:
		return s.runGroup(n, records[0], nil, [3]uint32{})
	}
}

// groupState tracks the outputs of one thread group.
type groupState struct {
	sched   *scheduler
	node    *node
	emitted map[*edge]uint32
}

// runGroup runs every thread of one group, then drains the work it created.
func (s *scheduler) runGroup(n *node, record []byte, batch [][]byte, groupID [3]uint32) error {
	gs := &groupState{sched: s, node: n, emitted: make(map[*edge]uint32)}
	size := n.localSize
	var index uint32
	for z := uint32(0); z < size[2]; z++ {
		for y := uint32(0); y < size[1]; y++ {
			for x := uint32(0); x < size[0]; x++ {
				inv := &Invocation{
					Node:          n.name,
					Record:        record,
					Records:       batch,
					GroupID:       groupID,
					GroupThreadID: [3]uint32{x, y, z},
					DispatchThreadID: [3]uint32{
						groupID[0]*size[0] + x,
						groupID[1]*size[1] + y,
						groupID[2]*size[2] + z,
					},
					GroupIndex: index,
					group:      gs,
				}
				if err := n.kernel.Run(inv); err != nil {
					return fmt.Errorf("node %q group %v thread %d: %w", n.name, groupID, index, err)
				}
				index++
			}
		}
	}
	s.groups++
	s.threads += uint64(index)
	return s.drain(n.depth)
}

func (gs *groupState) emit(target string, record []byte) error {
	n := gs.node
	e := n.output(target)
	if e == nil {
		return fmt.Errorf("%w: node %q has no output %q", gpucore.ErrInvalidArgument, n.name, target)
	}
	if gs.emitted[e] >= e.maxRecords {
		return fmt.Errorf("%w: node %q output %q allows %d records per group", ErrEmitLimit, n.name, target, e.maxRecords)
	}
	if uint32(len(record)) != e.target.kernel.RecordSize {
		return fmt.Errorf("%w: record of %d bytes for %q, want %d",
			gpucore.ErrInvalidArgument, len(record), target, e.target.kernel.RecordSize)
	}
	if err := gs.sched.queueOf(e.target).push(record); err != nil {
		return fmt.Errorf("node %q: %w", target, err)
	}
	gs.emitted[e]++
	return nil
}

// uav resolves the root UAV bound at register u<register> in space.
func (s *scheduler) uav(register, space uint32) (RWBuffer, error) {
	sig := s.ctx.rootSig
	if sig == nil {
		return RWBuffer{}, fmt.Errorf("%w: no root signature bound", gpucore.ErrInvalidArgument)
	}
	for i, p := range sig.desc.Parameters {
		if p.Type != gpucore.RootParameterTypeUAV || p.ShaderRegister != register || p.RegisterSpace != space {
			continue
		}
		addr, ok := s.ctx.rootArgs[uint32(i)]
		if !ok {
			return RWBuffer{}, fmt.Errorf("%w: root UAV u%d space%d is not bound", gpucore.ErrInvalidArgument, register, space)
		}
		res, off, err := s.ctx.dev.lookup(addr, 0)
		if err != nil {
			return RWBuffer{}, err
		}
		if !res.desc.Flags.Contains(gpucore.ResourceFlagAllowUnorderedAccess) {
			return RWBuffer{}, fmt.Errorf("%w: %q does not allow unordered access", gpucore.ErrInvalidArgument, res.desc.Label)
		}
		return RWBuffer{data: res.data[off:]}, nil
	}
	return RWBuffer{}, fmt.Errorf("%w: root signature has no UAV u%d space%d", gpucore.ErrInvalidArgument, register, space)
}
