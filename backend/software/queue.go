// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/workgraph/gpucore"
	"github.com/gogpu/workgraph/internal/logging"
)

// queueDepth bounds the number of unretired submissions per queue.
const queueDepth = 64

// CommandQueue is a software gpucore.CommandQueue. A worker goroutine
// executes submissions in order and signals fences after the work before
// them retired.
type CommandQueue struct {
	dev  *Device
	desc gpucore.CommandQueueDesc
	work chan submission
	done chan struct{}

	mu       sync.Mutex
	released bool
}

var _ gpucore.CommandQueue = (*CommandQueue)(nil)

// submission is either a batch of lists or a fence signal.
type submission struct {
	lists []submittedList
	fence *Fence
	value uint64
}

type submittedList struct {
	cmds  []command
	alloc *CommandAllocator
}

func newCommandQueue(d *Device, desc gpucore.CommandQueueDesc) *CommandQueue {
	q := &CommandQueue{
		dev:  d,
		desc: desc,
		work: make(chan submission, queueDepth),
		done: make(chan struct{}),
	}
	go q.worker()
	return q
}

// ExecuteCommandLists implements gpucore.CommandQueue.
func (q *CommandQueue) ExecuteCommandLists(lists ...gpucore.CommandList) error {
	if err := q.dev.RemovedReason(); err != nil {
		return err
	}
	batch := make([]submittedList, 0, len(lists))
	for i, cl := range lists {
		l, ok := cl.(*CommandList)
		if !ok || l == nil || l.dev != q.dev {
			return fmt.Errorf("list %d: %w", i, gpucore.ErrForeignObject)
		}
		if l.open {
			return fmt.Errorf("list %d: %w", i, gpucore.ErrCommandListOpen)
		}
		if l.err != nil {
			return fmt.Errorf("%w: list %d was closed with a recording error: %w", gpucore.ErrInvalidArgument, i, l.err)
		}
		batch = append(batch, submittedList{cmds: l.cmds, alloc: l.alloc})
	}
	for _, s := range batch {
		s.alloc.submit()
	}
	return q.enqueue(submission{lists: batch})
}

// Signal implements gpucore.CommandQueue.
func (q *CommandQueue) Signal(fence gpucore.Fence, value uint64) error {
	f, err := q.dev.ownFence(fence)
	if err != nil {
		return err
	}
	if err := q.dev.RemovedReason(); err != nil {
		return err
	}
	return q.enqueue(submission{fence: f, value: value})
}

func (q *CommandQueue) enqueue(s submission) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		for _, l := range s.lists {
			l.alloc.retire()
		}
		return fmt.Errorf("%w: command queue", ErrReleased)
	}
	q.work <- s
	return nil
}

// Release implements gpucore.CommandQueue. It waits for submitted work to
// finish.
func (q *CommandQueue) Release() {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return
	}
	q.released = true
	close(q.work)
	q.mu.Unlock()
	<-q.done
}

func (q *CommandQueue) worker() {
	defer close(q.done)
	for s := range q.work {
		for _, l := range s.lists {
			q.execute(l)
			l.alloc.retire()
		}
		if s.fence != nil && q.dev.RemovedReason() == nil {
			s.fence.signal(s.value)
		}
	}
}

// execute runs one list. A failing command removes the device; the rest of
// the list and all later lists are dropped.
func (q *CommandQueue) execute(l submittedList) {
	if q.dev.RemovedReason() != nil {
		return
	}
	ctx := &execContext{dev: q.dev}
	for _, c := range l.cmds {
		if q.dev.faults != nil {
			if err := q.dev.faults(c.name()); err != nil {
				q.dev.remove(fmt.Errorf("%s: injected fault: %w", c.name(), err))
				return
			}
		}
		if err := c.execute(ctx); err != nil {
			logging.L().Warn("software: command failed", "queue", q.desc.Label, "command", c.name(), "err", err)
			q.dev.remove(fmt.Errorf("%s: %w", c.name(), err))
			return
		}
	}
}
