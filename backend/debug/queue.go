// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package debug

import (
	"fmt"

	"github.com/gogpu/workgraph/gpucore"
)

// CommandQueue refuses lists that failed validation and commits the
// tracked state of the lists it executes.
type CommandQueue struct {
	dev   *Device
	inner gpucore.CommandQueue
}

var _ gpucore.CommandQueue = (*CommandQueue)(nil)

// ExecuteCommandLists implements gpucore.CommandQueue.
func (q *CommandQueue) ExecuteCommandLists(lists ...gpucore.CommandList) error {
	inner := make([]gpucore.CommandList, len(lists))
	var tracked []*CommandList
	for i, l := range lists {
		dl, ok := l.(*CommandList)
		if !ok {
			q.dev.report(SeverityWarning, "ExecuteCommandLists", "list %d was not created by the debug device", i)
			inner[i] = l
			continue
		}
		if dl.dev != q.dev {
			return fmt.Errorf("list %d: %w", i, gpucore.ErrForeignObject)
		}
		if dl.violation != nil {
			return fmt.Errorf("list %d: %w", i, dl.violation)
		}
		inner[i] = dl.inner
		tracked = append(tracked, dl)
	}
	if err := q.inner.ExecuteCommandLists(inner...); err != nil {
		return err
	}
	for _, l := range tracked {
		l.commit()
	}
	return nil
}

// Signal implements gpucore.CommandQueue.
func (q *CommandQueue) Signal(fence gpucore.Fence, value uint64) error {
	return q.inner.Signal(fence, value)
}

// Release implements gpucore.CommandQueue.
func (q *CommandQueue) Release() {
	q.inner.Release()
}
