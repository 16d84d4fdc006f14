// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"
	"fmt"
	"sync"
)

// ErrEventClosed is returned when waiting on a closed event.
var ErrEventClosed = errors.New("gpucore: event is closed")

// WaitResult is the outcome of Event.Wait.
type WaitResult int

const (
	// WaitSignaled means the event was set.
	WaitSignaled WaitResult = iota

	// WaitAbandoned means the event will never be set, usually because the
	// device that owned the armed fence was removed.
	WaitAbandoned
)

// String returns the string representation of WaitResult.
func (r WaitResult) String() string {
	switch r {
	case WaitSignaled:
		return "Signaled"
	case WaitAbandoned:
		return "Abandoned"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// Event is an auto-reset, CPU-waitable synchronization object.
//
// A fence sets the event when it reaches the value the event was armed
// with. A single Wait consumes one Set.
type Event struct {
	signal chan struct{}

	mu        sync.Mutex
	done      chan struct{}
	abandoned error
	closed    bool
}

// NewEvent creates an unsignaled event.
func NewEvent() *Event {
	return &Event{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Set signals the event. Setting an already signaled event is a no-op.
func (e *Event) Set() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

// Abandon wakes every current and future waiter with WaitAbandoned.
// Only the first reason is kept.
func (e *Event) Abandon(reason error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.abandoned != nil || e.closed {
		return
	}
	if reason == nil {
		reason = ErrDeviceLost
	}
	e.abandoned = reason
	close(e.done)
}

// Wait blocks until the event is set or abandoned. There is no timeout.
//
// A pending Set wins over an abandonment that happened afterwards, so a
// completed batch is never reported as lost.
func (e *Event) Wait() (WaitResult, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return WaitAbandoned, ErrEventClosed
	}
	e.mu.Unlock()

	select {
	case <-e.signal:
		return WaitSignaled, nil
	case <-e.done:
		select {
		case <-e.signal:
			return WaitSignaled, nil
		default:
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return WaitAbandoned, e.abandoned
	}
}

// Close releases the event. Waiters blocked in Wait are abandoned.
func (e *Event) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.abandoned == nil {
		e.abandoned = ErrEventClosed
		close(e.done)
	}
	e.closed = true
}
