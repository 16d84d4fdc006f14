// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"
	"testing"
	"time"
)

func TestEventSetThenWait(t *testing.T) {
	e := NewEvent()
	defer e.Close()
	e.Set()
	e.Set()
	if res, err := e.Wait(); res != WaitSignaled || err != nil {
		t.Fatalf("Wait() = %v, %v", res, err)
	}

	// Auto-reset: the second Set was absorbed by the first.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if res, err := e.Wait(); res != WaitSignaled || err != nil {
			t.Errorf("Wait() = %v, %v", res, err)
		}
	}()
	select {
	case <-done:
		t.Fatal("Wait returned without a Set")
	case <-time.After(20 * time.Millisecond):
	}
	e.Set()
	<-done
}

func TestEventAbandon(t *testing.T) {
	e := NewEvent()
	defer e.Close()
	cause := errors.New("lost")
	go e.Abandon(cause)
	res, err := e.Wait()
	if res != WaitAbandoned || !errors.Is(err, cause) {
		t.Errorf("Wait() = %v, %v", res, err)
	}
}

func TestEventSetWinsOverAbandon(t *testing.T) {
	e := NewEvent()
	defer e.Close()
	e.Set()
	e.Abandon(nil)
	if res, err := e.Wait(); res != WaitSignaled || err != nil {
		t.Errorf("Wait() = %v, %v", res, err)
	}
	if res, err := e.Wait(); res != WaitAbandoned || !errors.Is(err, ErrDeviceLost) {
		t.Errorf("second Wait() = %v, %v", res, err)
	}
}

func TestEventClosed(t *testing.T) {
	e := NewEvent()
	e.Close()
	e.Close()
	if _, err := e.Wait(); !errors.Is(err, ErrEventClosed) {
		t.Errorf("Wait() error = %v, want ErrEventClosed", err)
	}
	if got := WaitResult(5).String(); got != "Unknown(5)" {
		t.Errorf("String() = %q", got)
	}
}

func TestVirtualAddressRange(t *testing.T) {
	r := GPUVirtualAddressRange{StartAddress: 0x1000, SizeInBytes: 0x100}
	if r.End() != 0x1100 {
		t.Errorf("End() = %#x", r.End())
	}
	tests := []struct {
		addr GPUVirtualAddress
		size uint64
		want bool
	}{
		{0x1000, 0x100, true},
		{0x10f0, 0x10, true},
		{0x10f0, 0x11, false},
		{0xfff, 1, false},
		{0x1000, ^uint64(0), false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.addr, tt.size); got != tt.want {
			t.Errorf("Contains(%#x, %#x) = %v, want %v", tt.addr, tt.size, got, tt.want)
		}
	}
}
