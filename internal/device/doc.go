// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device owns a device and its single command stream.
//
// A Context holds the device, one direct command queue, one command
// allocator, one command list, and one fence. Work is recorded into the
// list returned by CommandList and retired synchronously with Flush: the
// list is submitted, the fence is signaled with the next value, and the
// calling goroutine blocks until the GPU reaches it. Only then are the
// allocator and list reset for the next batch.
//
// A wait that does not end signaled is fatal. The context latches
// gpucore.ErrDeviceLost and refuses further work.
package device
