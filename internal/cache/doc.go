// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides a small generic LRU cache.
//
// The compiler keeps compiled modules in a Cache keyed by source digest
// and profile, so running the same graph twice skips the WGSL toolchain.
//
//	c := cache.New[string, int](32)
//	c.Set("key", 42)
//	v, ok := c.Get("key")
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
