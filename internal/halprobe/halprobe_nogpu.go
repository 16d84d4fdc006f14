// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build nogpu

package halprobe

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// ErrUnavailable is returned when no HAL backend could be probed.
var ErrUnavailable = errors.New("halprobe: no HAL backend available")

// Adapter describes one host adapter.
type Adapter struct {
	Backend    gputypes.Backend
	Name       string
	DeviceType gputypes.DeviceType
}

// Kind returns a short device type name.
func (a Adapter) Kind() string { return "other" }

// Probe always fails in builds without GPU support.
func Probe(...gputypes.Backend) ([]Adapter, error) {
	return nil, ErrUnavailable
}
