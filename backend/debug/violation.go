// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package debug

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every error-severity Violation.
var ErrValidation = errors.New("debug: validation failed")

// Severity is how serious a violation is.
type Severity int

const (
	// SeverityWarning marks suspicious but executable usage.
	SeverityWarning Severity = iota

	// SeverityError marks usage that is invalid. The command list that
	// recorded it fails Close.
	SeverityError
)

// String returns the string representation of Severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Violation is one validation message.
type Violation struct {
	Severity Severity

	// Command is the API call that triggered the message.
	Command string

	Message string
}

// Error implements error.
func (v *Violation) Error() string {
	return fmt.Sprintf("debug: %s: %s: %s", v.Severity, v.Command, v.Message)
}

// Unwrap returns ErrValidation.
func (v *Violation) Unwrap() error {
	return ErrValidation
}

// MessageFunc receives every violation the layer reports.
type MessageFunc func(v Violation)
