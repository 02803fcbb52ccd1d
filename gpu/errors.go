// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"strings"

	"cogentcore.org/gpubuf/base/errors"
)

// Error kinds returned by this package and the device backends.
// They are always wrapped with context, so test them with [errors.Is].
var (
	// ErrCapacityExceeded is returned for writes that do not fit
	// in a fixed-size buffer or range.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrShapeMismatch is returned when an update does not match
	// the registered element type or shape.
	ErrShapeMismatch = errors.New("type or shape mismatch")

	// ErrDuplicateRegistration is returned when a name or binding
	// point is already in use.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrInvalidIndex is returned for unknown names and out of
	// range indexes.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrNotBound is returned when an object must be bound to a device first.
	ErrNotBound = errors.New("not bound to a device")

	// ErrNotAllocated is returned for operations on a buffer
	// that has been deleted.
	ErrNotAllocated = errors.New("buffer not allocated")

	// ErrAlreadyDeleted is returned for operations on deleted objects.
	ErrAlreadyDeleted = errors.New("already deleted")

	// ErrAlreadyBound is returned when binding an object twice.
	ErrAlreadyBound = errors.New("already bound")

	// ErrCompileFailure is matched by every [*CompileError].
	ErrCompileFailure = errors.New("compile failure")

	// ErrInvalidMode is returned for undefined primitive modes.
	ErrInvalidMode = errors.New("invalid primitive mode")

	// ErrInvalidShape is returned when a shape does not describe its data.
	ErrInvalidShape = errors.New("invalid shape")

	// ErrInvalidArgument is returned for arguments out of their valid domain.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCaptureActive is returned when a capture is already active,
	// or an attachment is made to an active capture.
	ErrCaptureActive = errors.New("capture active")

	// ErrDeviceResourceExhausted is returned when the device
	// cannot allocate the requested storage.
	ErrDeviceResourceExhausted = errors.New("device resource exhausted")

	// ErrUnsupported is returned for features the device does not have.
	ErrUnsupported = errors.New("unsupported by device")
)

// CompileError is returned when a program fails to compile or link.
// It carries the diagnostic text reported by the device.
type CompileError struct {

	// Program is the name of the program.
	Program string

	// Stage is the shader stage that failed, empty for link failures.
	Stage ShaderStages

	// Link is set for link failures.
	Link bool

	// Log is the diagnostic text.
	Log string
}

func (ce *CompileError) Error() string {
	what := "compile " + ce.Stage.String()
	if ce.Link {
		what = "link"
	}
	return fmt.Sprintf("gpu program %q: failed to %s: %s", ce.Program, what, strings.TrimSpace(ce.Log))
}

// Is reports whether target is [ErrCompileFailure].
func (ce *CompileError) Is(target error) bool {
	return target == ErrCompileFailure
}

// DeletedError returns the error for operations on a deleted object
// with the given description: it matches both [ErrNotBound] and
// [ErrAlreadyDeleted].
func DeletedError(what string) error {
	return fmt.Errorf("%s: %w (%w)", what, ErrNotBound, ErrAlreadyDeleted)
}
