// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"slices"
	"sort"

	"cogentcore.org/gpubuf/base/errors"
)

// BufferObject is a device buffer that can be attached as
// a capture target: both [Buffer] and [StreamBuffer] are.
type BufferObject interface {
	Handle() BufferHandle
	ByteSize() int
}

type captureTarget struct {
	buf     BufferObject
	binding int
}

// Capture is a vertex program whose named outputs are captured
// into attached buffers, within a Begin / End bracket.
// Only one capture can be active on a device at a time.
//
// All methods must be called on the goroutine owning the device.
type Capture struct {

	// Name is used in errors and logging.
	Name string

	// Varyings are the captured outputs, in order.
	Varyings []string

	// Mode is the layout of the captured outputs.
	Mode CaptureModes

	// Discard disables rasterization while capturing (default true).
	Discard bool

	source  *ProgramSource
	device  Device
	program ProgramHandle
	targets []captureTarget
	active  bool
	mode    PrimitiveModes
	deleted bool
}

// NewCapture compiles and links the given vertex program so that the
// given outputs are captured, in order. If no varyings are given,
// those of src are used. A nil src uses the built-in pass-through
// program capturing outPosition from the position input.
// On compile or link failure the returned error matches
// [ErrCompileFailure] and carries the diagnostics.
func NewCapture(dev Device, src *ProgramSource, varyings ...string) (*Capture, error) {
	if src == nil {
		src = PassthroughSource()
	}
	if !dev.Features().Has(FeatureCapture) {
		return nil, fmt.Errorf("gpu.NewCapture %s: capture on %s: %w", src.Name, dev.Name(), ErrUnsupported)
	}
	ps := *src
	if len(varyings) > 0 {
		ps.Varyings = slices.Clone(varyings)
	}
	if len(ps.Varyings) == 0 {
		return nil, fmt.Errorf("gpu.NewCapture %s: no varyings to capture: %w", ps.Name, ErrInvalidArgument)
	}
	if _, ok := ps.Stage(VertexShader, GLSL, WGSL, Kernel); !ok {
		return nil, fmt.Errorf("gpu.NewCapture %s: source has no vertex stage: %w", ps.Name, ErrInvalidArgument)
	}
	p, err := dev.NewProgram(&ps)
	if err != nil {
		return nil, fmt.Errorf("gpu.NewCapture %s: %w", ps.Name, err)
	}
	cp := &Capture{
		Name:     ps.Name,
		Varyings: ps.Varyings,
		Mode:     ps.CaptureMode,
		Discard:  true,
		source:   &ps,
		device:   dev,
		program:  p,
	}
	return cp, nil
}

// Program returns the handle of the capture program.
func (cp *Capture) Program() ProgramHandle {
	return cp.program
}

// IsActive returns whether the capture is between Begin and End.
func (cp *Capture) IsActive() bool {
	return cp.active
}

// Attach attaches the buffer as the capture target at the given binding.
// It can be called any number of times before Begin, with distinct
// bindings. In interleaved mode only binding 0 is used; in separate
// mode binding i receives varying i.
func (cp *Capture) Attach(buf BufferObject, binding int) error {
	if cp.deleted {
		return fmt.Errorf("gpu.Capture Attach %s: %w", cp.Name, ErrAlreadyDeleted)
	}
	if cp.active {
		return fmt.Errorf("gpu.Capture Attach %s: %w", cp.Name, ErrCaptureActive)
	}
	if buf == nil || binding < 0 {
		return fmt.Errorf("gpu.Capture Attach %s: invalid buffer or binding %d: %w", cp.Name, binding, ErrInvalidArgument)
	}
	for _, t := range cp.targets {
		if t.binding == binding {
			return fmt.Errorf("gpu.Capture Attach %s: binding %d: %w", cp.Name, binding, ErrDuplicateRegistration)
		}
	}
	cp.targets = append(cp.targets, captureTarget{buf: buf, binding: binding})
	sort.Slice(cp.targets, func(i, j int) bool { return cp.targets[i].binding < cp.targets[j].binding })
	return nil
}

// requiredBindings returns the number of bindings that must be attached.
func (cp *Capture) requiredBindings() int {
	if cp.Mode == CaptureSeparate {
		return len(cp.Varyings)
	}
	return 1
}

// Begin starts capturing the primitives of the given mode, drawn
// until End. Strips, loops and fans are captured as independent
// lines or triangles. Beginning while any capture is active on the
// device returns [ErrCaptureActive].
func (cp *Capture) Begin(mode PrimitiveModes) error {
	if cp.deleted {
		return fmt.Errorf("gpu.Capture Begin %s: %w", cp.Name, ErrAlreadyDeleted)
	}
	if cp.active || cp.device.CaptureActive() {
		return fmt.Errorf("gpu.Capture Begin %s: %w", cp.Name, ErrCaptureActive)
	}
	if err := mode.Validate(); err != nil {
		return fmt.Errorf("gpu.Capture Begin %s: %w", cp.Name, err)
	}
	for b := range cp.requiredBindings() {
		if !slices.ContainsFunc(cp.targets, func(t captureTarget) bool { return t.binding == b }) {
			return fmt.Errorf("gpu.Capture Begin %s: no buffer attached at binding %d: %w", cp.Name, b, ErrNotBound)
		}
	}
	for _, t := range cp.targets {
		h := t.buf.Handle()
		if h == 0 {
			return fmt.Errorf("gpu.Capture Begin %s: buffer at binding %d: %w", cp.Name, t.binding, ErrNotAllocated)
		}
		if err := cp.device.BindBufferBase(CaptureBuffer, t.binding, h); err != nil {
			return fmt.Errorf("gpu.Capture Begin %s: %w", cp.Name, err)
		}
	}
	if err := cp.device.BeginCapture(cp.program, mode.CaptureMode(), cp.Discard); err != nil {
		return fmt.Errorf("gpu.Capture Begin %s: %w", cp.Name, err)
	}
	cp.active = true
	cp.mode = mode
	return nil
}

// DrawArrays draws count vertices starting at first from the given
// vertex array, in the mode given to Begin.
func (cp *Capture) DrawArrays(va VertexArrayHandle, first, count int) error {
	if !cp.active {
		return fmt.Errorf("gpu.Capture DrawArrays %s: capture not begun: %w", cp.Name, ErrInvalidArgument)
	}
	return cp.device.DrawArrays(va, cp.mode, first, count, 1)
}

// End ends the capture, blocking until the number of primitives
// written is available, and returns it.
func (cp *Capture) End() (int, error) {
	if !cp.active {
		return 0, fmt.Errorf("gpu.Capture End %s: capture not begun: %w", cp.Name, ErrInvalidArgument)
	}
	cp.active = false
	n, err := cp.device.EndCapture()
	if err != nil {
		return 0, fmt.Errorf("gpu.Capture End %s: %w", cp.Name, err)
	}
	Logger().Debug("gpu.Capture ended", "capture", cp.Name, "primitives", n)
	return n, nil
}

// Delete ends any active capture and releases the program.
// Attached buffers are not owned by the capture and are not deleted.
func (cp *Capture) Delete() {
	if cp.deleted {
		return
	}
	if cp.active {
		errors.Log1(cp.End())
	}
	cp.device.DeleteProgram(cp.program)
	cp.targets = nil
	cp.deleted = true
}
