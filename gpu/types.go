// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"strings"
	"unsafe"
)

// Types is a list of supported element data types for buffer
// contents, used as the type tag of storage buffers so that
// updates can be checked against the registered schema.
type Types int32

const (
	UndefinedType Types = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

// Bytes returns number of bytes for this type
func (tp Types) Bytes() int {
	return TypeSizes[tp]
}

func (tp Types) String() string {
	if tp < 0 || int(tp) >= len(typeNames) {
		return fmt.Sprintf("Types(%d)", int(tp))
	}
	return typeNames[tp]
}

var typeNames = [...]string{"UndefinedType", "Int8", "Uint8", "Int16", "Uint16", "Int32", "Uint32", "Float32", "Float64"}

// TypeSizes gives our data type sizes in bytes
var TypeSizes = map[Types]int{
	Int8:    1,
	Uint8:   1,
	Int16:   2,
	Uint16:  2,
	Int32:   4,
	Uint32:  4,
	Float32: 4,
	Float64: 8,
}

// Element is the set of Go types that can be stored as buffer elements.
type Element interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~float32 | ~float64
}

// TypeOf returns the [Types] tag for element type E,
// determined from the size and kind of its underlying type.
func TypeOf[E Element]() Types {
	var zero E
	one := E(1)
	neg := zero
	neg--
	sz := int(unsafe.Sizeof(zero))
	switch {
	case one/2 != 0:
		if sz == 8 {
			return Float64
		}
		return Float32
	case neg < 0:
		return [...]Types{1: Int8, 2: Int16, 4: Int32}[sz]
	default:
		return [...]Types{1: Uint8, 2: Uint16, 4: Uint32}[sz]
	}
}

// Shape is the dimensions of a storage buffer, outermost first.
type Shape []int

// Len returns the number of elements described by the shape,
// which is the product of its dimensions (1 for an empty shape).
func (sh Shape) Len() int {
	n := 1
	for _, d := range sh {
		n *= d
	}
	return n
}

// Equal returns whether the two shapes have the same dimensions.
func (sh Shape) Equal(o Shape) bool {
	if len(sh) != len(o) {
		return false
	}
	for i, d := range sh {
		if o[i] != d {
			return false
		}
	}
	return true
}

// Valid returns an error if any dimension is negative.
func (sh Shape) Valid() error {
	for i, d := range sh {
		if d < 0 {
			return fmt.Errorf("dimension %d is negative: %d", i, d)
		}
	}
	return nil
}

func (sh Shape) String() string {
	s := make([]string, len(sh))
	for i, d := range sh {
		s[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(s, ", ") + ")"
}

// PrimitiveModes are the primitive topologies used to draw
// or capture vertices.
type PrimitiveModes int32

const (
	Points PrimitiveModes = iota
	Lines
	LineLoop
	LineStrip
	Triangles
	TriangleStrip
	TriangleFan
)

var modeNames = [...]string{"Points", "Lines", "LineLoop", "LineStrip", "Triangles", "TriangleStrip", "TriangleFan"}

// IsValid returns whether the mode is one of the defined modes.
func (pm PrimitiveModes) IsValid() bool {
	return pm >= Points && pm <= TriangleFan
}

func (pm PrimitiveModes) String() string {
	if !pm.IsValid() {
		return fmt.Sprintf("PrimitiveModes(%d)", int(pm))
	}
	return modeNames[pm]
}

// Validate returns [ErrInvalidMode] if the mode is not valid.
func (pm PrimitiveModes) Validate() error {
	if !pm.IsValid() {
		return fmt.Errorf("gpu.PrimitiveModes %d: %w", int(pm), ErrInvalidMode)
	}
	return nil
}

// CaptureMode returns the base primitive captured for this mode:
// strips, loops and fans are captured as their independent
// primitive (Lines or Triangles).
func (pm PrimitiveModes) CaptureMode() PrimitiveModes {
	switch pm {
	case Lines, LineLoop, LineStrip:
		return Lines
	case Triangles, TriangleStrip, TriangleFan:
		return Triangles
	}
	return Points
}

// Vertices returns the number of vertices in one captured primitive
// of the base mode.
func (pm PrimitiveModes) Vertices() int {
	switch pm.CaptureMode() {
	case Lines:
		return 2
	case Triangles:
		return 3
	}
	return 1
}

// BufferTargets are the binding targets of device buffers.
type BufferTargets int32

const (
	// VertexBuffer holds per-vertex or per-instance attributes.
	VertexBuffer BufferTargets = iota

	// IndexBuffer holds uint32 element indices.
	IndexBuffer

	// StorageBuffer is a shader storage buffer read and
	// written by compute kernels.
	StorageBuffer

	// CaptureBuffer receives captured vertex outputs.
	CaptureBuffer

	// UniformBuffer holds small read-only shader parameters.
	UniformBuffer
)

var targetNames = [...]string{"VertexBuffer", "IndexBuffer", "StorageBuffer", "CaptureBuffer", "UniformBuffer"}

func (bt BufferTargets) String() string {
	if bt < 0 || int(bt) >= len(targetNames) {
		return fmt.Sprintf("BufferTargets(%d)", int(bt))
	}
	return targetNames[bt]
}

// Indexed returns whether the target has indexed binding points.
func (bt BufferTargets) Indexed() bool {
	return bt == StorageBuffer || bt == CaptureBuffer || bt == UniformBuffer
}

// Usages are hints about how the contents of a buffer are used.
type Usages int32

const (
	// StaticDraw contents are set once and drawn many times.
	StaticDraw Usages = iota

	// DynamicDraw contents are modified repeatedly.
	DynamicDraw

	// DynamicCopy contents are written by the device and read back.
	DynamicCopy
)

// Barriers are memory barrier bits, ordering device writes
// before subsequent reads.
type Barriers int32

const (
	// StorageBarrier orders storage buffer writes from kernels.
	StorageBarrier Barriers = 1 << iota

	// VertexAttribBarrier orders writes read as vertex attributes.
	VertexAttribBarrier

	// BufferUpdateBarrier orders writes before buffer reads and copies.
	BufferUpdateBarrier

	// AllBarriers orders everything.
	AllBarriers Barriers = StorageBarrier | VertexAttribBarrier | BufferUpdateBarrier
)

// Features are optional device capabilities.
type Features int32

const (
	// FeatureCompute supports compute kernels and storage buffers.
	FeatureCompute Features = 1 << iota

	// FeaturePersistentMapping supports buffers mapped for their whole lifetime.
	FeaturePersistentMapping

	// FeatureCapture supports capturing vertex outputs into buffers.
	FeatureCapture

	// FeatureDraw supports vertex arrays and draw calls.
	FeatureDraw
)

// Has returns whether all of the given features are set.
func (ft Features) Has(f Features) bool {
	return ft&f == f
}

func (ft Features) String() string {
	var s []string
	for i, nm := range []string{"Compute", "PersistentMapping", "Capture", "Draw"} {
		if ft&(1<<i) != 0 {
			s = append(s, nm)
		}
	}
	return strings.Join(s, "|")
}

// CaptureModes determine how multiple captured outputs are laid out.
type CaptureModes int32

const (
	// CaptureInterleaved writes all outputs of a vertex consecutively
	// into a single buffer.
	CaptureInterleaved CaptureModes = iota

	// CaptureSeparate writes each output to its own binding.
	CaptureSeparate
)

// Warps returns the number of warps (work goups of compute threads)
// that is sufficient to compute n elements, given specified number
// of threads per this dimension.
// It just rounds up to nearest even multiple of n divided by threads:
// Ceil(n / threads)
func Warps(n, threads int) int {
	return (n + threads - 1) / threads
}
