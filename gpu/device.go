// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

// BufferHandle identifies a device buffer. It stays the same
// when the storage of the buffer is reallocated.
type BufferHandle uint32

// ProgramHandle identifies a linked device program.
type ProgramHandle uint32

// VertexArrayHandle identifies a vertex array: the binding of
// vertex, instance and index buffers to attribute locations.
type VertexArrayHandle uint32

// VertexAttribute describes one float32 vertex attribute within
// an interleaved vertex buffer.
type VertexAttribute struct {
	Name       string
	Location   int
	Components int

	// Offset in bytes within each element.
	Offset int
}

// VertexArrayDesc describes the buffers and attributes of a vertex array.
type VertexArrayDesc struct {

	// Vertex is the interleaved per-vertex attribute buffer.
	Vertex     BufferHandle
	Stride     int
	Attributes []VertexAttribute

	// Instance is the optional per-instance attribute buffer,
	// advanced once per instance.
	Instance           BufferHandle
	InstanceStride     int
	InstanceAttributes []VertexAttribute

	// Index is the optional uint32 element index buffer.
	Index BufferHandle
}

// Device is the thin abstraction over a graphics or compute device.
// All methods must be called on the goroutine that owns the device,
// which for OpenGL is the locked OS thread with the current context.
// The handles returned are only valid for the device that made them.
type Device interface {

	// Name returns a description of the device.
	Name() string

	// Features returns the optional capabilities of the device.
	Features() Features

	// NewBuffer returns a new buffer handle with no storage.
	NewBuffer(target BufferTargets) (BufferHandle, error)

	// BufferData (re)allocates the storage of the buffer to size bytes,
	// discarding any previous contents.
	BufferData(target BufferTargets, buf BufferHandle, size int, usage Usages) error

	// BufferSubData writes data at the given byte offset into the
	// allocated storage of the buffer.
	BufferSubData(target BufferTargets, buf BufferHandle, offset int, data []byte) error

	// ReadBuffer copies len(dst) bytes at offset into dst, blocking until
	// all prior device work writing the buffer has completed.
	ReadBuffer(target BufferTargets, buf BufferHandle, offset int, dst []byte) error

	// MapPersistent allocates immutable storage of size bytes and
	// maps it for coherent writes until Unmap.
	MapPersistent(target BufferTargets, buf BufferHandle, size int) ([]byte, error)

	// Unmap ends a persistent mapping.
	Unmap(target BufferTargets, buf BufferHandle) error

	// DeleteBuffer releases the buffer.
	DeleteBuffer(buf BufferHandle)

	// BindBufferBase binds the buffer to an indexed binding point
	// of the target (storage, capture or uniform).
	BindBufferBase(target BufferTargets, binding int, buf BufferHandle) error

	// NewProgram compiles and links the program, returning a
	// [*CompileError] on failure.
	NewProgram(src *ProgramSource) (ProgramHandle, error)

	// DeleteProgram releases the program.
	DeleteProgram(p ProgramHandle)

	// DispatchCompute runs the compute program over the given
	// number of work groups, with the storage buffers currently bound.
	DispatchCompute(p ProgramHandle, groups [3]int) error

	// MemoryBarrier orders prior device writes before later accesses.
	MemoryBarrier(b Barriers)

	// NewVertexArray makes a vertex array for the given buffers.
	NewVertexArray(desc *VertexArrayDesc) (VertexArrayHandle, error)

	// SetVertexArrayIndex sets the index buffer of the vertex array
	// (0 for none).
	SetVertexArrayIndex(va VertexArrayHandle, index BufferHandle) error

	// DeleteVertexArray releases the vertex array.
	DeleteVertexArray(va VertexArrayHandle)

	// DrawArrays draws count vertices starting at first.
	DrawArrays(va VertexArrayHandle, mode PrimitiveModes, first, count, instances int) error

	// DrawElements draws count indexed vertices.
	DrawElements(va VertexArrayHandle, mode PrimitiveModes, count, instances int) error

	// BeginCapture makes p the current program and starts capturing
	// its outputs into the buffers bound to [CaptureBuffer] binding points.
	// Draws until EndCapture run through p.
	// If discard is set, rasterization is disabled during the capture.
	BeginCapture(p ProgramHandle, mode PrimitiveModes, discard bool) error

	// EndCapture ends the active capture, blocking until the number
	// of primitives written is available, and returns it.
	EndCapture() (int, error)

	// CaptureActive reports whether a capture is active on the device.
	CaptureActive() bool

	// Release releases all resources of the device.
	Release()
}
