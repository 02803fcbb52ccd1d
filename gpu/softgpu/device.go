// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package softgpu provides a software [gpu.Device] implemented in
// pure Go. Kernels are Go functions registered by name, and referred
// to by [gpu.Kernel] shaders in program sources. It is used for tests
// and as a fallback where no OpenGL context or WebGPU adapter exists.
package softgpu

import (
	"fmt"
	"slices"
	"sync"

	"cogentcore.org/gpubuf/gpu"
)

type buffer struct {
	target     gpu.BufferTargets
	data       []byte
	allocated  bool
	persistent bool
	mapped     bool
}

type vertexArray struct {
	desc gpu.VertexArrayDesc
}

// Stats are counters of the work done by a [Device].
type Stats struct {
	Allocs       int
	Writes       int
	Reads        int
	BytesWritten int
	Dispatches   int
	Draws        int

	// MemoryUsed is the number of bytes of allocated buffer storage.
	MemoryUsed int
}

// DrawCall records one draw made on a [Device].
type DrawCall struct {
	VertexArray gpu.VertexArrayHandle
	Mode        gpu.PrimitiveModes
	First       int
	Count       int
	Instances   int
	Indexed     bool
	Captured    bool
}

// Device is a software [gpu.Device].
type Device struct {

	// Label is returned by Name.
	Label string

	// Feats are the features reported by the device; all by default.
	Feats gpu.Features

	// MemoryLimit is the maximum number of bytes of buffer storage,
	// 0 for no limit. Allocations beyond it return
	// [gpu.ErrDeviceResourceExhausted].
	MemoryLimit int

	mu       sync.Mutex
	next     uint32
	buffers  map[gpu.BufferHandle]*buffer
	programs map[gpu.ProgramHandle]*program
	arrays   map[gpu.VertexArrayHandle]*vertexArray
	bindings map[gpu.BufferTargets]map[int]gpu.BufferHandle
	compute  map[string]ComputeFunc
	vertex   map[string]VertexFunc
	capture  *captureState
	stats    Stats
	draws    []DrawCall
	barriers []gpu.Barriers
}

// NewDevice returns a new software device with all features,
// and the built-in pass-through vertex kernel registered.
func NewDevice() *Device {
	dv := &Device{
		Label:    "softgpu",
		Feats:    gpu.FeatureCompute | gpu.FeaturePersistentMapping | gpu.FeatureCapture | gpu.FeatureDraw,
		buffers:  make(map[gpu.BufferHandle]*buffer),
		programs: make(map[gpu.ProgramHandle]*program),
		arrays:   make(map[gpu.VertexArrayHandle]*vertexArray),
		bindings: make(map[gpu.BufferTargets]map[int]gpu.BufferHandle),
		compute:  make(map[string]ComputeFunc),
		vertex:   make(map[string]VertexFunc),
	}
	dv.vertex[gpu.PassthroughName] = Passthrough
	return dv
}

func (dv *Device) Name() string           { return dv.Label }
func (dv *Device) Features() gpu.Features { return dv.Feats }

// Stats returns the current work counters.
func (dv *Device) Stats() Stats {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.stats
}

// Draws returns all draws made so far.
func (dv *Device) Draws() []DrawCall {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return slices.Clone(dv.draws)
}

// LastDraw returns the most recent draw, if any.
func (dv *Device) LastDraw() (DrawCall, bool) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	if len(dv.draws) == 0 {
		return DrawCall{}, false
	}
	return dv.draws[len(dv.draws)-1], true
}

// Barriers returns all memory barriers issued so far.
func (dv *Device) Barriers() []gpu.Barriers {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return slices.Clone(dv.barriers)
}

// ResetStats clears the counters, draws and barriers.
// MemoryUsed is kept.
func (dv *Device) ResetStats() {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.stats = Stats{MemoryUsed: dv.stats.MemoryUsed}
	dv.draws = nil
	dv.barriers = nil
}

// BufferContents returns a copy of the whole storage of the buffer,
// nil if there is no such buffer.
func (dv *Device) BufferContents(h gpu.BufferHandle) []byte {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	bf, ok := dv.buffers[h]
	if !ok {
		return nil
	}
	return slices.Clone(bf.data)
}

// NumBuffers returns the number of live buffers.
func (dv *Device) NumBuffers() int {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return len(dv.buffers)
}

func (dv *Device) newHandle() uint32 {
	dv.next++
	return dv.next
}

func (dv *Device) buffer(op string, h gpu.BufferHandle) (*buffer, error) {
	bf, ok := dv.buffers[h]
	if !ok {
		return nil, fmt.Errorf("softgpu %s: no buffer %d: %w", op, h, gpu.ErrInvalidArgument)
	}
	return bf, nil
}

func (dv *Device) NewBuffer(target gpu.BufferTargets) (gpu.BufferHandle, error) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	h := gpu.BufferHandle(dv.newHandle())
	dv.buffers[h] = &buffer{target: target}
	return h, nil
}

func (dv *Device) alloc(op string, bf *buffer, size int) error {
	if size < 0 {
		return fmt.Errorf("softgpu %s: negative size %d: %w", op, size, gpu.ErrInvalidArgument)
	}
	used := dv.stats.MemoryUsed - len(bf.data) + size
	if dv.MemoryLimit > 0 && used > dv.MemoryLimit {
		return fmt.Errorf("softgpu %s: %d bytes over limit of %d: %w", op, used, dv.MemoryLimit, gpu.ErrDeviceResourceExhausted)
	}
	bf.data = make([]byte, size)
	bf.allocated = true
	dv.stats.MemoryUsed = used
	dv.stats.Allocs++
	return nil
}

func (dv *Device) BufferData(target gpu.BufferTargets, h gpu.BufferHandle, size int, usage gpu.Usages) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	bf, err := dv.buffer("BufferData", h)
	if err != nil {
		return err
	}
	if bf.persistent {
		return fmt.Errorf("softgpu BufferData: buffer %d has immutable storage: %w", h, gpu.ErrInvalidArgument)
	}
	return dv.alloc("BufferData", bf, size)
}

func (dv *Device) BufferSubData(target gpu.BufferTargets, h gpu.BufferHandle, offset int, data []byte) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	bf, err := dv.buffer("BufferSubData", h)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > len(bf.data) {
		return fmt.Errorf("softgpu BufferSubData: %d bytes at %d outside of buffer %d size %d: %w", len(data), offset, h, len(bf.data), gpu.ErrInvalidArgument)
	}
	copy(bf.data[offset:], data)
	dv.stats.Writes++
	dv.stats.BytesWritten += len(data)
	return nil
}

func (dv *Device) ReadBuffer(target gpu.BufferTargets, h gpu.BufferHandle, offset int, dst []byte) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	bf, err := dv.buffer("ReadBuffer", h)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(dst) > len(bf.data) {
		return fmt.Errorf("softgpu ReadBuffer: %d bytes at %d outside of buffer %d size %d: %w", len(dst), offset, h, len(bf.data), gpu.ErrInvalidArgument)
	}
	copy(dst, bf.data[offset:])
	dv.stats.Reads++
	return nil
}

func (dv *Device) MapPersistent(target gpu.BufferTargets, h gpu.BufferHandle, size int) ([]byte, error) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	if !dv.Feats.Has(gpu.FeaturePersistentMapping) {
		return nil, fmt.Errorf("softgpu MapPersistent: %w", gpu.ErrUnsupported)
	}
	bf, err := dv.buffer("MapPersistent", h)
	if err != nil {
		return nil, err
	}
	if bf.persistent {
		return nil, fmt.Errorf("softgpu MapPersistent: buffer %d has immutable storage: %w", h, gpu.ErrInvalidArgument)
	}
	if err := dv.alloc("MapPersistent", bf, size); err != nil {
		return nil, err
	}
	bf.persistent = true
	bf.mapped = true
	return bf.data, nil
}

func (dv *Device) Unmap(target gpu.BufferTargets, h gpu.BufferHandle) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	bf, err := dv.buffer("Unmap", h)
	if err != nil {
		return err
	}
	if !bf.mapped {
		return fmt.Errorf("softgpu Unmap: buffer %d is not mapped: %w", h, gpu.ErrInvalidArgument)
	}
	bf.mapped = false
	return nil
}

func (dv *Device) DeleteBuffer(h gpu.BufferHandle) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	bf, ok := dv.buffers[h]
	if !ok {
		return
	}
	dv.stats.MemoryUsed -= len(bf.data)
	delete(dv.buffers, h)
	for _, bs := range dv.bindings {
		for b, bh := range bs {
			if bh == h {
				delete(bs, b)
			}
		}
	}
}

func (dv *Device) BindBufferBase(target gpu.BufferTargets, binding int, h gpu.BufferHandle) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	if !target.Indexed() || binding < 0 {
		return fmt.Errorf("softgpu BindBufferBase: %s binding %d: %w", target, binding, gpu.ErrInvalidArgument)
	}
	bf, err := dv.buffer("BindBufferBase", h)
	if err != nil {
		return err
	}
	if !bf.allocated {
		return fmt.Errorf("softgpu BindBufferBase: buffer %d has no storage: %w", h, gpu.ErrNotAllocated)
	}
	bs := dv.bindings[target]
	if bs == nil {
		bs = make(map[int]gpu.BufferHandle)
		dv.bindings[target] = bs
	}
	bs[binding] = h
	return nil
}

// bound returns the storage of the buffer bound at the binding, or nil.
func (dv *Device) bound(target gpu.BufferTargets, binding int) []byte {
	h, ok := dv.bindings[target][binding]
	if !ok {
		return nil
	}
	if bf, ok := dv.buffers[h]; ok {
		return bf.data
	}
	return nil
}

func (dv *Device) MemoryBarrier(b gpu.Barriers) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.barriers = append(dv.barriers, b)
}

func (dv *Device) NewVertexArray(desc *gpu.VertexArrayDesc) (gpu.VertexArrayHandle, error) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	if !dv.Feats.Has(gpu.FeatureDraw) {
		return 0, fmt.Errorf("softgpu NewVertexArray: %w", gpu.ErrUnsupported)
	}
	for _, h := range []gpu.BufferHandle{desc.Vertex, desc.Instance, desc.Index} {
		if h == 0 {
			continue
		}
		if _, err := dv.buffer("NewVertexArray", h); err != nil {
			return 0, err
		}
	}
	va := gpu.VertexArrayHandle(dv.newHandle())
	d := *desc
	d.Attributes = slices.Clone(desc.Attributes)
	d.InstanceAttributes = slices.Clone(desc.InstanceAttributes)
	dv.arrays[va] = &vertexArray{desc: d}
	return va, nil
}

func (dv *Device) SetVertexArrayIndex(va gpu.VertexArrayHandle, index gpu.BufferHandle) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	vo, ok := dv.arrays[va]
	if !ok {
		return fmt.Errorf("softgpu SetVertexArrayIndex: no vertex array %d: %w", va, gpu.ErrInvalidArgument)
	}
	vo.desc.Index = index
	return nil
}

func (dv *Device) DeleteVertexArray(va gpu.VertexArrayHandle) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	delete(dv.arrays, va)
}

func (dv *Device) draw(op string, va gpu.VertexArrayHandle, mode gpu.PrimitiveModes, first, count, instances int, indexed bool) error {
	if err := mode.Validate(); err != nil {
		return fmt.Errorf("softgpu %s: %w", op, err)
	}
	vo, ok := dv.arrays[va]
	if !ok {
		return fmt.Errorf("softgpu %s: no vertex array %d: %w", op, va, gpu.ErrInvalidArgument)
	}
	if first < 0 || count < 0 || instances < 1 {
		return fmt.Errorf("softgpu %s: first %d count %d instances %d: %w", op, first, count, instances, gpu.ErrInvalidArgument)
	}
	var verts []int
	if indexed {
		ib, ok := dv.buffers[vo.desc.Index]
		if vo.desc.Index == 0 || !ok {
			return fmt.Errorf("softgpu %s: vertex array %d has no index buffer: %w", op, va, gpu.ErrInvalidArgument)
		}
		idx := gpu.FromBytes[uint32](ib.data)
		if count > len(idx) {
			return fmt.Errorf("softgpu %s: %d indexes, buffer has %d: %w", op, count, len(idx), gpu.ErrInvalidArgument)
		}
		verts = make([]int, count)
		for i := range count {
			verts[i] = int(idx[i])
		}
	} else {
		verts = make([]int, count)
		for i := range count {
			verts[i] = first + i
		}
	}
	captured := false
	if dv.capture != nil {
		if err := dv.captureDraw(vo, mode, verts, instances); err != nil {
			return fmt.Errorf("softgpu %s: %w", op, err)
		}
		captured = true
	}
	dv.stats.Draws++
	dv.draws = append(dv.draws, DrawCall{VertexArray: va, Mode: mode, First: first, Count: count, Instances: instances, Indexed: indexed, Captured: captured})
	return nil
}

func (dv *Device) DrawArrays(va gpu.VertexArrayHandle, mode gpu.PrimitiveModes, first, count, instances int) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.draw("DrawArrays", va, mode, first, count, instances, false)
}

func (dv *Device) DrawElements(va gpu.VertexArrayHandle, mode gpu.PrimitiveModes, count, instances int) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.draw("DrawElements", va, mode, 0, count, instances, true)
}

// Release releases all buffers, programs and vertex arrays.
func (dv *Device) Release() {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	clear(dv.buffers)
	clear(dv.programs)
	clear(dv.arrays)
	clear(dv.bindings)
	dv.capture = nil
	dv.stats.MemoryUsed = 0
}

var _ gpu.Device = (*Device)(nil)
