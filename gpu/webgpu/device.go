// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webgpu provides a compute-only [gpu.Device] on WebGPU,
// running WGSL kernels. It has no persistent mapping, vertex arrays,
// draws or capture: those return [gpu.ErrUnsupported].
package webgpu

import (
	"fmt"

	"cogentcore.org/gpubuf/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Device is a WebGPU [gpu.Device].
type Device struct {

	// Device is the logical WebGPU device.
	Device *wgpu.Device

	// Queue is the queue of the device.
	Queue *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	buffers  map[gpu.BufferHandle]*buffer
	programs map[gpu.ProgramHandle]*program
	bindings map[int]gpu.BufferHandle
	next     uint32
}

type buffer struct {
	target gpu.BufferTargets
	buf    *wgpu.Buffer
	size   int
}

type program struct {
	name     string
	module   *wgpu.ShaderModule
	pipeline *wgpu.ComputePipeline
}

// NewDevice requests a high performance adapter and a device on it.
func NewDevice() (*Device, error) {
	inst := wgpu.CreateInstance(nil)
	adapter, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		inst.Release()
		return nil, fmt.Errorf("webgpu.NewDevice: no adapter: %v: %w", err, gpu.ErrUnsupported)
	}
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		inst.Release()
		return nil, fmt.Errorf("webgpu.NewDevice: %v: %w", err, gpu.ErrUnsupported)
	}
	dv := &Device{
		Device:   dev,
		Queue:    dev.GetQueue(),
		instance: inst,
		adapter:  adapter,
		buffers:  make(map[gpu.BufferHandle]*buffer),
		programs: make(map[gpu.ProgramHandle]*program),
		bindings: make(map[int]gpu.BufferHandle),
	}
	gpu.Logger().Info("webgpu device")
	return dv, nil
}

func (dv *Device) Name() string {
	return "WebGPU"
}

func (dv *Device) Features() gpu.Features {
	return gpu.FeatureCompute
}

// WaitDone waits until the device has completed all submitted work.
func (dv *Device) WaitDone() {
	dv.Device.Poll(true, nil)
}

func (dv *Device) Release() {
	if dv.Device == nil {
		return
	}
	dv.WaitDone()
	for h := range dv.buffers {
		dv.DeleteBuffer(h)
	}
	for p := range dv.programs {
		dv.DeleteProgram(p)
	}
	dv.Queue.Release()
	dv.Device.Release()
	dv.adapter.Release()
	dv.instance.Release()
	dv.Device = nil
}

func (dv *Device) newHandle() uint32 {
	dv.next++
	return dv.next
}

// align4 rounds n up to a multiple of 4, as WebGPU requires
// for buffer sizes and copies.
func align4(n int) int {
	return (n + 3) &^ 3
}

func bufferUsage(t gpu.BufferTargets) wgpu.BufferUsage {
	u := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	switch t {
	case gpu.VertexBuffer:
		u |= wgpu.BufferUsageVertex
	case gpu.IndexBuffer:
		u |= wgpu.BufferUsageIndex
	}
	return u
}

func (dv *Device) lookup(op string, h gpu.BufferHandle) (*buffer, error) {
	b, ok := dv.buffers[h]
	if !ok {
		return nil, fmt.Errorf("webgpu %s: unknown buffer %d: %w", op, h, gpu.ErrInvalidArgument)
	}
	if b.buf == nil {
		return nil, fmt.Errorf("webgpu %s: buffer %d: %w", op, h, gpu.ErrNotAllocated)
	}
	return b, nil
}

func (dv *Device) NewBuffer(target gpu.BufferTargets) (gpu.BufferHandle, error) {
	h := gpu.BufferHandle(dv.newHandle())
	dv.buffers[h] = &buffer{target: target}
	return h, nil
}

func (dv *Device) BufferData(target gpu.BufferTargets, h gpu.BufferHandle, size int, usage gpu.Usages) error {
	b, ok := dv.buffers[h]
	if !ok {
		return fmt.Errorf("webgpu BufferData: unknown buffer %d: %w", h, gpu.ErrInvalidArgument)
	}
	buf, err := dv.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("buffer %d", h),
		Size:  uint64(max(align4(size), 4)),
		Usage: bufferUsage(target),
	})
	if err != nil {
		return fmt.Errorf("webgpu BufferData: %d bytes: %v: %w", size, err, gpu.ErrDeviceResourceExhausted)
	}
	if b.buf != nil {
		b.buf.Release()
	}
	b.buf = buf
	b.size = size
	b.target = target
	return nil
}

func (dv *Device) BufferSubData(target gpu.BufferTargets, h gpu.BufferHandle, offset int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	b, err := dv.lookup("BufferSubData", h)
	if err != nil {
		return err
	}
	if offset%4 != 0 || offset+len(data) > b.size {
		return fmt.Errorf("webgpu BufferSubData: %d bytes at %d in %d: %w", len(data), offset, b.size, gpu.ErrInvalidArgument)
	}
	if n := align4(len(data)); n != len(data) {
		padded := make([]byte, n)
		copy(padded, data)
		data = padded
	}
	if err := dv.Queue.WriteBuffer(b.buf, uint64(offset), data); err != nil {
		return fmt.Errorf("webgpu BufferSubData: %w", err)
	}
	return nil
}

// ReadBuffer copies the range into a mappable staging buffer and
// waits for the mapping.
func (dv *Device) ReadBuffer(target gpu.BufferTargets, h gpu.BufferHandle, offset int, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	b, err := dv.lookup("ReadBuffer", h)
	if err != nil {
		return err
	}
	if offset%4 != 0 || offset+len(dst) > b.size {
		return fmt.Errorf("webgpu ReadBuffer: %d bytes at %d in %d: %w", len(dst), offset, b.size, gpu.ErrInvalidArgument)
	}
	n := align4(len(dst))
	staging, err := dv.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "read staging",
		Size:  uint64(n),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("webgpu ReadBuffer: %v: %w", err, gpu.ErrDeviceResourceExhausted)
	}
	defer staging.Release()
	cmd, err := dv.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("webgpu ReadBuffer: %w", err)
	}
	defer cmd.Release()
	if err := cmd.CopyBufferToBuffer(b.buf, uint64(offset), staging, 0, uint64(n)); err != nil {
		return fmt.Errorf("webgpu ReadBuffer: %w", err)
	}
	if err := dv.submit(cmd); err != nil {
		return fmt.Errorf("webgpu ReadBuffer: %w", err)
	}
	var status wgpu.BufferMapAsyncStatus
	err = staging.MapAsync(wgpu.MapModeRead, 0, uint64(n), func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return fmt.Errorf("webgpu ReadBuffer: %w", err)
	}
	dv.WaitDone()
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("webgpu ReadBuffer: map status %s: %w", status.String(), gpu.ErrInvalidArgument)
	}
	copy(dst, staging.GetMappedRange(0, uint(n)))
	staging.Unmap()
	return nil
}

func (dv *Device) submit(cmd *wgpu.CommandEncoder) error {
	cb, err := cmd.Finish(nil)
	if err != nil {
		return err
	}
	dv.Queue.Submit(cb)
	cb.Release()
	return nil
}

func (dv *Device) MapPersistent(target gpu.BufferTargets, h gpu.BufferHandle, size int) ([]byte, error) {
	return nil, fmt.Errorf("webgpu MapPersistent: %w", gpu.ErrUnsupported)
}

func (dv *Device) Unmap(target gpu.BufferTargets, h gpu.BufferHandle) error {
	return fmt.Errorf("webgpu Unmap: %w", gpu.ErrUnsupported)
}

func (dv *Device) DeleteBuffer(h gpu.BufferHandle) {
	b, ok := dv.buffers[h]
	if !ok {
		return
	}
	if b.buf != nil {
		b.buf.Release()
	}
	delete(dv.buffers, h)
	for bi, bh := range dv.bindings {
		if bh == h {
			delete(dv.bindings, bi)
		}
	}
}

func (dv *Device) BindBufferBase(target gpu.BufferTargets, binding int, h gpu.BufferHandle) error {
	if target != gpu.StorageBuffer || binding < 0 {
		return fmt.Errorf("webgpu BindBufferBase: %s binding %d: %w", target, binding, gpu.ErrUnsupported)
	}
	if _, err := dv.lookup("BindBufferBase", h); err != nil {
		return err
	}
	dv.bindings[binding] = h
	return nil
}

// MemoryBarrier does nothing: submissions on the queue are ordered.
func (dv *Device) MemoryBarrier(b gpu.Barriers) {}

var _ gpu.Device = (*Device)(nil)
