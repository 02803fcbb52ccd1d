// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"sync"
)

// StreamBuffer is a fixed-size buffer that stays mapped for its
// whole lifetime, so that its contents are written directly into
// device visible memory without staging. Writes are coherent:
// no flush is needed, and no fence is taken, so writing a region
// the device is still reading is the caller's concern.
type StreamBuffer struct {

	// Name is used in errors and logging.
	Name string

	// Target is the kind of buffer.
	Target BufferTargets

	// Size is the fixed size in bytes.
	Size int

	device Device
	handle BufferHandle

	// mu protects mapped against Delete; Write only reads the slice.
	mu     sync.RWMutex
	mapped []byte
}

// NewStreamBuffer returns a new persistently mapped buffer of size
// bytes. The device must have [FeaturePersistentMapping].
func NewStreamBuffer(dev Device, name string, target BufferTargets, size int) (*StreamBuffer, error) {
	if !dev.Features().Has(FeaturePersistentMapping) {
		return nil, fmt.Errorf("gpu.NewStreamBuffer %s: persistent mapping on %s: %w", name, dev.Name(), ErrUnsupported)
	}
	if size <= 0 {
		return nil, fmt.Errorf("gpu.NewStreamBuffer %s: size %d must be > 0: %w", name, size, ErrInvalidArgument)
	}
	h, err := dev.NewBuffer(target)
	if err != nil {
		return nil, fmt.Errorf("gpu.NewStreamBuffer %s: %w", name, err)
	}
	m, err := dev.MapPersistent(target, h, size)
	if err != nil {
		dev.DeleteBuffer(h)
		return nil, fmt.Errorf("gpu.NewStreamBuffer %s: %w", name, err)
	}
	Logger().Debug("gpu.StreamBuffer mapped", "buffer", name, "target", target, "size", size)
	return &StreamBuffer{Name: name, Target: target, Size: size, device: dev, handle: h, mapped: m}, nil
}

// Handle returns the device handle, 0 after Delete.
func (sb *StreamBuffer) Handle() BufferHandle {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.handle
}

// ByteSize returns Size.
func (sb *StreamBuffer) ByteSize() int {
	return sb.Size
}

// Write copies data into the mapped region at the given byte offset.
// If the data does not fit within Size it returns [ErrCapacityExceeded]
// and nothing is written. Write can be called from any goroutine.
func (sb *StreamBuffer) Write(data []byte, offset int) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	if sb.mapped == nil {
		return fmt.Errorf("gpu.StreamBuffer Write %s: %w", sb.Name, ErrNotAllocated)
	}
	if offset < 0 || len(data) > sb.Size-offset {
		return fmt.Errorf("gpu.StreamBuffer Write %s: %d bytes at offset %d exceeds size %d: %w", sb.Name, len(data), offset, sb.Size, ErrCapacityExceeded)
	}
	copy(sb.mapped[offset:], data)
	return nil
}

// Bind binds the buffer to the given binding point of the given
// indexed target. It must be called on the goroutine owning the device.
func (sb *StreamBuffer) Bind(target BufferTargets, binding int) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	if sb.mapped == nil {
		return fmt.Errorf("gpu.StreamBuffer Bind %s: %w", sb.Name, ErrNotAllocated)
	}
	if !target.Indexed() || binding < 0 {
		return fmt.Errorf("gpu.StreamBuffer Bind %s: cannot bind to %s %d: %w", sb.Name, target, binding, ErrInvalidArgument)
	}
	return sb.device.BindBufferBase(target, binding, sb.handle)
}

// Delete unmaps and releases the buffer. It must be called on the
// goroutine owning the device, and can be called more than once.
func (sb *StreamBuffer) Delete() error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.mapped == nil {
		return nil
	}
	err := sb.device.Unmap(sb.Target, sb.handle)
	sb.device.DeleteBuffer(sb.handle)
	sb.mapped = nil
	sb.handle = 0
	if err != nil {
		return fmt.Errorf("gpu.StreamBuffer Delete %s: %w", sb.Name, err)
	}
	return nil
}

// WriteStream writes the given values at the given element index
// of the stream buffer, as [StreamBuffer.Write].
func WriteStream[E any](sb *StreamBuffer, vals []E, index int) error {
	size := SizeOf[E]()
	if index < 0 || (size > 0 && index > sb.Size/size) {
		return fmt.Errorf("gpu.StreamBuffer Write %s: element index %d exceeds size %d: %w", sb.Name, index, sb.Size, ErrCapacityExceeded)
	}
	return sb.Write(ToBytes(vals), index*size)
}
