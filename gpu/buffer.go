// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"math"
)

// Buffer is a device buffer with a tracked capacity that grows
// by a reserve ratio when written with more elements than it can
// hold. Writes that fit are done in place as sub-range writes.
// Contents are not copied forward on growth: every Write replaces
// the whole logical content.
//
// All methods must be called on the goroutine owning the device.
type Buffer struct {

	// Name is used in errors and logging.
	Name string

	// Target is the kind of buffer.
	Target BufferTargets

	// Stride is the size of one element in bytes.
	Stride int

	// ReserveRatio is the factor (>= 1) applied to the number of
	// elements when allocating storage.
	ReserveRatio float64

	// Usage is the usage hint passed to the device on allocation.
	Usage Usages

	// Capacity is the number of elements the current storage can hold.
	// It only grows.
	Capacity int

	// Len is the number of elements in the logical content.
	Len int

	device    Device
	handle    BufferHandle
	allocated bool
	deleted   bool
}

// NewBuffer returns a new buffer on the given device with given element
// stride in bytes and reserve ratio. No device storage is made until
// the first Allocate or Write.
func NewBuffer(dev Device, name string, target BufferTargets, stride int, ratio float64) (*Buffer, error) {
	if stride <= 0 {
		return nil, fmt.Errorf("gpu.NewBuffer %s: stride %d must be > 0: %w", name, stride, ErrInvalidArgument)
	}
	if ratio < 1 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, fmt.Errorf("gpu.NewBuffer %s: reserve ratio %g must be >= 1: %w", name, ratio, ErrInvalidArgument)
	}
	usage := StaticDraw
	if ratio > 1 {
		usage = DynamicDraw
	}
	return &Buffer{Name: name, Target: target, Stride: stride, ReserveRatio: ratio, Usage: usage, device: dev}, nil
}

// ReserveCapacity returns the capacity reserved for n elements
// with given ratio: ceil(n * ratio). Products within rounding
// error of an integer are not rounded up.
func ReserveCapacity(n int, ratio float64) int {
	c := float64(n) * ratio
	r := math.Round(c)
	if math.Abs(c-r) < 1e-9*max(1, r) {
		return max(int(r), n)
	}
	return max(int(math.Ceil(c)), n)
}

// Handle returns the device handle, 0 before the first Allocate or Write.
func (bf *Buffer) Handle() BufferHandle {
	return bf.handle
}

// Device returns the device of the buffer.
func (bf *Buffer) Device() Device {
	return bf.device
}

// ByteSize returns the size of the current storage in bytes.
func (bf *Buffer) ByteSize() int {
	return bf.Capacity * bf.Stride
}

// IsDeleted returns whether Delete has been called.
func (bf *Buffer) IsDeleted() bool {
	return bf.deleted
}

func (bf *Buffer) check(op string) error {
	if bf.deleted {
		return fmt.Errorf("gpu.Buffer %s %s: %w", op, bf.Name, ErrNotAllocated)
	}
	if bf.handle == 0 {
		h, err := bf.device.NewBuffer(bf.Target)
		if err != nil {
			return fmt.Errorf("gpu.Buffer %s %s: %w", op, bf.Name, err)
		}
		bf.handle = h
	}
	return nil
}

// realloc replaces the storage with room for ReserveCapacity(n) elements.
func (bf *Buffer) realloc(op string, n int) error {
	nc := ReserveCapacity(n, bf.ReserveRatio)
	err := bf.device.BufferData(bf.Target, bf.handle, nc*bf.Stride, bf.Usage)
	if err != nil {
		return fmt.Errorf("gpu.Buffer %s %s: allocating %d elements: %w", op, bf.Name, nc, err)
	}
	Logger().Debug("gpu.Buffer allocated", "buffer", bf.Name, "target", bf.Target, "len", n, "capacity", nc, "previous", bf.Capacity)
	bf.Capacity = nc
	bf.allocated = true
	return nil
}

// Allocate allocates storage for n elements, with capacity
// ReserveCapacity(n, ReserveRatio), and sets Len to n.
// Any previous contents are discarded.
func (bf *Buffer) Allocate(n int) error {
	if n < 0 {
		return fmt.Errorf("gpu.Buffer Allocate %s: negative count %d: %w", bf.Name, n, ErrInvalidArgument)
	}
	if err := bf.check("Allocate"); err != nil {
		return err
	}
	if err := bf.realloc("Allocate", n); err != nil {
		return err
	}
	bf.Len = n
	return nil
}

// Write replaces the logical content with the given bytes, which
// must be a whole number of elements. If they fit in Capacity they
// are written in place; otherwise the storage is reallocated to
// ReserveCapacity(count) and the old contents are discarded.
// Writing zero elements is legal and sets an empty content.
func (bf *Buffer) Write(data []byte) error {
	if len(data)%bf.Stride != 0 {
		return fmt.Errorf("gpu.Buffer Write %s: %d bytes is not a multiple of stride %d: %w", bf.Name, len(data), bf.Stride, ErrInvalidArgument)
	}
	if err := bf.check("Write"); err != nil {
		return err
	}
	n := len(data) / bf.Stride
	if !bf.allocated || n > bf.Capacity {
		if err := bf.realloc("Write", n); err != nil {
			return err
		}
	}
	if n > 0 {
		if err := bf.device.BufferSubData(bf.Target, bf.handle, 0, data); err != nil {
			return fmt.Errorf("gpu.Buffer Write %s: %w", bf.Name, err)
		}
	}
	bf.Len = n
	return nil
}

// WriteRange writes the given elements starting at element offset,
// within the current logical content. Len is not changed.
// A range extending past Len returns [ErrCapacityExceeded]
// and nothing is written.
func (bf *Buffer) WriteRange(offset int, data []byte) error {
	if len(data)%bf.Stride != 0 {
		return fmt.Errorf("gpu.Buffer WriteRange %s: %d bytes is not a multiple of stride %d: %w", bf.Name, len(data), bf.Stride, ErrInvalidArgument)
	}
	if bf.deleted {
		return fmt.Errorf("gpu.Buffer WriteRange %s: %w", bf.Name, ErrNotAllocated)
	}
	n := len(data) / bf.Stride
	if offset < 0 || n > bf.Len-offset {
		return fmt.Errorf("gpu.Buffer WriteRange %s: %d elements at offset %d outside of length %d: %w", bf.Name, n, offset, bf.Len, ErrCapacityExceeded)
	}
	if n == 0 {
		return nil
	}
	if err := bf.device.BufferSubData(bf.Target, bf.handle, offset*bf.Stride, data); err != nil {
		return fmt.Errorf("gpu.Buffer WriteRange %s: %w", bf.Name, err)
	}
	return nil
}

// Read copies the start of the logical content into dst, which must
// not be longer than Len elements. It blocks until the device has
// completed all prior work on the buffer.
func (bf *Buffer) Read(dst []byte) error {
	if bf.deleted {
		return fmt.Errorf("gpu.Buffer Read %s: %w", bf.Name, ErrNotAllocated)
	}
	if len(dst) > bf.Len*bf.Stride {
		return fmt.Errorf("gpu.Buffer Read %s: %d bytes is more than length %d: %w", bf.Name, len(dst), bf.Len*bf.Stride, ErrCapacityExceeded)
	}
	if len(dst) == 0 {
		return nil
	}
	if err := bf.device.ReadBuffer(bf.Target, bf.handle, 0, dst); err != nil {
		return fmt.Errorf("gpu.Buffer Read %s: %w", bf.Name, err)
	}
	return nil
}

// Bind binds the buffer to the given binding point of the given
// indexed target (storage, capture or uniform).
func (bf *Buffer) Bind(target BufferTargets, binding int) error {
	if bf.deleted {
		return fmt.Errorf("gpu.Buffer Bind %s: %w", bf.Name, ErrNotAllocated)
	}
	if !target.Indexed() || binding < 0 {
		return fmt.Errorf("gpu.Buffer Bind %s: cannot bind to %s %d: %w", bf.Name, target, binding, ErrInvalidArgument)
	}
	if !bf.allocated {
		return fmt.Errorf("gpu.Buffer Bind %s: no storage allocated: %w", bf.Name, ErrNotAllocated)
	}
	return bf.device.BindBufferBase(target, binding, bf.handle)
}

// Delete releases the device buffer. It can be called more than once;
// all other operations fail with [ErrNotAllocated] afterwards.
func (bf *Buffer) Delete() {
	if bf.deleted {
		return
	}
	if bf.handle != 0 {
		bf.device.DeleteBuffer(bf.handle)
	}
	bf.handle = 0
	bf.deleted = true
	bf.allocated = false
	bf.Capacity = 0
	bf.Len = 0
}

// WriteValues writes the given values to the buffer, as [Buffer.Write].
func WriteValues[E any](bf *Buffer, vals []E) error {
	return bf.Write(ToBytes(vals))
}

// ReadValues reads the logical content of the buffer as values of type E.
func ReadValues[E any](bf *Buffer) ([]E, error) {
	n := bf.Len * bf.Stride / SizeOf[E]()
	vals := make([]E, n)
	if err := bf.Read(ToBytes(vals)); err != nil {
		return nil, err
	}
	return vals, nil
}
