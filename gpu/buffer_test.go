// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"math"
	"testing"

	"cogentcore.org/gpubuf/base/errors"
	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/gpu/softgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveCapacity(t *testing.T) {
	tests := []struct {
		n     int
		ratio float64
		want  int
	}{
		{0, 2, 0},
		{1, 1, 1},
		{3, 1.5, 5},
		{4, 1.5, 6},
		{10, 1.1, 11},
		{3, 1.1, 4},
		{7, 2, 14},
		{1, 1.0001, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gpu.ReserveCapacity(tt.n, tt.ratio), "n=%d ratio=%g", tt.n, tt.ratio)
	}
}

func TestNewBufferInvalid(t *testing.T) {
	dev := softgpu.NewDevice()
	_, err := gpu.NewBuffer(dev, "bad", gpu.VertexBuffer, 0, 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	_, err = gpu.NewBuffer(dev, "bad", gpu.VertexBuffer, 4, 0.5)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
}

func TestBufferGrowth(t *testing.T) {
	dev := softgpu.NewDevice()
	const ratio = 1.5
	bf, err := gpu.NewBuffer(dev, "pos", gpu.VertexBuffer, 4, ratio)
	require.NoError(t, err)
	assert.Equal(t, gpu.BufferHandle(0), bf.Handle())

	// capacity is the largest ceil(n * ratio) among the writes that grew
	want := 0
	for k, n := range []int{4, 2, 6, 7, 3, 9, 20, 1} {
		vals := make([]float32, n)
		for i := range vals {
			vals[i] = float32(n*100 + i)
		}
		grows := k == 0 || n > want
		allocs := dev.Stats().Allocs
		require.NoError(t, gpu.WriteValues(bf, vals))
		if grows {
			want = gpu.ReserveCapacity(n, ratio)
			assert.Equal(t, allocs+1, dev.Stats().Allocs)
		} else {
			assert.Equal(t, allocs, dev.Stats().Allocs, "write of %d must not reallocate", n)
		}
		assert.Equal(t, want, bf.Capacity)
		assert.Equal(t, n, bf.Len)
		got, err := gpu.ReadValues[float32](bf)
		require.NoError(t, err)
		assert.Equal(t, vals, got)
	}
	// 4 -> 6, 7 -> 11, 20 -> 30
	assert.Equal(t, 30, bf.Capacity)
	assert.Equal(t, 3, dev.Stats().Allocs)
}

func TestBufferCapacitySequence(t *testing.T) {
	dev := softgpu.NewDevice()
	bf, err := gpu.NewBuffer(dev, "idx", gpu.IndexBuffer, 4, 2)
	require.NoError(t, err)

	steps := []struct {
		n, capacity int
	}{
		{3, 6}, {6, 6}, {2, 6}, {7, 14}, {14, 14}, {15, 30}, {0, 30},
	}
	for _, st := range steps {
		require.NoError(t, gpu.WriteValues(bf, make([]uint32, st.n)))
		assert.Equal(t, st.capacity, bf.Capacity, "after writing %d", st.n)
		assert.Equal(t, st.n, bf.Len)
		assert.Len(t, dev.BufferContents(bf.Handle()), st.capacity*4)
	}
}

func TestBufferAllocate(t *testing.T) {
	dev := softgpu.NewDevice()
	bf, err := gpu.NewBuffer(dev, "verts", gpu.VertexBuffer, 12, 1.25)
	require.NoError(t, err)
	require.NoError(t, bf.Allocate(8))
	assert.Equal(t, 10, bf.Capacity)
	assert.Equal(t, 8, bf.Len)
	assert.Equal(t, 120, bf.ByteSize())
	assert.ErrorIs(t, bf.Allocate(-1), gpu.ErrInvalidArgument)
}

func TestBufferZeroWrite(t *testing.T) {
	dev := softgpu.NewDevice()
	bf, err := gpu.NewBuffer(dev, "empty", gpu.IndexBuffer, 4, 2)
	require.NoError(t, err)
	require.NoError(t, bf.Write(nil))
	assert.NotEqual(t, gpu.BufferHandle(0), bf.Handle())
	assert.Equal(t, 0, bf.Len)
	assert.Equal(t, 0, bf.Capacity)

	require.NoError(t, gpu.WriteValues(bf, []uint32{1, 2}))
	require.NoError(t, bf.Write([]byte{}))
	assert.Equal(t, 0, bf.Len)
	assert.Equal(t, 4, bf.Capacity)

	assert.ErrorIs(t, bf.Write([]byte{1, 2, 3}), gpu.ErrInvalidArgument)
}

func TestBufferWriteRange(t *testing.T) {
	dev := softgpu.NewDevice()
	bf, err := gpu.NewBuffer(dev, "colors", gpu.VertexBuffer, 4, 2)
	require.NoError(t, err)
	require.NoError(t, gpu.WriteValues(bf, []float32{1, 2, 3, 4}))

	require.NoError(t, bf.WriteRange(1, gpu.ToBytes([]float32{20, 30})))
	got, err := gpu.ReadValues[float32](bf)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 20, 30, 4}, got)

	// past Len, though within Capacity
	err = bf.WriteRange(3, gpu.ToBytes([]float32{40, 50}))
	assert.ErrorIs(t, err, gpu.ErrCapacityExceeded)
	assert.ErrorIs(t, bf.WriteRange(-1, gpu.ToBytes([]float32{0})), gpu.ErrCapacityExceeded)
	assert.ErrorIs(t, bf.WriteRange(math.MaxInt-1, gpu.ToBytes([]float32{40, 50})), gpu.ErrCapacityExceeded)
	got, err = gpu.ReadValues[float32](bf)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 20, 30, 4}, got)
	assert.Equal(t, 4, bf.Len)
}

func TestBufferDelete(t *testing.T) {
	dev := softgpu.NewDevice()
	bf, err := gpu.NewBuffer(dev, "gone", gpu.VertexBuffer, 4, 1)
	require.NoError(t, err)
	require.NoError(t, gpu.WriteValues(bf, []int32{1, 2, 3}))
	assert.Equal(t, 1, dev.NumBuffers())

	bf.Delete()
	bf.Delete()
	assert.True(t, bf.IsDeleted())
	assert.Equal(t, 0, dev.NumBuffers())
	assert.Equal(t, 0, dev.Stats().MemoryUsed)

	assert.ErrorIs(t, bf.Write(nil), gpu.ErrNotAllocated)
	assert.ErrorIs(t, bf.Allocate(1), gpu.ErrNotAllocated)
	assert.ErrorIs(t, bf.Read(nil), gpu.ErrNotAllocated)
	assert.ErrorIs(t, bf.WriteRange(0, nil), gpu.ErrNotAllocated)
	assert.ErrorIs(t, bf.Bind(gpu.StorageBuffer, 0), gpu.ErrNotAllocated)
	assert.ErrorContains(t, bf.Write(nil), "buffer not allocated")
}

func TestBufferMemoryLimit(t *testing.T) {
	dev := softgpu.NewDevice()
	dev.MemoryLimit = 64
	bf, err := gpu.NewBuffer(dev, "big", gpu.StorageBuffer, 4, 2)
	require.NoError(t, err)
	require.NoError(t, gpu.WriteValues(bf, make([]float32, 4)))
	assert.Equal(t, 8, bf.Capacity)

	err = gpu.WriteValues(bf, make([]float32, 9))
	assert.ErrorIs(t, err, gpu.ErrDeviceResourceExhausted)
	assert.Equal(t, 8, bf.Capacity)
	assert.Equal(t, 4, bf.Len)
}

func TestBufferBind(t *testing.T) {
	dev := softgpu.NewDevice()
	bf, err := gpu.NewBuffer(dev, "ssbo", gpu.StorageBuffer, 4, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, bf.Bind(gpu.StorageBuffer, 0), gpu.ErrNotAllocated)
	require.NoError(t, gpu.WriteValues(bf, []float32{1}))
	assert.NoError(t, bf.Bind(gpu.StorageBuffer, 0))
	assert.ErrorIs(t, bf.Bind(gpu.VertexBuffer, 0), gpu.ErrInvalidArgument)
	assert.True(t, errors.Is(bf.Bind(gpu.StorageBuffer, -1), gpu.ErrInvalidArgument))
}
