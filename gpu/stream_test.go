// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"math"
	"sync"
	"testing"

	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/gpu/softgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamBufferWrite(t *testing.T) {
	dev := softgpu.NewDevice()
	sb, err := gpu.NewStreamBuffer(dev, "stream", gpu.VertexBuffer, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, sb.ByteSize())

	require.NoError(t, sb.Write([]byte{1, 2, 3, 4}, 0))
	require.NoError(t, sb.Write([]byte{9, 9}, 14))
	got := dev.BufferContents(sb.Handle())
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 9, 9}, got)

	require.NoError(t, gpu.WriteStream(sb, []float32{1.5}, 1))
	assert.Equal(t, []float32{1.5}, gpu.FromBytes[float32](dev.BufferContents(sb.Handle())[4:8]))
}

func TestStreamBufferOversize(t *testing.T) {
	dev := softgpu.NewDevice()
	sb, err := gpu.NewStreamBuffer(dev, "stream", gpu.VertexBuffer, 8)
	require.NoError(t, err)
	require.NoError(t, sb.Write([]byte{7, 7, 7, 7, 7, 7, 7, 7}, 0))
	before := dev.BufferContents(sb.Handle())

	err = sb.Write([]byte{1, 2, 3, 4}, 6)
	assert.ErrorIs(t, err, gpu.ErrCapacityExceeded)
	err = sb.Write(make([]byte, 9), 0)
	assert.ErrorIs(t, err, gpu.ErrCapacityExceeded)
	err = sb.Write([]byte{1}, -1)
	assert.ErrorIs(t, err, gpu.ErrCapacityExceeded)
	err = sb.Write(make([]byte, 8), math.MaxInt-2)
	assert.ErrorIs(t, err, gpu.ErrCapacityExceeded)
	err = gpu.WriteStream(sb, []float32{1}, math.MaxInt/2)
	assert.ErrorIs(t, err, gpu.ErrCapacityExceeded)
	err = gpu.WriteStream(sb, []float32{1}, -1)
	assert.ErrorIs(t, err, gpu.ErrCapacityExceeded)
	assert.Equal(t, before, dev.BufferContents(sb.Handle()), "no partial write")
}

func TestStreamBufferUnsupported(t *testing.T) {
	dev := softgpu.NewDevice()
	dev.Feats = gpu.FeatureCompute
	_, err := gpu.NewStreamBuffer(dev, "stream", gpu.VertexBuffer, 8)
	assert.ErrorIs(t, err, gpu.ErrUnsupported)

	dev = softgpu.NewDevice()
	_, err = gpu.NewStreamBuffer(dev, "stream", gpu.VertexBuffer, 0)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	dev.MemoryLimit = 4
	_, err = gpu.NewStreamBuffer(dev, "stream", gpu.VertexBuffer, 8)
	assert.ErrorIs(t, err, gpu.ErrDeviceResourceExhausted)
	assert.Equal(t, 0, dev.NumBuffers())
}

func TestStreamBufferDelete(t *testing.T) {
	dev := softgpu.NewDevice()
	sb, err := gpu.NewStreamBuffer(dev, "stream", gpu.StorageBuffer, 8)
	require.NoError(t, err)
	require.NoError(t, sb.Bind(gpu.StorageBuffer, 2))
	require.NoError(t, sb.Delete())
	require.NoError(t, sb.Delete())
	assert.Equal(t, gpu.BufferHandle(0), sb.Handle())
	assert.ErrorIs(t, sb.Write([]byte{1}, 0), gpu.ErrNotAllocated)
	assert.ErrorIs(t, sb.Bind(gpu.StorageBuffer, 2), gpu.ErrNotAllocated)
	assert.Equal(t, 0, dev.NumBuffers())
}

func TestStreamBufferConcurrent(t *testing.T) {
	dev := softgpu.NewDevice()
	const writers = 8
	const each = 64
	sb, err := gpu.NewStreamBuffer(dev, "stream", gpu.VertexBuffer, writers*each)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data := make([]byte, each)
			for i := range data {
				data[i] = byte(w + 1)
			}
			assert.NoError(t, sb.Write(data, w*each))
		}()
	}
	wg.Wait()
	got := dev.BufferContents(sb.Handle())
	for w := range writers {
		for i := range each {
			assert.Equal(t, byte(w+1), got[w*each+i])
		}
	}
}
