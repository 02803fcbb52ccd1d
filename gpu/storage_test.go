// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu_test

import (
	"testing"

	"cogentcore.org/gpubuf/base/errors"
	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/gpu/softgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newComputeDevice returns a software device with kernels
// that double and triple binding 0 in place.
func newComputeDevice() *softgpu.Device {
	dev := softgpu.NewDevice()
	dev.RegisterCompute("double", func(inv *softgpu.Invocation) {
		d := inv.Float32s(0)
		if i := inv.GlobalID[0]; i < len(d) {
			d[i] *= 2
		}
	})
	dev.RegisterCompute("triple", func(inv *softgpu.Invocation) {
		d := inv.Float32s(0)
		if i := inv.GlobalID[0]; i < len(d) {
			d[i] *= 3
		}
	})
	dev.RegisterCompute("add", func(inv *softgpu.Invocation) {
		a, b, c := inv.Float64s(0), inv.Float64s(1), inv.Float64s(2)
		if i := inv.GlobalID[0]; i < len(c) {
			c[i] = a[i] + b[i]
		}
	})
	return dev
}

func kernel(name string) *gpu.ProgramSource {
	ps := gpu.NewProgramSource(name, gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.Kernel, Code: name})
	ps.LocalSize = [3]int{64, 1, 1}
	return ps
}

func TestStorageDouble(t *testing.T) {
	dev := newComputeDevice()
	ss, err := gpu.NewStorageSet(dev, kernel("double"))
	require.NoError(t, err)
	require.NoError(t, gpu.RegisterStorage(ss, "data", gpu.Shape{4}, []float32{1, 2, 3, 4}, 0))

	require.NoError(t, ss.Dispatch(4))
	got, err := gpu.ReadStorage[float32](ss, "data")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6, 8}, got)
	assert.Equal(t, []gpu.Barriers{gpu.StorageBarrier | gpu.BufferUpdateBarrier}, dev.Barriers())

	// default work groups cover the largest entry
	require.NoError(t, ss.Dispatch())
	got, err = gpu.ReadStorage[float32](ss, "data")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 8, 12, 16}, got)
	assert.Equal(t, [3]int{1, 1, 1}, ss.DefaultGroups())
}

func TestStorageMultiple(t *testing.T) {
	dev := newComputeDevice()
	ss, err := gpu.NewStorageSet(dev, kernel("add"))
	require.NoError(t, err)
	sh := gpu.Shape{2, 3}
	require.NoError(t, gpu.RegisterStorage(ss, "a", sh, []float64{1, 2, 3, 4, 5, 6}, 0))
	require.NoError(t, gpu.RegisterStorage(ss, "b", sh, []float64{10, 20, 30, 40, 50, 60}, 1))
	require.NoError(t, gpu.RegisterStorage(ss, "c", sh, make([]float64, 6), 2))
	require.NoError(t, ss.Dispatch(1))

	got, err := gpu.ReadStorage[float64](ss, "c")
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33, 44, 55, 66}, got)

	require.NoError(t, gpu.UpdateStorage(ss, "b", sh, []float64{0, 0, 0, 0, 0, 1}))
	require.NoError(t, ss.Dispatch(1))
	got, err = gpu.ReadStorage[float64](ss, "c")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 7}, got)

	es := ss.Entries()
	require.Len(t, es, 3)
	assert.Equal(t, "a", es[0].Name)
	assert.Equal(t, gpu.Float64, es[2].Type)
	assert.Equal(t, 48, es[2].ByteSize())
}

func TestStorageRegisterErrors(t *testing.T) {
	dev := newComputeDevice()
	ss, err := gpu.NewStorageSet(dev, kernel("double"))
	require.NoError(t, err)
	require.NoError(t, gpu.RegisterStorage(ss, "data", gpu.Shape{2}, []float32{1, 2}, 0))

	err = gpu.RegisterStorage(ss, "data", gpu.Shape{2}, []float32{1, 2}, 1)
	assert.ErrorIs(t, err, gpu.ErrDuplicateRegistration)
	err = gpu.RegisterStorage(ss, "other", gpu.Shape{2}, []float32{1, 2}, 0)
	assert.ErrorIs(t, err, gpu.ErrDuplicateRegistration)
	err = gpu.RegisterStorage(ss, "other", gpu.Shape{3}, []float32{1, 2}, 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidShape)
	err = gpu.RegisterStorage(ss, "other", gpu.Shape{-1}, []float32{}, 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidShape)
	err = ss.Register("other", gpu.UndefinedType, gpu.Shape{1}, []byte{0}, 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	assert.Len(t, ss.Entries(), 1)
	assert.Equal(t, 1, dev.NumBuffers())
}

func TestStorageUpdateErrors(t *testing.T) {
	dev := newComputeDevice()
	ss, err := gpu.NewStorageSet(dev, kernel("double"))
	require.NoError(t, err)
	require.NoError(t, gpu.RegisterStorage(ss, "data", gpu.Shape{2, 2}, []float32{1, 2, 3, 4}, 0))

	err = gpu.UpdateStorage(ss, "missing", gpu.Shape{4}, []float32{1, 2, 3, 4})
	assert.ErrorIs(t, err, gpu.ErrInvalidIndex)
	assert.ErrorContains(t, err, "not registered")

	err = gpu.UpdateStorage(ss, "data", gpu.Shape{4}, []float32{1, 2, 3, 4})
	assert.ErrorIs(t, err, gpu.ErrShapeMismatch)
	err = gpu.UpdateStorage(ss, "data", gpu.Shape{2, 2}, []int32{1, 2, 3, 4})
	assert.ErrorIs(t, err, gpu.ErrShapeMismatch)
	err = gpu.UpdateStorage(ss, "data", gpu.Shape{2, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, gpu.ErrInvalidShape)

	_, err = gpu.ReadStorage[int32](ss, "data")
	assert.ErrorIs(t, err, gpu.ErrShapeMismatch)
	_, err = ss.Read("missing")
	assert.ErrorIs(t, err, gpu.ErrInvalidIndex)

	got, err := gpu.ReadStorage[float32](ss, "data")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
}

func TestStorageCompileFailure(t *testing.T) {
	dev := newComputeDevice()
	_, err := gpu.NewStorageSet(dev, kernel("missing"))
	assert.ErrorIs(t, err, gpu.ErrCompileFailure)
	var ce *gpu.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, gpu.ComputeShader, ce.Stage)
	assert.Contains(t, ce.Log, "not registered")

	_, err = gpu.NewStorageSet(dev, gpu.PassthroughSource())
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)

	dev.Feats = gpu.FeatureDraw
	_, err = gpu.NewStorageSet(dev, kernel("double"))
	assert.ErrorIs(t, err, gpu.ErrUnsupported)
}

func TestStorageReload(t *testing.T) {
	dev := newComputeDevice()
	ss, err := gpu.NewStorageSet(dev, kernel("double"))
	require.NoError(t, err)
	require.NoError(t, gpu.RegisterStorage(ss, "data", gpu.Shape{2}, []float32{1, 2}, 0))

	prog := ss.Program()
	err = ss.Reload(kernel("broken"))
	assert.ErrorIs(t, err, gpu.ErrCompileFailure)
	assert.Equal(t, prog, ss.Program())
	require.NoError(t, ss.Dispatch(1))
	got, err := gpu.ReadStorage[float32](ss, "data")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4}, got)

	require.NoError(t, ss.Reload(kernel("triple")))
	assert.NotEqual(t, prog, ss.Program())
	assert.Equal(t, "triple", ss.Source().Name)
	require.NoError(t, ss.Dispatch(1))
	got, err = gpu.ReadStorage[float32](ss, "data")
	require.NoError(t, err)
	assert.Equal(t, []float32{6, 12}, got)
}

func TestStorageDispatchErrors(t *testing.T) {
	dev := newComputeDevice()
	ss, err := gpu.NewStorageSet(dev, kernel("double"))
	require.NoError(t, err)
	assert.ErrorIs(t, ss.Dispatch(0), gpu.ErrInvalidArgument)
	assert.ErrorIs(t, ss.Dispatch(1, 1, 1, 1), gpu.ErrInvalidArgument)
	assert.NoError(t, ss.Dispatch(1, 1))
}

func TestStorageDelete(t *testing.T) {
	dev := newComputeDevice()
	ss, err := gpu.NewStorageSet(dev, kernel("double"))
	require.NoError(t, err)
	require.NoError(t, gpu.RegisterStorage(ss, "data", gpu.Shape{2}, []float32{1, 2}, 0))
	ss.Delete()
	ss.Delete()
	assert.Equal(t, 0, dev.NumBuffers())
	assert.ErrorIs(t, ss.Dispatch(1), gpu.ErrAlreadyDeleted)
	assert.ErrorIs(t, gpu.UpdateStorage(ss, "data", gpu.Shape{2}, []float32{1, 2}), gpu.ErrAlreadyDeleted)
	_, err = gpu.ReadStorage[float32](ss, "data")
	assert.ErrorIs(t, err, gpu.ErrAlreadyDeleted)
}
