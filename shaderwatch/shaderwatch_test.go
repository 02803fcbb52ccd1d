// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package shaderwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/gpu/softgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scaleDevice() *softgpu.Device {
	dev := softgpu.NewDevice()
	scale := func(f float32) softgpu.ComputeFunc {
		return func(inv *softgpu.Invocation) {
			d := inv.Float32s(0)
			if i := inv.GlobalID[0]; i < len(d) {
				d[i] *= f
			}
		}
	}
	dev.RegisterCompute("double", scale(2))
	dev.RegisterCompute("triple", scale(3))
	return dev
}

func TestReplaceCode(t *testing.T) {
	src := gpu.NewProgramSource("k",
		gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.GLSL, Code: "glsl"},
		gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.Kernel, Code: "double"})
	ns := replaceCode(src, gpu.ComputeShader, gpu.Kernel, "triple")
	assert.Equal(t, "triple", ns.Shaders[1].Code)
	assert.Equal(t, "double", src.Shaders[1].Code)

	ns = replaceCode(src, gpu.ComputeShader, gpu.WGSL, "wgsl")
	require.Len(t, ns.Shaders, 3)
	assert.Equal(t, gpu.WGSL, ns.Shaders[0].Lang)
	assert.Len(t, src.Shaders, 2)
}

func TestWatchReload(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "scale.kernel")
	require.NoError(t, os.WriteFile(fn, []byte("double"), 0666))

	dev := scaleDevice()
	src := gpu.NewProgramSource("scale", gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.Kernel, Code: "double"})
	ss, err := gpu.NewStorageSet(dev, src)
	require.NoError(t, err)
	require.NoError(t, gpu.RegisterStorage(ss, "data", gpu.Shape{2}, []float32{1, 2}, 0))

	w, err := New()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch("scale", src, gpu.ComputeShader, fn))
	assert.ErrorIs(t, w.Watch("scale", src, gpu.ComputeShader, fn), gpu.ErrDuplicateRegistration)

	applied, err := w.Apply("scale", ss)
	require.NoError(t, err)
	assert.False(t, applied)

	require.NoError(t, os.WriteFile(fn, []byte("triple"), 0666))
	require.Eventually(t, func() bool { return w.Pending("scale") }, 5*time.Second, 10*time.Millisecond)
	applied, err = w.Apply("scale", ss)
	require.NoError(t, err)
	assert.True(t, applied)
	require.NoError(t, ss.Dispatch(1))
	got, err := gpu.ReadStorage[float32](ss, "data")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 6}, got)

	// a kernel that fails to compile keeps the current one
	require.NoError(t, os.WriteFile(fn, []byte("missing"), 0666))
	var next *gpu.ProgramSource
	require.Eventually(t, func() bool {
		ns, ok := w.Drain("scale")
		if ok && ns.Shaders[0].Code == "missing" {
			next = ns
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, ss.Reload(next), gpu.ErrCompileFailure)
	require.NoError(t, ss.Dispatch(1))
	got, err = gpu.ReadStorage[float32](ss, "data")
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 18}, got)
}

func TestDrainUnknown(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	defer w.Close()
	_, ok := w.Drain("nothing")
	assert.False(t, ok)
	assert.False(t, w.Pending("nothing"))
}

func TestCloseTwice(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NotPanics(t, func() { assert.NoError(t, w.Close()) })
}
