// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webgpu

import (
	"testing"

	"cogentcore.org/gpubuf/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doubleWGSL = `@group(0) @binding(0)
var<storage, read_write> data: array<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	if (id.x < arrayLength(&data)) {
		data[id.x] = data[id.x] * 2.0;
	}
}
`

func newDevice(t *testing.T) *Device {
	dv, err := NewDevice()
	if err != nil {
		t.Skip("no WebGPU adapter available:", err)
	}
	t.Cleanup(dv.Release)
	return dv
}

func TestAlign4(t *testing.T) {
	assert.Equal(t, 0, align4(0))
	assert.Equal(t, 4, align4(1))
	assert.Equal(t, 8, align4(8))
	assert.Equal(t, 12, align4(9))
}

func TestCompute(t *testing.T) {
	dv := newDevice(t)
	src := gpu.NewProgramSource("double", gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.WGSL, Code: doubleWGSL})
	src.LocalSize = [3]int{64, 1, 1}
	ss, err := gpu.NewStorageSet(dv, src)
	require.NoError(t, err)
	defer ss.Delete()
	vals := []float32{1, 2, 3, 4, 5}
	require.NoError(t, gpu.RegisterStorage(ss, "data", gpu.Shape{5}, vals, 0))
	require.NoError(t, ss.Dispatch())
	got, err := gpu.ReadStorage[float32](ss, "data")
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6, 8, 10}, got)
}

func TestUnsupported(t *testing.T) {
	dv := newDevice(t)
	assert.Equal(t, gpu.FeatureCompute, dv.Features())
	_, err := gpu.NewStreamBuffer(dv, "stream", gpu.StorageBuffer, 16)
	assert.ErrorIs(t, err, gpu.ErrUnsupported)
	_, err = gpu.NewCapture(dv, nil)
	assert.ErrorIs(t, err, gpu.ErrUnsupported)
	_, err = dv.NewVertexArray(&gpu.VertexArrayDesc{})
	assert.ErrorIs(t, err, gpu.ErrUnsupported)

	_, err = dv.NewProgram(gpu.NewProgramSource("broken", gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.WGSL, Code: "fn main( {"}))
	assert.ErrorIs(t, err, gpu.ErrCompileFailure)
}
