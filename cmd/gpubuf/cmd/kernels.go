// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/gpu/softgpu"
)

const localSize = 64

const doubleGLSL = `#version 460 core
layout(local_size_x = 64) in;
layout(std430, binding = 0) buffer Data { float data[]; };
void main() {
	uint i = gl_GlobalInvocationID.x;
	if (i < data.length()) {
		data[i] *= 2.0;
	}
}
`

const doubleWGSL = `@group(0) @binding(0)
var<storage, read_write> data: array<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	if (id.x < arrayLength(&data)) {
		data[id.x] = data[id.x] * 2.0;
	}
}
`

// particlesGLSL advances particles by one step: params are
// (time step, gravity, bounce, 0); particles bounce off y = 0.
const particlesGLSL = `#version 460 core
layout(local_size_x = 64) in;
layout(std430, binding = 0) buffer Positions { vec4 pos[]; };
layout(std430, binding = 1) buffer Velocities { vec4 vel[]; };
layout(std430, binding = 2) buffer Params { vec4 params; };
void main() {
	uint i = gl_GlobalInvocationID.x;
	if (i >= pos.length()) {
		return;
	}
	float dt = params.x;
	vel[i].y -= params.y * dt;
	pos[i].xyz += vel[i].xyz * dt;
	if (pos[i].y < 0.0) {
		pos[i].y = -pos[i].y;
		vel[i].y = -vel[i].y * params.z;
	}
}
`

const particlesWGSL = `@group(0) @binding(0) var<storage, read_write> pos: array<vec4<f32>>;
@group(0) @binding(1) var<storage, read_write> vel: array<vec4<f32>>;
@group(0) @binding(2) var<storage, read> params: vec4<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	let i = id.x;
	if (i >= arrayLength(&pos)) {
		return;
	}
	let dt = params.x;
	vel[i].y = vel[i].y - params.y * dt;
	pos[i] = vec4<f32>(pos[i].xyz + vel[i].xyz * dt, pos[i].w);
	if (pos[i].y < 0.0) {
		pos[i].y = -pos[i].y;
		vel[i].y = -vel[i].y * params.z;
	}
}
`

// DoubleSource returns the kernel doubling the float32 values at binding 0.
func DoubleSource() *gpu.ProgramSource {
	ps := gpu.NewProgramSource("double",
		gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.GLSL, Code: doubleGLSL},
		gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.WGSL, Code: doubleWGSL},
		gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.Kernel, Code: "double"})
	ps.LocalSize = [3]int{localSize, 1, 1}
	return ps
}

// ParticlesSource returns the kernel advancing the particles: vec4
// positions at binding 0, vec4 velocities at 1 and params at 2.
func ParticlesSource() *gpu.ProgramSource {
	ps := gpu.NewProgramSource("particles",
		gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.GLSL, Code: particlesGLSL},
		gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.WGSL, Code: particlesWGSL},
		gpu.Shader{Stage: gpu.ComputeShader, Lang: gpu.Kernel, Code: "particles"})
	ps.LocalSize = [3]int{localSize, 1, 1}
	return ps
}

// RegisterKernels registers the Go versions of the demo kernels.
func RegisterKernels(dev *softgpu.Device) {
	dev.RegisterCompute("double", func(inv *softgpu.Invocation) {
		d := inv.Float32s(0)
		if i := inv.GlobalID[0]; i < len(d) {
			d[i] *= 2
		}
	})
	dev.RegisterCompute("particles", stepParticle)
}

func stepParticle(inv *softgpu.Invocation) {
	pos, vel, prm := inv.Float32s(0), inv.Float32s(1), inv.Float32s(2)
	i := inv.GlobalID[0] * 4
	if i+3 >= len(pos) || len(prm) < 3 {
		return
	}
	dt := prm[0]
	vel[i+1] -= prm[1] * dt
	for k := range 3 {
		pos[i+k] += vel[i+k] * dt
	}
	if pos[i+1] < 0 {
		pos[i+1] = -pos[i+1]
		vel[i+1] = -vel[i+1] * prm[2]
	}
}
