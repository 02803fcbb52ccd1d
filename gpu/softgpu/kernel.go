// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package softgpu

import (
	"fmt"
	"strings"

	"cogentcore.org/gpubuf/gpu"
)

// ComputeFunc is a compute kernel, called once per invocation.
// As on a real device, it must check GlobalID against the size
// of its data.
type ComputeFunc func(inv *Invocation)

// VertexFunc is a vertex kernel, called once per vertex and
// instance drawn while capturing. It sets the outputs that are
// captured by name.
type VertexFunc func(v *Vertex)

type program struct {
	name      string
	compute   ComputeFunc
	vertex    VertexFunc
	varyings  []string
	mode      gpu.CaptureModes
	localSize [3]int
}

// RegisterCompute registers the compute kernel under the given name,
// for use by [gpu.Kernel] compute shaders with that name as code.
func (dv *Device) RegisterCompute(name string, fn ComputeFunc) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.compute[name] = fn
}

// RegisterVertex registers the vertex kernel under the given name,
// for use by [gpu.Kernel] vertex shaders with that name as code.
func (dv *Device) RegisterVertex(name string, fn VertexFunc) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	dv.vertex[name] = fn
}

func (dv *Device) NewProgram(src *gpu.ProgramSource) (gpu.ProgramHandle, error) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	pr := &program{name: src.Name, varyings: src.Varyings, mode: src.CaptureMode, localSize: src.LocalSize}
	for i, l := range pr.localSize {
		pr.localSize[i] = max(l, 1)
	}
	if sh, ok := src.Stage(gpu.ComputeShader, gpu.Kernel); ok {
		fn, has := dv.compute[strings.TrimSpace(sh.Code)]
		if !has {
			return 0, &gpu.CompileError{Program: src.Name, Stage: gpu.ComputeShader, Log: fmt.Sprintf("compute kernel %q is not registered", sh.Code)}
		}
		pr.compute = fn
	} else if sh, ok := src.Stage(gpu.VertexShader, gpu.Kernel); ok {
		fn, has := dv.vertex[strings.TrimSpace(sh.Code)]
		if !has {
			return 0, &gpu.CompileError{Program: src.Name, Stage: gpu.VertexShader, Log: fmt.Sprintf("vertex kernel %q is not registered", sh.Code)}
		}
		pr.vertex = fn
	} else {
		return 0, &gpu.CompileError{Program: src.Name, Link: true, Log: "no kernel shader in program"}
	}
	p := gpu.ProgramHandle(dv.newHandle())
	dv.programs[p] = pr
	return p, nil
}

func (dv *Device) DeleteProgram(p gpu.ProgramHandle) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	delete(dv.programs, p)
}

// Invocation is one invocation of a [ComputeFunc].
type Invocation struct {

	// GlobalID is the global invocation index in x, y, z.
	GlobalID [3]int

	dev *Device
}

// Storage returns the storage of the buffer bound at the given
// storage binding, nil if none.
func (inv *Invocation) Storage(binding int) []byte {
	return inv.dev.bound(gpu.StorageBuffer, binding)
}

// Float32s returns the storage at the given binding as float32 values.
func (inv *Invocation) Float32s(binding int) []float32 {
	return gpu.FromBytes[float32](inv.Storage(binding))
}

// Float64s returns the storage at the given binding as float64 values.
func (inv *Invocation) Float64s(binding int) []float64 {
	return gpu.FromBytes[float64](inv.Storage(binding))
}

// Uint32s returns the storage at the given binding as uint32 values.
func (inv *Invocation) Uint32s(binding int) []uint32 {
	return gpu.FromBytes[uint32](inv.Storage(binding))
}

// Int32s returns the storage at the given binding as int32 values.
func (inv *Invocation) Int32s(binding int) []int32 {
	return gpu.FromBytes[int32](inv.Storage(binding))
}

func (dv *Device) DispatchCompute(p gpu.ProgramHandle, groups [3]int) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	if !dv.Feats.Has(gpu.FeatureCompute) {
		return fmt.Errorf("softgpu DispatchCompute: %w", gpu.ErrUnsupported)
	}
	pr, ok := dv.programs[p]
	if !ok || pr.compute == nil {
		return fmt.Errorf("softgpu DispatchCompute: %d is not a compute program: %w", p, gpu.ErrInvalidArgument)
	}
	var n [3]int
	for i := range 3 {
		if groups[i] < 1 {
			return fmt.Errorf("softgpu DispatchCompute: work groups %v: %w", groups, gpu.ErrInvalidArgument)
		}
		n[i] = groups[i] * pr.localSize[i]
	}
	inv := &Invocation{dev: dv}
	for z := range n[2] {
		for y := range n[1] {
			for x := range n[0] {
				inv.GlobalID = [3]int{x, y, z}
				pr.compute(inv)
			}
		}
	}
	dv.stats.Dispatches++
	return nil
}

// Vertex is one vertex processed by a [VertexFunc].
type Vertex struct {

	// Index is the vertex index.
	Index int

	// Instance is the instance index.
	Instance int

	vao     *vertexArray
	dev     *Device
	outputs map[string][]float32
}

// Attribute returns the components of the vertex or instance attribute
// at the given location, nil if there is none.
func (v *Vertex) Attribute(location int) []float32 {
	d := &v.vao.desc
	for _, at := range d.Attributes {
		if at.Location == location {
			return v.fetch(d.Vertex, d.Stride, v.Index, at)
		}
	}
	for _, at := range d.InstanceAttributes {
		if at.Location == location {
			return v.fetch(d.Instance, d.InstanceStride, v.Instance, at)
		}
	}
	return nil
}

// fetch reads the attribute of element i, zeros outside of the buffer.
func (v *Vertex) fetch(h gpu.BufferHandle, stride, i int, at gpu.VertexAttribute) []float32 {
	out := make([]float32, at.Components)
	bf, ok := v.dev.buffers[h]
	if !ok {
		return out
	}
	off := i*stride + at.Offset
	if off < 0 || off+4*at.Components > len(bf.data) {
		return out
	}
	copy(out, gpu.FromBytes[float32](bf.data[off:off+4*at.Components]))
	return out
}

// Set sets the named output of the vertex.
func (v *Vertex) Set(name string, vals ...float32) {
	v.outputs[name] = vals
}

// Vec4 returns the attribute at location as 4 components, with the
// missing ones filled from (0, 0, 0, 1).
func (v *Vertex) Vec4(location int) []float32 {
	out := []float32{0, 0, 0, 1}
	copy(out, v.Attribute(location))
	return out
}

// Passthrough is the built-in vertex kernel of the pass-through
// capture program: outPosition is the position at location 0.
func Passthrough(v *Vertex) {
	v.Set("outPosition", v.Vec4(0)...)
}
