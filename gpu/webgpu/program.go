// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webgpu

import (
	"fmt"
	"slices"

	"cogentcore.org/gpubuf/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// NewProgram compiles the WGSL compute stage of the source into
// a compute pipeline with an automatic layout.
func (dv *Device) NewProgram(src *gpu.ProgramSource) (gpu.ProgramHandle, error) {
	sh, ok := src.Stage(gpu.ComputeShader, gpu.WGSL)
	if !ok {
		if _, vok := src.Stage(gpu.VertexShader, gpu.WGSL, gpu.GLSL, gpu.Kernel); vok {
			return 0, fmt.Errorf("webgpu NewProgram %s: vertex programs: %w", src.Name, gpu.ErrUnsupported)
		}
		return 0, &gpu.CompileError{Program: src.Name, Link: true, Log: "no WGSL compute shader in program"}
	}
	mod, err := dv.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          src.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: sh.Code},
	})
	if err != nil {
		return 0, &gpu.CompileError{Program: src.Name, Stage: gpu.ComputeShader, Log: err.Error()}
	}
	pl, err := dv.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: src.Name,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     mod,
			EntryPoint: src.Entry(),
		},
	})
	if err != nil {
		mod.Release()
		return 0, &gpu.CompileError{Program: src.Name, Link: true, Log: err.Error()}
	}
	h := gpu.ProgramHandle(dv.newHandle())
	dv.programs[h] = &program{name: src.Name, module: mod, pipeline: pl}
	gpu.Logger().Debug("webgpu pipeline created", "program", src.Name, "entry", src.Entry())
	return h, nil
}

func (dv *Device) DeleteProgram(p gpu.ProgramHandle) {
	pr, ok := dv.programs[p]
	if !ok {
		return
	}
	pr.pipeline.Release()
	pr.module.Release()
	delete(dv.programs, p)
}

// DispatchCompute binds the storage buffers bound with BindBufferBase
// as group 0 and runs one compute pass.
func (dv *Device) DispatchCompute(p gpu.ProgramHandle, groups [3]int) error {
	pr, ok := dv.programs[p]
	if !ok {
		return fmt.Errorf("webgpu DispatchCompute: unknown program %d: %w", p, gpu.ErrInvalidArgument)
	}
	bindings := make([]int, 0, len(dv.bindings))
	for bi := range dv.bindings {
		bindings = append(bindings, bi)
	}
	slices.Sort(bindings)
	entries := make([]wgpu.BindGroupEntry, len(bindings))
	for i, bi := range bindings {
		b := dv.buffers[dv.bindings[bi]]
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(bi),
			Buffer:  b.buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}
	layout := pr.pipeline.GetBindGroupLayout(0)
	defer layout.Release()
	bg, err := dv.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   pr.name,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("webgpu DispatchCompute %s: %v: %w", pr.name, err, gpu.ErrInvalidArgument)
	}
	defer bg.Release()

	cmd, err := dv.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("webgpu DispatchCompute %s: %w", pr.name, err)
	}
	defer cmd.Release()
	ce := cmd.BeginComputePass(nil)
	ce.SetPipeline(pr.pipeline)
	ce.SetBindGroup(0, bg, nil)
	ce.DispatchWorkgroups(uint32(groups[0]), uint32(groups[1]), uint32(groups[2]))
	err = ce.End()
	ce.Release()
	if err != nil {
		return fmt.Errorf("webgpu DispatchCompute %s: %w", pr.name, err)
	}
	return dv.submit(cmd)
}

func (dv *Device) NewVertexArray(desc *gpu.VertexArrayDesc) (gpu.VertexArrayHandle, error) {
	return 0, fmt.Errorf("webgpu NewVertexArray: %w", gpu.ErrUnsupported)
}

func (dv *Device) SetVertexArrayIndex(va gpu.VertexArrayHandle, index gpu.BufferHandle) error {
	return fmt.Errorf("webgpu SetVertexArrayIndex: %w", gpu.ErrUnsupported)
}

func (dv *Device) DeleteVertexArray(va gpu.VertexArrayHandle) {}

func (dv *Device) DrawArrays(va gpu.VertexArrayHandle, mode gpu.PrimitiveModes, first, count, instances int) error {
	return fmt.Errorf("webgpu DrawArrays: %w", gpu.ErrUnsupported)
}

func (dv *Device) DrawElements(va gpu.VertexArrayHandle, mode gpu.PrimitiveModes, count, instances int) error {
	return fmt.Errorf("webgpu DrawElements: %w", gpu.ErrUnsupported)
}

func (dv *Device) BeginCapture(p gpu.ProgramHandle, mode gpu.PrimitiveModes, discard bool) error {
	return fmt.Errorf("webgpu BeginCapture: %w", gpu.ErrUnsupported)
}

func (dv *Device) EndCapture() (int, error) {
	return 0, fmt.Errorf("webgpu EndCapture: %w", gpu.ErrUnsupported)
}

func (dv *Device) CaptureActive() bool {
	return false
}
