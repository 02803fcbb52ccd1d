// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glgpu

import (
	"fmt"
	"strings"

	"cogentcore.org/gpubuf/gpu"
	"github.com/go-gl/gl/v4.6-core/gl"
)

// compileShader compiles GLSL source for the given shader type,
// returning the info log on failure.
func compileShader(code string, typ uint32) (uint32, string, bool) {
	sh := gl.CreateShader(typ)
	csrc, free := gl.Strs(code + "\x00")
	gl.ShaderSource(sh, 1, csrc, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(sh, logLength, nil, gl.Str(log))
		gl.DeleteShader(sh)
		return 0, strings.TrimRight(log, "\x00"), false
	}
	return sh, "", true
}

func (dv *Device) NewProgram(src *gpu.ProgramSource) (gpu.ProgramHandle, error) {
	pr := &program{name: src.Name, varyings: src.Varyings}
	stage := gpu.VertexShader
	typ := uint32(gl.VERTEX_SHADER)
	sh, ok := src.Stage(gpu.ComputeShader, gpu.GLSL)
	if ok {
		stage, typ, pr.compute = gpu.ComputeShader, gl.COMPUTE_SHADER, true
	} else if sh, ok = src.Stage(gpu.VertexShader, gpu.GLSL); !ok {
		return 0, &gpu.CompileError{Program: src.Name, Link: true, Log: "no GLSL shader in program"}
	}
	shader, log, ok := compileShader(sh.Code, typ)
	if !ok {
		return 0, &gpu.CompileError{Program: src.Name, Stage: stage, Log: log}
	}
	p := gl.CreateProgram()
	gl.AttachShader(p, shader)
	if !pr.compute && len(src.Varyings) > 0 {
		mode := uint32(gl.INTERLEAVED_ATTRIBS)
		if src.CaptureMode == gpu.CaptureSeparate {
			mode = gl.SEPARATE_ATTRIBS
		}
		vars, free := gl.Strs(terminated(src.Varyings)...)
		gl.TransformFeedbackVaryings(p, int32(len(src.Varyings)), vars, mode)
		free()
	}
	gl.LinkProgram(p)
	gl.DeleteShader(shader)

	var status int32
	gl.GetProgramiv(p, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(p, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(p, logLength, nil, gl.Str(log))
		gl.DeleteProgram(p)
		return 0, &gpu.CompileError{Program: src.Name, Link: true, Log: strings.TrimRight(log, "\x00")}
	}
	h := gpu.ProgramHandle(p)
	dv.programs[h] = pr
	gpu.Logger().Debug("glgpu program linked", "program", src.Name, "stage", stage, "varyings", src.Varyings)
	return h, nil
}

func terminated(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s + "\x00"
	}
	return out
}

func (dv *Device) DeleteProgram(p gpu.ProgramHandle) {
	gl.DeleteProgram(uint32(p))
	delete(dv.programs, p)
}

func (dv *Device) DispatchCompute(p gpu.ProgramHandle, groups [3]int) error {
	pr, ok := dv.programs[p]
	if !ok || !pr.compute {
		return fmt.Errorf("glgpu DispatchCompute: %d is not a compute program: %w", p, gpu.ErrInvalidArgument)
	}
	gl.UseProgram(uint32(p))
	gl.DispatchCompute(uint32(groups[0]), uint32(groups[1]), uint32(groups[2]))
	gl.UseProgram(0)
	return checkError("DispatchCompute")
}

func (dv *Device) BeginCapture(p gpu.ProgramHandle, mode gpu.PrimitiveModes, discard bool) error {
	if dv.capture != nil {
		return fmt.Errorf("glgpu BeginCapture: %w", gpu.ErrCaptureActive)
	}
	if err := mode.Validate(); err != nil {
		return fmt.Errorf("glgpu BeginCapture: %w", err)
	}
	pr, ok := dv.programs[p]
	if !ok || pr.compute || len(pr.varyings) == 0 {
		return fmt.Errorf("glgpu BeginCapture: %d is not a capture program: %w", p, gpu.ErrInvalidArgument)
	}
	cp := &capture{discard: discard}
	gl.UseProgram(uint32(p))
	if discard {
		gl.Enable(gl.RASTERIZER_DISCARD)
	}
	gl.GenQueries(1, &cp.query)
	gl.BeginQuery(gl.TRANSFORM_FEEDBACK_PRIMITIVES_WRITTEN, cp.query)
	gl.BeginTransformFeedback(glMode(mode.CaptureMode()))
	if err := checkError("BeginCapture"); err != nil {
		dv.endCapture(cp)
		return err
	}
	dv.capture = cp
	return nil
}

// endCapture ends transform feedback and returns the number
// of primitives written, waiting for the query result.
func (dv *Device) endCapture(cp *capture) uint32 {
	gl.EndTransformFeedback()
	gl.EndQuery(gl.TRANSFORM_FEEDBACK_PRIMITIVES_WRITTEN)
	var n uint32
	gl.GetQueryObjectuiv(cp.query, gl.QUERY_RESULT, &n)
	gl.DeleteQueries(1, &cp.query)
	if cp.discard {
		gl.Disable(gl.RASTERIZER_DISCARD)
	}
	gl.UseProgram(0)
	return n
}

func (dv *Device) EndCapture() (int, error) {
	cp := dv.capture
	if cp == nil {
		return 0, fmt.Errorf("glgpu EndCapture: no capture active: %w", gpu.ErrInvalidArgument)
	}
	dv.capture = nil
	n := dv.endCapture(cp)
	return int(n), checkError("EndCapture")
}

func (dv *Device) CaptureActive() bool {
	return dv.capture != nil
}
