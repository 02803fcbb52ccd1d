// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ShaderStages are the programmable stages of a program.
type ShaderStages int32

const (
	VertexShader ShaderStages = iota
	ComputeShader
)

func (st ShaderStages) String() string {
	switch st {
	case VertexShader:
		return "vertex"
	case ComputeShader:
		return "compute"
	}
	return fmt.Sprintf("ShaderStages(%d)", int(st))
}

// ShaderLangs are the shading languages of shader code.
// Each device accepts the language(s) it can compile.
type ShaderLangs int32

const (
	// GLSL is OpenGL shading language 4.60 core.
	GLSL ShaderLangs = iota

	// WGSL is the WebGPU shading language.
	WGSL

	// Kernel is the name of a Go kernel registered with the
	// software device.
	Kernel
)

func (sl ShaderLangs) String() string {
	switch sl {
	case GLSL:
		return "glsl"
	case WGSL:
		return "wgsl"
	case Kernel:
		return "kernel"
	}
	return fmt.Sprintf("ShaderLangs(%d)", int(sl))
}

// Shader is the source code for one stage of a program.
type Shader struct {
	Stage ShaderStages
	Lang  ShaderLangs
	Code  string
}

// ProgramSource is everything needed to compile and link a program
// on a device. A device uses the first shader of each stage that is
// in a language it accepts.
type ProgramSource struct {

	// Name is used in diagnostics and logging.
	Name string

	// Shaders are the stage sources, possibly in several languages.
	Shaders []Shader

	// Varyings are the vertex outputs captured by capture programs, in order.
	Varyings []string

	// CaptureMode is the layout of captured outputs.
	CaptureMode CaptureModes

	// EntryPoint is the entry function for WGSL sources (default "main").
	EntryPoint string

	// LocalSize is the compute work group size declared by the kernel,
	// used to convert element counts into work groups.
	LocalSize [3]int
}

// NewProgramSource returns a new program source with the given name and shaders.
func NewProgramSource(name string, shaders ...Shader) *ProgramSource {
	return &ProgramSource{Name: name, Shaders: shaders, LocalSize: [3]int{1, 1, 1}}
}

// AddShader adds the given code for given stage and language.
func (ps *ProgramSource) AddShader(stage ShaderStages, lang ShaderLangs, code string) *ProgramSource {
	ps.Shaders = append(ps.Shaders, Shader{Stage: stage, Lang: lang, Code: code})
	return ps
}

// AddFile adds the code in the given file for given stage,
// with the language set by the extension (see [LangForFile]).
// The path may start with ~.
func (ps *ProgramSource) AddFile(stage ShaderStages, filename string) error {
	fn, err := homedir.Expand(filename)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(fn)
	if err != nil {
		return fmt.Errorf("gpu.ProgramSource AddFile %s: %w", ps.Name, err)
	}
	ps.AddShader(stage, LangForFile(fn), string(b))
	return nil
}

// LangForFile returns the shading language for a file name
// by its extension: .wgsl for WGSL, .kernel for a Go kernel name,
// otherwise GLSL.
func LangForFile(filename string) ShaderLangs {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wgsl":
		return WGSL
	case ".kernel":
		return Kernel
	}
	return GLSL
}

// Stage returns the first shader for given stage in one of the
// given languages, in the order of the shaders.
func (ps *ProgramSource) Stage(stage ShaderStages, langs ...ShaderLangs) (*Shader, bool) {
	for i := range ps.Shaders {
		sh := &ps.Shaders[i]
		if sh.Stage != stage {
			continue
		}
		for _, l := range langs {
			if sh.Lang == l {
				return sh, true
			}
		}
	}
	return nil, false
}

// IsCompute returns whether the source has a compute stage.
func (ps *ProgramSource) IsCompute() bool {
	for _, sh := range ps.Shaders {
		if sh.Stage == ComputeShader {
			return true
		}
	}
	return false
}

// Entry returns the WGSL entry point.
func (ps *ProgramSource) Entry() string {
	if ps.EntryPoint == "" {
		return "main"
	}
	return ps.EntryPoint
}

// WorkGroups returns the number of work groups needed to cover
// the given number of elements along x, using LocalSize.
func (ps *ProgramSource) WorkGroups(n int) [3]int {
	lx := max(ps.LocalSize[0], 1)
	return [3]int{Warps(n, lx), 1, 1}
}

// PassthroughName is the name of the built-in capture program.
const PassthroughName = "passthrough"

// PassthroughGLSL is the built-in capture vertex program,
// copying the position input to the captured outPosition output.
const PassthroughGLSL = `#version 460 core
layout(location = 0) in vec4 position;
out vec4 outPosition;
void main() {
	outPosition = position;
}
`

// PassthroughSource returns the source of the built-in capture
// program, capturing outPosition from the position input.
func PassthroughSource() *ProgramSource {
	ps := NewProgramSource(PassthroughName,
		Shader{Stage: VertexShader, Lang: GLSL, Code: PassthroughGLSL},
		Shader{Stage: VertexShader, Lang: Kernel, Code: PassthroughName})
	ps.Varyings = []string{"outPosition"}
	return ps
}
