// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package softgpu

import (
	"fmt"

	"cogentcore.org/gpubuf/gpu"
)

type captureState struct {
	program    *program
	mode       gpu.PrimitiveModes
	discard    bool
	offsets    map[int]int
	primitives int
	full       bool
}

func (dv *Device) BeginCapture(p gpu.ProgramHandle, mode gpu.PrimitiveModes, discard bool) error {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	if !dv.Feats.Has(gpu.FeatureCapture) {
		return fmt.Errorf("softgpu BeginCapture: %w", gpu.ErrUnsupported)
	}
	if dv.capture != nil {
		return fmt.Errorf("softgpu BeginCapture: %w", gpu.ErrCaptureActive)
	}
	if err := mode.Validate(); err != nil {
		return fmt.Errorf("softgpu BeginCapture: %w", err)
	}
	pr, ok := dv.programs[p]
	if !ok || pr.vertex == nil || len(pr.varyings) == 0 {
		return fmt.Errorf("softgpu BeginCapture: %d is not a capture program: %w", p, gpu.ErrInvalidArgument)
	}
	dv.capture = &captureState{program: pr, mode: mode.CaptureMode(), discard: discard, offsets: make(map[int]int)}
	return nil
}

func (dv *Device) EndCapture() (int, error) {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	cs := dv.capture
	if cs == nil {
		return 0, fmt.Errorf("softgpu EndCapture: no capture active: %w", gpu.ErrInvalidArgument)
	}
	dv.capture = nil
	return cs.primitives, nil
}

func (dv *Device) CaptureActive() bool {
	dv.mu.Lock()
	defer dv.mu.Unlock()
	return dv.capture != nil
}

// Assemble returns the vertex positions (indexes into a sequence of n
// vertices) of each primitive drawn with the given mode, as the
// independent primitives of the mode's capture mode.
func Assemble(mode gpu.PrimitiveModes, n int) [][]int {
	var prims [][]int
	switch mode {
	case gpu.Points:
		for i := range n {
			prims = append(prims, []int{i})
		}
	case gpu.Lines:
		for i := 0; i+1 < n; i += 2 {
			prims = append(prims, []int{i, i + 1})
		}
	case gpu.LineStrip, gpu.LineLoop:
		for i := 0; i+1 < n; i++ {
			prims = append(prims, []int{i, i + 1})
		}
		if mode == gpu.LineLoop && n > 1 {
			prims = append(prims, []int{n - 1, 0})
		}
	case gpu.Triangles:
		for i := 0; i+2 < n; i += 3 {
			prims = append(prims, []int{i, i + 1, i + 2})
		}
	case gpu.TriangleStrip:
		for i := 0; i+2 < n; i++ {
			if i%2 == 0 {
				prims = append(prims, []int{i, i + 1, i + 2})
			} else {
				prims = append(prims, []int{i + 1, i, i + 2})
			}
		}
	case gpu.TriangleFan:
		for i := 1; i+1 < n; i++ {
			prims = append(prims, []int{0, i, i + 1})
		}
	}
	return prims
}

// captureDraw runs the capture program over the drawn vertices
// and writes the outputs of each assembled primitive. Primitives
// that do not fit in every target are dropped, and so are all
// later ones.
func (dv *Device) captureDraw(vo *vertexArray, mode gpu.PrimitiveModes, verts []int, instances int) error {
	cs := dv.capture
	if mode.CaptureMode() != cs.mode {
		return fmt.Errorf("draw mode %s does not match capture mode %s: %w", mode, cs.mode, gpu.ErrInvalidMode)
	}
	pr := cs.program
	prims := Assemble(mode, len(verts))
	for inst := range instances {
		outs := make([][][]float32, len(verts))
		for i, vi := range verts {
			v := &Vertex{Index: vi, Instance: inst, vao: vo, dev: dv, outputs: make(map[string][]float32)}
			pr.vertex(v)
			outs[i] = make([][]float32, len(pr.varyings))
			for j, nm := range pr.varyings {
				o, ok := v.outputs[nm]
				if !ok {
					o = make([]float32, 4)
				}
				outs[i][j] = o
			}
		}
		for _, prim := range prims {
			if cs.full || !dv.capturePrimitive(prim, outs) {
				cs.full = true
				return nil
			}
			cs.primitives++
		}
	}
	return nil
}

// capturePrimitive writes the outputs of the primitive's vertices,
// returning false if they do not fit.
func (dv *Device) capturePrimitive(prim []int, outs [][][]float32) bool {
	cs := dv.capture
	pr := cs.program
	recs := make(map[int][]float32)
	for _, vi := range prim {
		for j, o := range outs[vi] {
			b := 0
			if pr.mode == gpu.CaptureSeparate {
				b = j
			}
			recs[b] = append(recs[b], o...)
		}
	}
	for b, rec := range recs {
		dst := dv.bound(gpu.CaptureBuffer, b)
		if cs.offsets[b]+4*len(rec) > len(dst) {
			return false
		}
	}
	for b, rec := range recs {
		dst := dv.bound(gpu.CaptureBuffer, b)
		off := cs.offsets[b]
		copy(dst[off:], gpu.ToBytes(rec))
		cs.offsets[b] = off + 4*len(rec)
	}
	return true
}
