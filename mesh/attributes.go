// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mesh

import (
	"fmt"

	"cogentcore.org/gpubuf/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Attributes are the per-vertex arrays of a primitive.
// Positions are required; every other non-nil array must have
// one row per position.
type Attributes struct {
	Positions  []mgl32.Vec3
	Normals    []mgl32.Vec3
	Tangents   []mgl32.Vec4
	TexCoords0 []mgl32.Vec2
	TexCoords1 []mgl32.Vec2
	Colors0    []mgl32.Vec4
	Joints0    []mgl32.Vec4
	Weights0   []mgl32.Vec4
}

// NumVertex returns the number of vertices.
func (at *Attributes) NumVertex() int {
	return len(at.Positions)
}

// Capabilities returns the mask of the arrays that are present.
func (at *Attributes) Capabilities() Capabilities {
	c := Position
	set := func(has bool, f Capabilities) {
		if has {
			c |= f
		}
	}
	set(at.Normals != nil, Normal)
	set(at.Tangents != nil, Tangent)
	set(at.TexCoords0 != nil, TexCoord0)
	set(at.TexCoords1 != nil, TexCoord1)
	set(at.Colors0 != nil, Color0)
	set(at.Joints0 != nil, Joints0)
	set(at.Weights0 != nil, Weights0)
	return c
}

// Validate returns [gpu.ErrInvalidShape] if positions are missing
// or any other array has a different number of rows.
func (at *Attributes) Validate() error {
	if at.Positions == nil {
		return fmt.Errorf("mesh.Attributes: positions are required: %w", gpu.ErrInvalidShape)
	}
	n := len(at.Positions)
	rows := []struct {
		name string
		n    int
		has  bool
	}{
		{"normals", len(at.Normals), at.Normals != nil},
		{"tangents", len(at.Tangents), at.Tangents != nil},
		{"texcoord_0", len(at.TexCoords0), at.TexCoords0 != nil},
		{"texcoord_1", len(at.TexCoords1), at.TexCoords1 != nil},
		{"color_0", len(at.Colors0), at.Colors0 != nil},
		{"joints_0", len(at.Joints0), at.Joints0 != nil},
		{"weights_0", len(at.Weights0), at.Weights0 != nil},
	}
	for _, r := range rows {
		if r.has && r.n != n {
			return fmt.Errorf("mesh.Attributes: %s has %d rows, positions %d: %w", r.name, r.n, n, gpu.ErrInvalidShape)
		}
	}
	return nil
}

// Interleave returns the vertex data in the given layout.
// Arrays not in the layout are skipped.
func (at *Attributes) Interleave(ly *Layout) []float32 {
	nf := ly.Floats()
	data := make([]float32, at.NumVertex()*nf)
	for i := range at.Positions {
		v := data[i*nf : (i+1)*nf]
		for _, la := range ly.Attributes {
			o := la.Offset / 4
			switch la.Capability {
			case Position:
				copy(v[o:], at.Positions[i][:])
			case Normal:
				copy(v[o:], at.Normals[i][:])
			case Tangent:
				copy(v[o:], at.Tangents[i][:])
			case TexCoord0:
				copy(v[o:], at.TexCoords0[i][:])
			case TexCoord1:
				copy(v[o:], at.TexCoords1[i][:])
			case Color0:
				copy(v[o:], at.Colors0[i][:])
			}
		}
	}
	return data
}

// Index is an integer type usable as vertex indexes.
type Index interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// ToIndices converts indexes of any integer type to the uint32 indexes
// uploaded to the device. A nil slice stays nil. Indexes that do not
// fit in uint32 return [gpu.ErrInvalidIndex].
func ToIndices[I Index](idx []I) ([]uint32, error) {
	if idx == nil {
		return nil, nil
	}
	out := make([]uint32, len(idx))
	for i, x := range idx {
		if x < 0 || uint64(x) > 1<<32-1 {
			return nil, fmt.Errorf("mesh.ToIndices: index %d at %d: %w", x, i, gpu.ErrInvalidIndex)
		}
		out[i] = uint32(x)
	}
	return out, nil
}
