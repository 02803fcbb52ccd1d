// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mesh

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// BoundsOf returns the bounds of the given points,
// the zero Bounds if there are none.
func BoundsOf(pts []mgl32.Vec3) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	bb := Bounds{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		bb.ExpandByPoint(p)
	}
	return bb
}

// ExpandByPoint grows the bounds to include p.
func (bb *Bounds) ExpandByPoint(p mgl32.Vec3) {
	for i := range 3 {
		bb.Min[i] = math32.Min(bb.Min[i], p[i])
		bb.Max[i] = math32.Max(bb.Max[i], p[i])
	}
}

// Union returns the bounds including both.
func (bb Bounds) Union(o Bounds) Bounds {
	bb.ExpandByPoint(o.Min)
	bb.ExpandByPoint(o.Max)
	return bb
}

// Centroid returns the center of the box.
func (bb Bounds) Centroid() mgl32.Vec3 {
	return bb.Min.Add(bb.Max).Mul(0.5)
}

// Extents returns the lengths of the sides of the box.
func (bb Bounds) Extents() mgl32.Vec3 {
	return bb.Max.Sub(bb.Min)
}

// Scale returns the length of the diagonal of the box.
func (bb Bounds) Scale() float32 {
	e := bb.Extents()
	return math32.Sqrt(e.Dot(e))
}

// posesBounds returns the bounds of the given points, offset by the
// range of the pose translations: the min and max translations are
// added to the min and max points.
func posesBounds(pts []mgl32.Vec3, poses []mgl32.Mat4) Bounds {
	bb := BoundsOf(pts)
	if len(poses) == 0 {
		return bb
	}
	tb := Bounds{Min: poses[0].Col(3).Vec3(), Max: poses[0].Col(3).Vec3()}
	for _, p := range poses[1:] {
		tb.ExpandByPoint(p.Col(3).Vec3())
	}
	bb.Min = bb.Min.Add(tb.Min)
	bb.Max = bb.Max.Add(tb.Max)
	return bb
}
