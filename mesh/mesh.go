// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mesh

import (
	"fmt"

	"cogentcore.org/gpubuf/base/errors"
	"cogentcore.org/gpubuf/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is a named list of primitives, updated by index.
type Mesh struct {

	// Name of the mesh.
	Name string

	// Primitives of the mesh. The list must not change once
	// updates may be routed to it from other goroutines.
	Primitives []*Primitive
}

// NewMesh returns a new mesh with the given primitives.
func NewMesh(name string, prims ...*Primitive) *Mesh {
	return &Mesh{Name: name, Primitives: prims}
}

// Primitive returns the primitive at index i, or [gpu.ErrInvalidIndex].
func (ms *Mesh) Primitive(i int) (*Primitive, error) {
	if i < 0 || i >= len(ms.Primitives) {
		return nil, fmt.Errorf("mesh.Mesh %s: primitive %d of %d: %w", ms.Name, i, len(ms.Primitives), gpu.ErrInvalidIndex)
	}
	return ms.Primitives[i], nil
}

// UpdatePositions updates the positions of primitive i,
// as [Primitive.UpdatePositions]. An out of range index returns
// [gpu.ErrInvalidIndex] and no primitive is changed.
func (ms *Mesh) UpdatePositions(i int, positions []mgl32.Vec3) error {
	pr, err := ms.Primitive(i)
	if err != nil {
		return err
	}
	return pr.UpdatePositions(positions)
}

// UpdateTopology updates the indexes of primitive i,
// as [Primitive.UpdateTopology]. An out of range index returns
// [gpu.ErrInvalidIndex] and no primitive is changed.
func (ms *Mesh) UpdateTopology(i int, indices []uint32) error {
	pr, err := ms.Primitive(i)
	if err != nil {
		return err
	}
	return pr.UpdateTopology(indices)
}

// UpdateAttributes updates all per-vertex arrays of primitive i,
// as [Primitive.UpdateAttributes].
func (ms *Mesh) UpdateAttributes(i int, attrs Attributes) error {
	pr, err := ms.Primitive(i)
	if err != nil {
		return err
	}
	return pr.UpdateAttributes(attrs)
}

// Bind binds all primitives to the device. If one fails,
// those already bound are unbound again, so that Bind can be
// retried, for example after freeing device memory.
func (ms *Mesh) Bind(dev gpu.Device) error {
	for i, pr := range ms.Primitives {
		if err := pr.Bind(dev); err != nil {
			for _, b := range ms.Primitives[:i] {
				b.unbind()
			}
			return fmt.Errorf("mesh.Mesh Bind %s: %w", ms.Name, err)
		}
	}
	return nil
}

// Sync syncs all primitives, returning the joined errors.
func (ms *Mesh) Sync() error {
	var errs []error
	for _, pr := range ms.Primitives {
		if err := pr.Sync(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Draw draws all primitives, stopping at the first error.
func (ms *Mesh) Draw() error {
	for _, pr := range ms.Primitives {
		if err := pr.Draw(); err != nil {
			return err
		}
	}
	return nil
}

// Delete deletes all primitives.
func (ms *Mesh) Delete() {
	for _, pr := range ms.Primitives {
		pr.Delete()
	}
}

// Bounds returns the union of the bounds of all primitives.
func (ms *Mesh) Bounds() Bounds {
	if len(ms.Primitives) == 0 {
		return Bounds{}
	}
	bb := ms.Primitives[0].Bounds()
	for _, pr := range ms.Primitives[1:] {
		bb = bb.Union(pr.Bounds())
	}
	return bb
}

// Centroid returns the center of the bounds.
func (ms *Mesh) Centroid() mgl32.Vec3 {
	return ms.Bounds().Centroid()
}

// Extents returns the side lengths of the bounds.
func (ms *Mesh) Extents() mgl32.Vec3 {
	return ms.Bounds().Extents()
}

// Scale returns the length of the diagonal of the bounds.
func (ms *Mesh) Scale() float32 {
	return ms.Bounds().Scale()
}

// IsTransparent returns whether any primitive is transparent.
func (ms *Mesh) IsTransparent() bool {
	for _, pr := range ms.Primitives {
		if pr.IsTransparent() {
			return true
		}
	}
	return false
}

// FromPoints returns a point cloud mesh with one [gpu.Points]
// primitive. Colors may be nil, a single color for all points,
// or one per point.
func FromPoints(name string, positions []mgl32.Vec3, colors []mgl32.Vec4, ratio float64) (*Mesh, error) {
	at := Attributes{Positions: positions}
	switch {
	case len(colors) == 1 && len(positions) != 1:
		at.Colors0 = make([]mgl32.Vec4, len(positions))
		for i := range at.Colors0 {
			at.Colors0[i] = colors[0]
		}
	case colors != nil:
		at.Colors0 = colors
	}
	pr, err := NewPrimitive(name, at, nil, gpu.Points, ratio)
	if err != nil {
		return nil, err
	}
	return NewMesh(name, pr), nil
}
