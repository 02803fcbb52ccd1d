// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mesh

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"cogentcore.org/gpubuf/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// States are the lifecycle states of a [Primitive].
type States int32

const (
	// Unbound has no device buffers yet.
	Unbound States = iota

	// Bound has device buffers holding the initial data.
	Bound

	// Dirty is bound with staged updates not yet synced.
	Dirty

	// Synced is bound with all staged updates applied.
	Synced

	// Deleted has released its device buffers; it is inert.
	Deleted
)

var stateNames = [...]string{"Unbound", "Bound", "Dirty", "Synced", "Deleted"}

func (st States) String() string {
	if st < 0 || int(st) >= len(stateNames) {
		return fmt.Sprintf("States(%d)", int(st))
	}
	return stateNames[st]
}

// Material is the part of a material consulted by a primitive.
type Material interface {

	// Translucent returns whether the material is partially transparent.
	Translucent() bool
}

// Primitive is drawable geometry: interleaved vertex attributes in one
// growable vertex buffer, optional uint32 indexes in a growable index
// buffer, and instance pose matrices.
//
// The Update and SetPoses methods can be called from any goroutine:
// they validate and record the new data and stage it without touching
// the device. Bind, Sync, Draw and Delete must be called on the
// goroutine owning the device.
type Primitive struct {

	// Name is used in errors, logging and device buffer names.
	Name string

	// Mode is the kind of primitives drawn.
	Mode gpu.PrimitiveModes

	// ReserveRatio is applied to the vertex, index and pose buffers.
	ReserveRatio float64

	// Material, if set, is consulted by IsTransparent.
	Material Material

	// OnChange, if set, is called after every update of positions,
	// topology, attributes or poses, on the updating goroutine.
	OnChange func(pr *Primitive)

	// mu protects the CPU-side data below.
	mu      sync.Mutex
	attrs   Attributes
	indices []uint32
	poses   []mgl32.Mat4
	bounds  *Bounds

	vertexCell gpu.Staged[Attributes]
	indexCell  gpu.Staged[[]uint32]
	poseCell   gpu.Staged[[]mgl32.Mat4]

	state     atomic.Int32
	boundCaps atomic.Int32

	// owned by the device goroutine
	device   gpu.Device
	layout   *Layout
	vertex   *gpu.Buffer
	index    *gpu.Buffer
	instance *gpu.Buffer
	vao      gpu.VertexArrayHandle
	indexed  bool
}

// NewPrimitive returns a new unbound primitive with the given
// attributes, indexes (nil for none), mode and reserve ratio.
// The slices are copied.
func NewPrimitive(name string, attrs Attributes, indices []uint32, mode gpu.PrimitiveModes, ratio float64) (*Primitive, error) {
	if err := mode.Validate(); err != nil {
		return nil, fmt.Errorf("mesh.NewPrimitive %s: %w", name, err)
	}
	if ratio < 1 {
		return nil, fmt.Errorf("mesh.NewPrimitive %s: reserve ratio %g must be >= 1: %w", name, ratio, gpu.ErrInvalidArgument)
	}
	if err := attrs.Validate(); err != nil {
		return nil, fmt.Errorf("mesh.NewPrimitive %s: %w", name, err)
	}
	pr := &Primitive{Name: name, Mode: mode, ReserveRatio: ratio}
	pr.attrs = attrs.Clone()
	pr.indices = slices.Clone(indices)
	return pr, nil
}

// Clone returns a copy of the attributes with all arrays copied.
func (at *Attributes) Clone() Attributes {
	return Attributes{
		Positions:  slices.Clone(at.Positions),
		Normals:    slices.Clone(at.Normals),
		Tangents:   slices.Clone(at.Tangents),
		TexCoords0: slices.Clone(at.TexCoords0),
		TexCoords1: slices.Clone(at.TexCoords1),
		Colors0:    slices.Clone(at.Colors0),
		Joints0:    slices.Clone(at.Joints0),
		Weights0:   slices.Clone(at.Weights0),
	}
}

// State returns the current lifecycle state.
func (pr *Primitive) State() States {
	st := States(pr.state.Load())
	if (st == Bound || st == Synced) && pr.pending() {
		return Dirty
	}
	return st
}

func (pr *Primitive) pending() bool {
	return pr.vertexCell.Pending() || pr.indexCell.Pending() || pr.poseCell.Pending()
}

func (pr *Primitive) deletedError(op string) error {
	return gpu.DeletedError(fmt.Sprintf("mesh.Primitive %s %s", op, pr.Name))
}

// checkBound returns an error unless the primitive is bound.
func (pr *Primitive) checkBound(op string) error {
	switch States(pr.state.Load()) {
	case Deleted:
		return pr.deletedError(op)
	case Unbound:
		return fmt.Errorf("mesh.Primitive %s %s: %w", op, pr.Name, gpu.ErrNotBound)
	}
	return nil
}

// Attributes returns the current attributes. The arrays must not
// be modified.
func (pr *Primitive) Attributes() Attributes {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.attrs
}

// Indices returns the current indexes, nil for none.
// They must not be modified.
func (pr *Primitive) Indices() []uint32 {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.indices
}

// Poses returns the current instance poses, nil for a single
// identity instance. They must not be modified.
func (pr *Primitive) Poses() []mgl32.Mat4 {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.poses
}

// Capabilities returns the mask of the current per-vertex arrays.
func (pr *Primitive) Capabilities() Capabilities {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.attrs.Capabilities()
}

// Layout returns the vertex layout built at Bind, nil before.
func (pr *Primitive) Layout() *Layout {
	return pr.layout
}

// VertexBuffer returns the vertex buffer, nil before Bind.
func (pr *Primitive) VertexBuffer() *gpu.Buffer {
	return pr.vertex
}

// IndexBuffer returns the index buffer, nil if no indexes were ever synced.
func (pr *Primitive) IndexBuffer() *gpu.Buffer {
	return pr.index
}

// PoseBuffer returns the instance pose buffer, nil before Bind.
func (pr *Primitive) PoseBuffer() *gpu.Buffer {
	return pr.instance
}

// VertexArray returns the device vertex array, 0 before Bind.
func (pr *Primitive) VertexArray() gpu.VertexArrayHandle {
	return pr.vao
}

// IsIndexed returns whether draws use the index buffer,
// as of the last Bind or Sync.
func (pr *Primitive) IsIndexed() bool {
	return pr.indexed
}

// update applies fn to the CPU-side data under the lock and,
// if it succeeds, invalidates the bounds and calls OnChange.
func (pr *Primitive) update(op string, fn func() error) error {
	if States(pr.state.Load()) == Deleted {
		return pr.deletedError(op)
	}
	pr.mu.Lock()
	err := fn()
	if err == nil {
		pr.bounds = nil
	}
	pr.mu.Unlock()
	if err != nil {
		return fmt.Errorf("mesh.Primitive %s %s: %w", op, pr.Name, err)
	}
	if pr.OnChange != nil {
		pr.OnChange(pr)
	}
	return nil
}

// stageAttributes validates at as the new attributes and stages them.
// Must be called with mu held.
func (pr *Primitive) stageAttributes(at Attributes) error {
	if err := at.Validate(); err != nil {
		return err
	}
	if bc := Capabilities(pr.boundCaps.Load()); bc != 0 && at.Capabilities() != bc {
		return fmt.Errorf("capabilities %s differ from bound layout %s: %w", at.Capabilities(), bc, gpu.ErrInvalidShape)
	}
	pr.attrs = at
	pr.vertexCell.Stage(at)
	return nil
}

// UpdatePositions replaces the vertex positions. The number of
// positions must match the other per-vertex arrays, if any
// ([gpu.ErrInvalidShape]); use UpdateAttributes to change the
// vertex count of a primitive with other arrays.
// The new data is applied to the device by the next Sync;
// index data is not affected.
func (pr *Primitive) UpdatePositions(positions []mgl32.Vec3) error {
	return pr.update("UpdatePositions", func() error {
		at := pr.attrs
		at.Positions = slices.Clone(positions)
		return pr.stageAttributes(at)
	})
}

// UpdateAttributes replaces all per-vertex arrays. Once bound, the
// set of arrays present must stay the same ([gpu.ErrInvalidShape]).
// The new data is applied to the device by the next Sync.
func (pr *Primitive) UpdateAttributes(attrs Attributes) error {
	return pr.update("UpdateAttributes", func() error {
		return pr.stageAttributes(attrs.Clone())
	})
}

// UpdateTopology replaces the indexes. Nil makes the primitive
// non-indexed after the next Sync: the index buffer stays allocated
// and is used again once new indexes are given.
// Vertex data is not affected.
func (pr *Primitive) UpdateTopology(indices []uint32) error {
	return pr.update("UpdateTopology", func() error {
		pr.indices = slices.Clone(indices)
		pr.indexCell.Stage(pr.indices)
		return nil
	})
}

// SetPoses sets the instance poses; nil draws one identity instance.
func (pr *Primitive) SetPoses(poses []mgl32.Mat4) error {
	return pr.update("SetPoses", func() error {
		pr.poses = slices.Clone(poses)
		pr.poseCell.Stage(pr.poses)
		return nil
	})
}

// poseData returns the instance matrices for the given poses.
func poseData(poses []mgl32.Mat4) []mgl32.Mat4 {
	if len(poses) == 0 {
		return []mgl32.Mat4{mgl32.Ident4()}
	}
	return poses
}

// Bind creates the device buffers and vertex array on the given device,
// sized from the current data. Updates staged before Bind are part of
// that data. Binding twice returns [gpu.ErrAlreadyBound].
func (pr *Primitive) Bind(dev gpu.Device) error {
	switch States(pr.state.Load()) {
	case Deleted:
		return pr.deletedError("Bind")
	case Unbound:
	default:
		return fmt.Errorf("mesh.Primitive Bind %s: %w", pr.Name, gpu.ErrAlreadyBound)
	}
	if !dev.Features().Has(gpu.FeatureDraw) {
		return fmt.Errorf("mesh.Primitive Bind %s: drawing on %s: %w", pr.Name, dev.Name(), gpu.ErrUnsupported)
	}
	pr.mu.Lock()
	at, idx, poses := pr.attrs, pr.indices, pr.poses
	pr.vertexCell.Discard()
	pr.indexCell.Discard()
	pr.poseCell.Discard()
	pr.boundCaps.Store(int32(at.Capabilities()))
	pr.mu.Unlock()

	var made []*gpu.Buffer
	fail := func(err error) error {
		for _, bf := range made {
			bf.Delete()
		}
		pr.boundCaps.Store(0)
		return fmt.Errorf("mesh.Primitive Bind %s: %w", pr.Name, err)
	}
	newBuffer := func(suffix string, target gpu.BufferTargets, stride int, data []byte) (*gpu.Buffer, error) {
		bf, err := gpu.NewBuffer(dev, pr.Name+"."+suffix, target, stride, pr.ReserveRatio)
		if err != nil {
			return nil, err
		}
		made = append(made, bf)
		return bf, bf.Write(data)
	}

	ly := NewLayout(at.Capabilities())
	vb, err := newBuffer("vertex", gpu.VertexBuffer, ly.Stride, gpu.ToBytes(at.Interleave(ly)))
	if err != nil {
		return fail(err)
	}
	pb, err := newBuffer("poses", gpu.VertexBuffer, InstanceStride, gpu.ToBytes(poseData(poses)))
	if err != nil {
		return fail(err)
	}
	var ib *gpu.Buffer
	if idx != nil {
		if ib, err = newBuffer("index", gpu.IndexBuffer, 4, gpu.ToBytes(idx)); err != nil {
			return fail(err)
		}
	}
	desc := &gpu.VertexArrayDesc{
		Vertex:             vb.Handle(),
		Stride:             ly.Stride,
		Attributes:         ly.VertexAttributes(),
		Instance:           pb.Handle(),
		InstanceStride:     InstanceStride,
		InstanceAttributes: ly.InstanceAttributes(),
	}
	if ib != nil {
		desc.Index = ib.Handle()
	}
	va, err := dev.NewVertexArray(desc)
	if err != nil {
		return fail(err)
	}
	pr.device = dev
	pr.layout = ly
	pr.vertex = vb
	pr.instance = pb
	pr.index = ib
	pr.vao = va
	pr.indexed = ib != nil
	pr.state.Store(int32(Bound))
	gpu.Logger().Debug("mesh.Primitive bound", "primitive", pr.Name, "caps", ly.Caps, "vertices", vb.Len, "indexed", pr.indexed)
	return nil
}

// Sync applies all staged updates to the device buffers, growing them
// as needed. If applying an update fails, it stays staged for the next
// Sync unless a newer one has been staged since.
func (pr *Primitive) Sync() error {
	if err := pr.checkBound("Sync"); err != nil {
		return err
	}
	if at, ok := pr.vertexCell.Drain(); ok {
		if err := pr.vertex.Write(gpu.ToBytes(at.Interleave(pr.layout))); err != nil {
			pr.vertexCell.Restore(at)
			return fmt.Errorf("mesh.Primitive Sync %s: %w", pr.Name, err)
		}
	}
	if idx, ok := pr.indexCell.Drain(); ok {
		if err := pr.writeIndices(idx); err != nil {
			pr.indexCell.Restore(idx)
			return fmt.Errorf("mesh.Primitive Sync %s: %w", pr.Name, err)
		}
	}
	if ps, ok := pr.poseCell.Drain(); ok {
		if err := pr.instance.Write(gpu.ToBytes(poseData(ps))); err != nil {
			pr.poseCell.Restore(ps)
			return fmt.Errorf("mesh.Primitive Sync %s: %w", pr.Name, err)
		}
	}
	pr.state.Store(int32(Synced))
	return nil
}

func (pr *Primitive) writeIndices(idx []uint32) error {
	if idx == nil {
		pr.indexed = false
		return nil
	}
	if pr.index == nil {
		bf, err := gpu.NewBuffer(pr.device, pr.Name+".index", gpu.IndexBuffer, 4, pr.ReserveRatio)
		if err != nil {
			return err
		}
		if err := gpu.WriteValues(bf, idx); err != nil {
			bf.Delete()
			return err
		}
		if err := pr.device.SetVertexArrayIndex(pr.vao, bf.Handle()); err != nil {
			bf.Delete()
			return err
		}
		pr.index = bf
	} else if err := gpu.WriteValues(pr.index, idx); err != nil {
		return err
	}
	pr.indexed = true
	return nil
}

// NumInstances returns the number of instances drawn.
func (pr *Primitive) NumInstances() int {
	if pr.instance == nil {
		return 1
	}
	return max(pr.instance.Len, 1)
}

// Draw draws the primitive as of the last Sync, indexed if it has
// indexes, once per instance pose.
func (pr *Primitive) Draw() error {
	if err := pr.checkBound("Draw"); err != nil {
		return err
	}
	if pr.indexed {
		return pr.device.DrawElements(pr.vao, pr.Mode, pr.index.Len, pr.NumInstances())
	}
	return pr.device.DrawArrays(pr.vao, pr.Mode, 0, pr.vertex.Len, pr.NumInstances())
}

// Delete releases the device buffers and vertex array, and discards
// staged updates. All later operations fail with an error matching
// both [gpu.ErrNotBound] and [gpu.ErrAlreadyDeleted].
// It can be called more than once.
func (pr *Primitive) Delete() {
	if States(pr.state.Swap(int32(Deleted))) == Deleted {
		return
	}
	pr.release()
}

// unbind releases the device resources and returns the primitive
// to the Unbound state, keeping its CPU-side data, so that it can
// be bound again.
func (pr *Primitive) unbind() {
	switch States(pr.state.Load()) {
	case Unbound, Deleted:
		return
	}
	pr.release()
	pr.boundCaps.Store(0)
	pr.state.Store(int32(Unbound))
}

// release deletes the vertex array and buffers and discards
// staged updates.
func (pr *Primitive) release() {
	if pr.device != nil {
		pr.device.DeleteVertexArray(pr.vao)
		for _, bf := range []*gpu.Buffer{pr.vertex, pr.instance, pr.index} {
			if bf != nil {
				bf.Delete()
			}
		}
	}
	pr.vertexCell.Discard()
	pr.indexCell.Discard()
	pr.poseCell.Discard()
	pr.device = nil
	pr.layout = nil
	pr.vertex, pr.instance, pr.index = nil, nil, nil
	pr.vao = 0
	pr.indexed = false
}

// Bounds returns the axis-aligned bounds of the positions, offset
// by the range of the pose translations. It is cached until the
// next update or InvalidateBounds.
func (pr *Primitive) Bounds() Bounds {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if pr.bounds == nil {
		bb := posesBounds(pr.attrs.Positions, pr.poses)
		pr.bounds = &bb
	}
	return *pr.bounds
}

// InvalidateBounds clears the cached bounds.
func (pr *Primitive) InvalidateBounds() {
	pr.mu.Lock()
	pr.bounds = nil
	pr.mu.Unlock()
}

// Centroid returns the center of the bounds.
func (pr *Primitive) Centroid() mgl32.Vec3 {
	return pr.Bounds().Centroid()
}

// Extents returns the side lengths of the bounds.
func (pr *Primitive) Extents() mgl32.Vec3 {
	return pr.Bounds().Extents()
}

// Scale returns the length of the diagonal of the bounds.
func (pr *Primitive) Scale() float32 {
	return pr.Bounds().Scale()
}

// IsTransparent returns whether the primitive is partially
// transparent: the material is translucent, or any vertex color
// has alpha below 1.
func (pr *Primitive) IsTransparent() bool {
	if pr.Material != nil && pr.Material.Translucent() {
		return true
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	for _, c := range pr.attrs.Colors0 {
		if c[3] < 1 {
			return true
		}
	}
	return false
}
