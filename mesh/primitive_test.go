// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mesh_test

import (
	"sync"
	"testing"

	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/gpu/softgpu"
	"cogentcore.org/gpubuf/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle() mesh.Attributes {
	return mesh.Attributes{Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}}
}

func contents[E any](dev *softgpu.Device, bf *gpu.Buffer) []E {
	return gpu.FromBytes[E](dev.BufferContents(bf.Handle())[:bf.Len*bf.Stride])
}

func TestNewPrimitiveErrors(t *testing.T) {
	_, err := mesh.NewPrimitive("bad", triangle(), nil, gpu.PrimitiveModes(7), 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidMode)
	_, err = mesh.NewPrimitive("bad", triangle(), nil, gpu.Triangles, 0.5)
	assert.ErrorIs(t, err, gpu.ErrInvalidArgument)
	at := triangle()
	at.Normals = []mgl32.Vec3{{0, 0, 1}}
	_, err = mesh.NewPrimitive("bad", at, nil, gpu.Triangles, 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidShape)
}

func TestPrimitiveLifecycle(t *testing.T) {
	dev := softgpu.NewDevice()
	pr, err := mesh.NewPrimitive("tri", triangle(), []uint32{0, 1, 2}, gpu.Triangles, 2)
	require.NoError(t, err)
	assert.Equal(t, mesh.Unbound, pr.State())
	assert.ErrorIs(t, pr.Sync(), gpu.ErrNotBound)
	assert.ErrorIs(t, pr.Draw(), gpu.ErrNotBound)

	require.NoError(t, pr.Bind(dev))
	assert.Equal(t, mesh.Bound, pr.State())
	assert.ErrorIs(t, pr.Bind(dev), gpu.ErrAlreadyBound)
	assert.Equal(t, 6, pr.VertexBuffer().Capacity)
	assert.Equal(t, 6, pr.IndexBuffer().Capacity)
	assert.True(t, pr.IsIndexed())

	require.NoError(t, pr.Draw())
	d, ok := dev.LastDraw()
	require.True(t, ok)
	assert.True(t, d.Indexed)
	assert.Equal(t, 3, d.Count)
	assert.Equal(t, 1, d.Instances)

	require.NoError(t, pr.UpdatePositions([]mgl32.Vec3{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}}))
	assert.Equal(t, mesh.Dirty, pr.State())
	require.NoError(t, pr.Sync())
	assert.Equal(t, mesh.Synced, pr.State())
	assert.Equal(t, []float32{0, 0, 0, 2, 0, 0, 0, 2, 0}, contents[float32](dev, pr.VertexBuffer()))

	pr.Delete()
	pr.Delete()
	assert.Equal(t, mesh.Deleted, pr.State())
	assert.Equal(t, 0, dev.NumBuffers())
	for _, err := range []error{pr.Sync(), pr.Draw(), pr.Bind(dev), pr.UpdatePositions(nil), pr.UpdateTopology(nil)} {
		assert.ErrorIs(t, err, gpu.ErrNotBound)
		assert.ErrorIs(t, err, gpu.ErrAlreadyDeleted)
	}
}

func TestPrimitiveTopologyNone(t *testing.T) {
	dev := softgpu.NewDevice()
	pr, err := mesh.NewPrimitive("tri", triangle(), []uint32{0, 1, 2}, gpu.Triangles, 1)
	require.NoError(t, err)
	require.NoError(t, pr.Bind(dev))

	require.NoError(t, pr.UpdateTopology(nil))
	require.NoError(t, pr.Sync())
	assert.False(t, pr.IsIndexed())
	assert.Equal(t, mesh.Synced, pr.State())
	assert.NotNil(t, pr.IndexBuffer(), "index buffer stays allocated")
	require.NoError(t, pr.Draw())
	d, _ := dev.LastDraw()
	assert.False(t, d.Indexed)
	assert.Equal(t, 3, d.Count)

	require.NoError(t, pr.UpdateTopology([]uint32{2, 1, 0}))
	require.NoError(t, pr.Sync())
	assert.True(t, pr.IsIndexed())
	require.NoError(t, pr.Draw())
	d, _ = dev.LastDraw()
	assert.True(t, d.Indexed)
	assert.Equal(t, []uint32{2, 1, 0}, contents[uint32](dev, pr.IndexBuffer()))
}

func TestPrimitiveIndexesAdded(t *testing.T) {
	dev := softgpu.NewDevice()
	pr, err := mesh.NewPrimitive("tri", triangle(), nil, gpu.Triangles, 1)
	require.NoError(t, err)
	require.NoError(t, pr.Bind(dev))
	assert.Nil(t, pr.IndexBuffer())
	require.NoError(t, pr.UpdateTopology([]uint32{0, 2, 1}))
	require.NoError(t, pr.Sync())
	require.NotNil(t, pr.IndexBuffer())
	require.NoError(t, pr.Draw())
	d, _ := dev.LastDraw()
	assert.True(t, d.Indexed)
}

func TestPrimitiveLastStageWins(t *testing.T) {
	dev := softgpu.NewDevice()
	pr, err := mesh.NewPrimitive("tri", triangle(), nil, gpu.Points, 1)
	require.NoError(t, err)
	require.NoError(t, pr.Bind(dev))
	require.NoError(t, pr.UpdatePositions([]mgl32.Vec3{{1, 1, 1}}))
	require.NoError(t, pr.UpdatePositions([]mgl32.Vec3{{2, 2, 2}, {3, 3, 3}}))
	dev.ResetStats()
	require.NoError(t, pr.Sync())
	assert.Equal(t, 1, dev.Stats().Writes)
	assert.Equal(t, []float32{2, 2, 2, 3, 3, 3}, contents[float32](dev, pr.VertexBuffer()))
}

func TestPrimitiveUpdatesIndependent(t *testing.T) {
	dev := softgpu.NewDevice()
	pr, err := mesh.NewPrimitive("tri", triangle(), []uint32{0, 1, 2}, gpu.Triangles, 1)
	require.NoError(t, err)
	require.NoError(t, pr.Bind(dev))
	vh, ih := pr.VertexBuffer().Handle(), pr.IndexBuffer().Handle()
	idx := dev.BufferContents(ih)

	dev.ResetStats()
	require.NoError(t, pr.UpdatePositions([]mgl32.Vec3{{5, 5, 5}, {6, 6, 6}, {7, 7, 7}}))
	require.NoError(t, pr.Sync())
	assert.Equal(t, idx, dev.BufferContents(ih))
	assert.Equal(t, 1, dev.Stats().Writes)

	vtx := dev.BufferContents(vh)
	dev.ResetStats()
	require.NoError(t, pr.UpdateTopology([]uint32{1, 2, 0}))
	require.NoError(t, pr.Sync())
	assert.Equal(t, vtx, dev.BufferContents(vh))
	assert.Equal(t, 1, dev.Stats().Writes)
}

func TestPrimitiveGrowth(t *testing.T) {
	dev := softgpu.NewDevice()
	pr, err := mesh.NewPrimitive("lines", mesh.Attributes{Positions: []mgl32.Vec3{{}, {}}}, []uint32{0, 1}, gpu.Lines, 1.5)
	require.NoError(t, err)
	require.NoError(t, pr.Bind(dev))
	vb := pr.VertexBuffer()
	h := vb.Handle()
	assert.Equal(t, 3, vb.Capacity)

	require.NoError(t, pr.UpdatePositions(make([]mgl32.Vec3, 3)))
	require.NoError(t, pr.Sync())
	assert.Equal(t, 3, vb.Capacity)
	require.NoError(t, pr.UpdatePositions(make([]mgl32.Vec3, 4)))
	require.NoError(t, pr.Sync())
	assert.Equal(t, 6, vb.Capacity)
	assert.Equal(t, 4, vb.Len)
	assert.Equal(t, h, vb.Handle(), "handle is stable across growth")
	require.NoError(t, pr.UpdatePositions(make([]mgl32.Vec3, 1)))
	require.NoError(t, pr.Sync())
	assert.Equal(t, 6, vb.Capacity, "capacity never shrinks")
}

func TestPrimitiveEagerValidation(t *testing.T) {
	dev := softgpu.NewDevice()
	at := triangle()
	at.Colors0 = []mgl32.Vec4{{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}}
	pr, err := mesh.NewPrimitive("tri", at, nil, gpu.Triangles, 1)
	require.NoError(t, err)

	err = pr.UpdatePositions(make([]mgl32.Vec3, 4))
	assert.ErrorIs(t, err, gpu.ErrInvalidShape)
	assert.Len(t, pr.Attributes().Positions, 3, "nothing changed")

	require.NoError(t, pr.Bind(dev))
	err = pr.UpdateAttributes(mesh.Attributes{Positions: make([]mgl32.Vec3, 4)})
	assert.ErrorIs(t, err, gpu.ErrInvalidShape, "capabilities cannot change once bound")
	assert.Equal(t, mesh.Bound, pr.State())

	grown := mesh.Attributes{Positions: make([]mgl32.Vec3, 4), Colors0: make([]mgl32.Vec4, 4)}
	require.NoError(t, pr.UpdateAttributes(grown))
	require.NoError(t, pr.Sync())
	assert.Equal(t, 4, pr.VertexBuffer().Len)
	assert.Equal(t, 28, pr.Layout().Stride)
}

func TestPrimitivePoses(t *testing.T) {
	dev := softgpu.NewDevice()
	pr, err := mesh.NewPrimitive("tri", triangle(), nil, gpu.Triangles, 1)
	require.NoError(t, err)
	require.NoError(t, pr.Bind(dev))
	id := mgl32.Ident4()
	assert.Equal(t, id[:], contents[float32](dev, pr.PoseBuffer()))
	assert.Equal(t, 1, pr.NumInstances())

	poses := []mgl32.Mat4{mgl32.Translate3D(1, 0, 0), mgl32.Translate3D(0, 0, -3), mgl32.Ident4()}
	require.NoError(t, pr.SetPoses(poses))
	require.NoError(t, pr.Sync())
	assert.Equal(t, 3, pr.NumInstances())
	require.NoError(t, pr.Draw())
	d, _ := dev.LastDraw()
	assert.Equal(t, 3, d.Instances)
	got := contents[float32](dev, pr.PoseBuffer())
	assert.Equal(t, []float32{1, 0, 0, 1}, got[12:16], "column major translation")

	bb := pr.Bounds()
	assert.Equal(t, mgl32.Vec3{0, 0, -3}, bb.Min)
	assert.Equal(t, mgl32.Vec3{2, 1, 0}, bb.Max)
}

func TestPrimitiveBoundsAndChange(t *testing.T) {
	pr, err := mesh.NewPrimitive("tri", triangle(), nil, gpu.Triangles, 1)
	require.NoError(t, err)
	changes := 0
	pr.OnChange = func(*mesh.Primitive) { changes++ }
	assert.Equal(t, mgl32.Vec3{1, 1, 0}, pr.Extents())
	assert.Equal(t, mgl32.Vec3{0.5, 0.5, 0}, pr.Centroid())

	require.NoError(t, pr.UpdatePositions([]mgl32.Vec3{{-1, 0, 0}, {1, 0, 0}, {0, 0, 4}}))
	require.NoError(t, pr.UpdateTopology([]uint32{0, 1, 2}))
	assert.Equal(t, 2, changes)
	assert.Equal(t, mgl32.Vec3{2, 0, 4}, pr.Extents())
	assert.InDelta(t, 4.472136, pr.Scale(), 1e-5)
	pr.InvalidateBounds()
	assert.Equal(t, mgl32.Vec3{0, 0, 2}, pr.Centroid())

	assert.Error(t, pr.UpdatePositions(nil))
	assert.Equal(t, 2, changes, "failed updates do not notify")
}

type glass struct{}

func (glass) Translucent() bool { return true }

func TestPrimitiveTransparency(t *testing.T) {
	at := triangle()
	at.Colors0 = []mgl32.Vec4{{1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}}
	pr, err := mesh.NewPrimitive("tri", at, nil, gpu.Triangles, 1)
	require.NoError(t, err)
	assert.False(t, pr.IsTransparent())
	pr.Material = glass{}
	assert.True(t, pr.IsTransparent())
	pr.Material = nil
	at.Colors0[1][3] = 0.5
	require.NoError(t, pr.UpdateAttributes(at))
	assert.True(t, pr.IsTransparent())
	assert.Equal(t, mesh.Position|mesh.Color0, pr.Capabilities())
}

func TestPrimitiveConcurrentUpdates(t *testing.T) {
	dev := softgpu.NewDevice()
	pr, err := mesh.NewPrimitive("points", mesh.Attributes{Positions: []mgl32.Vec3{{}}}, nil, gpu.Points, 2)
	require.NoError(t, err)
	require.NoError(t, pr.Bind(dev))

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				pos := make([]mgl32.Vec3, w+1)
				pos[0] = mgl32.Vec3{float32(i), 0, 0}
				assert.NoError(t, pr.UpdatePositions(pos))
			}
		}()
	}
	for range 20 {
		require.NoError(t, pr.Sync())
	}
	wg.Wait()
	require.NoError(t, pr.Sync())
	assert.Equal(t, mesh.Synced, pr.State())
	assert.Equal(t, len(pr.Attributes().Positions), pr.VertexBuffer().Len)
}

func TestPrimitiveBindUnsupported(t *testing.T) {
	dev := softgpu.NewDevice()
	dev.Feats = gpu.FeatureCompute
	pr, err := mesh.NewPrimitive("tri", triangle(), nil, gpu.Triangles, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, pr.Bind(dev), gpu.ErrUnsupported)
	assert.Equal(t, mesh.Unbound, pr.State())

	dev = softgpu.NewDevice()
	dev.MemoryLimit = 40
	assert.ErrorIs(t, pr.Bind(dev), gpu.ErrDeviceResourceExhausted)
	assert.Equal(t, mesh.Unbound, pr.State())
	assert.Equal(t, 0, dev.NumBuffers())
}
