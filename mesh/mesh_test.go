// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mesh_test

import (
	"testing"

	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/gpu/softgpu"
	"cogentcore.org/gpubuf/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPrimitives(t *testing.T) *mesh.Mesh {
	a, err := mesh.NewPrimitive("a", triangle(), []uint32{0, 1, 2}, gpu.Triangles, 1)
	require.NoError(t, err)
	b, err := mesh.NewPrimitive("b", mesh.Attributes{Positions: []mgl32.Vec3{{5, 5, 5}, {6, 6, 6}}}, nil, gpu.Lines, 1)
	require.NoError(t, err)
	return mesh.NewMesh("pair", a, b)
}

func TestMeshInvalidIndex(t *testing.T) {
	dev := softgpu.NewDevice()
	ms := twoPrimitives(t)
	require.NoError(t, ms.Bind(dev))
	before := make(map[gpu.BufferHandle][]byte)
	for _, pr := range ms.Primitives {
		before[pr.VertexBuffer().Handle()] = dev.BufferContents(pr.VertexBuffer().Handle())
	}

	assert.ErrorIs(t, ms.UpdatePositions(2, []mgl32.Vec3{{}}), gpu.ErrInvalidIndex)
	assert.ErrorIs(t, ms.UpdatePositions(-1, []mgl32.Vec3{{}}), gpu.ErrInvalidIndex)
	assert.ErrorIs(t, ms.UpdateTopology(7, nil), gpu.ErrInvalidIndex)
	assert.ErrorIs(t, ms.UpdateAttributes(2, mesh.Attributes{}), gpu.ErrInvalidIndex)
	for _, pr := range ms.Primitives {
		assert.Equal(t, mesh.Bound, pr.State())
	}
	require.NoError(t, ms.Sync())
	for h, data := range before {
		assert.Equal(t, data, dev.BufferContents(h))
	}
}

func TestMeshRouting(t *testing.T) {
	dev := softgpu.NewDevice()
	ms := twoPrimitives(t)
	require.NoError(t, ms.Bind(dev))
	require.NoError(t, ms.UpdatePositions(1, []mgl32.Vec3{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}, {3, 3, 3}}))
	require.NoError(t, ms.UpdateTopology(0, nil))
	assert.Equal(t, mesh.Dirty, ms.Primitives[0].State())
	assert.Equal(t, mesh.Dirty, ms.Primitives[1].State())
	require.NoError(t, ms.Sync())
	assert.False(t, ms.Primitives[0].IsIndexed())
	assert.Equal(t, 4, ms.Primitives[1].VertexBuffer().Len)

	dev.ResetStats()
	require.NoError(t, ms.Draw())
	assert.Len(t, dev.Draws(), 2)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, ms.Bounds().Min)
	assert.Equal(t, mgl32.Vec3{3, 3, 3}, ms.Bounds().Max)
	assert.Equal(t, mgl32.Vec3{1.5, 1.5, 1.5}, ms.Centroid())
	ms.Delete()
	assert.Equal(t, 0, dev.NumBuffers())
	assert.ErrorIs(t, ms.Draw(), gpu.ErrAlreadyDeleted)
}

func TestMeshBindRollback(t *testing.T) {
	dev := softgpu.NewDevice()
	ms := twoPrimitives(t)
	require.NoError(t, ms.Primitives[1].Bind(dev))
	err := ms.Bind(dev)
	assert.ErrorIs(t, err, gpu.ErrAlreadyBound)
	assert.Equal(t, mesh.Unbound, ms.Primitives[0].State())
}

func TestMeshBindRetry(t *testing.T) {
	dev := softgpu.NewDevice()
	dev.MemoryLimit = 4096
	a, err := mesh.NewPrimitive("a", triangle(), []uint32{0, 1, 2}, gpu.Triangles, 1)
	require.NoError(t, err)
	b, err := mesh.NewPrimitive("b", mesh.Attributes{Positions: make([]mgl32.Vec3, 1000)}, nil, gpu.Points, 1)
	require.NoError(t, err)
	ms := mesh.NewMesh("big", a, b)

	assert.ErrorIs(t, ms.Bind(dev), gpu.ErrDeviceResourceExhausted)
	assert.Equal(t, mesh.Unbound, a.State())
	assert.Equal(t, mesh.Unbound, b.State())
	assert.Nil(t, a.VertexBuffer())
	assert.Equal(t, 0, dev.NumBuffers())

	dev.MemoryLimit = 0
	require.NoError(t, ms.Bind(dev))
	assert.Equal(t, mesh.Bound, a.State())
	assert.Equal(t, mesh.Bound, b.State())
	require.NoError(t, ms.Draw())
	assert.Len(t, dev.Draws(), 2)
}

func TestFromPoints(t *testing.T) {
	dev := softgpu.NewDevice()
	pts := []mgl32.Vec3{{0, 0, 0}, {1, 2, 3}, {-1, 0, 1}}
	ms, err := mesh.FromPoints("cloud", pts, []mgl32.Vec4{{1, 0, 0, 0.5}}, 1)
	require.NoError(t, err)
	require.Len(t, ms.Primitives, 1)
	pr := ms.Primitives[0]
	assert.Equal(t, gpu.Points, pr.Mode)
	assert.Len(t, pr.Attributes().Colors0, 3)
	assert.True(t, ms.IsTransparent())
	assert.Equal(t, mgl32.Vec3{2, 2, 3}, ms.Extents())

	require.NoError(t, ms.Bind(dev))
	require.NoError(t, ms.Draw())
	d, _ := dev.LastDraw()
	assert.Equal(t, gpu.Points, d.Mode)
	assert.Equal(t, 3, d.Count)

	_, err = mesh.FromPoints("bad", pts, make([]mgl32.Vec4, 2), 1)
	assert.ErrorIs(t, err, gpu.ErrInvalidShape)
	ms, err = mesh.FromPoints("plain", pts, nil, 1)
	require.NoError(t, err)
	assert.False(t, ms.IsTransparent())
	assert.InDelta(t, 4.1231, ms.Scale(), 1e-4)
}
