// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glgpu

import (
	"fmt"

	"cogentcore.org/gpubuf/gpu"
	"github.com/go-gl/gl/v4.6-core/gl"
)

func setAttributes(h gpu.BufferHandle, stride int, attrs []gpu.VertexAttribute, divisor uint32) {
	if h == 0 {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(h))
	for _, at := range attrs {
		loc := uint32(at.Location)
		gl.EnableVertexAttribArray(loc)
		gl.VertexAttribPointer(loc, int32(at.Components), gl.FLOAT, false, int32(stride), gl.PtrOffset(at.Offset))
		gl.VertexAttribDivisor(loc, divisor)
	}
}

func (dv *Device) NewVertexArray(desc *gpu.VertexArrayDesc) (gpu.VertexArrayHandle, error) {
	var va uint32
	gl.GenVertexArrays(1, &va)
	gl.BindVertexArray(va)
	setAttributes(desc.Vertex, desc.Stride, desc.Attributes, 0)
	setAttributes(desc.Instance, desc.InstanceStride, desc.InstanceAttributes, 1)
	if desc.Index != 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(desc.Index))
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if err := checkError("NewVertexArray"); err != nil {
		gl.DeleteVertexArrays(1, &va)
		return 0, err
	}
	return gpu.VertexArrayHandle(va), nil
}

func (dv *Device) SetVertexArrayIndex(va gpu.VertexArrayHandle, index gpu.BufferHandle) error {
	gl.BindVertexArray(uint32(va))
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(index))
	gl.BindVertexArray(0)
	return checkError("SetVertexArrayIndex")
}

func (dv *Device) DeleteVertexArray(va gpu.VertexArrayHandle) {
	v := uint32(va)
	gl.DeleteVertexArrays(1, &v)
}

func (dv *Device) DrawArrays(va gpu.VertexArrayHandle, mode gpu.PrimitiveModes, first, count, instances int) error {
	if err := mode.Validate(); err != nil {
		return fmt.Errorf("glgpu DrawArrays: %w", err)
	}
	gl.BindVertexArray(uint32(va))
	gl.DrawArraysInstanced(glMode(mode), int32(first), int32(count), int32(instances))
	gl.BindVertexArray(0)
	return checkError("DrawArrays")
}

func (dv *Device) DrawElements(va gpu.VertexArrayHandle, mode gpu.PrimitiveModes, count, instances int) error {
	if err := mode.Validate(); err != nil {
		return fmt.Errorf("glgpu DrawElements: %w", err)
	}
	gl.BindVertexArray(uint32(va))
	gl.DrawElementsInstanced(glMode(mode), int32(count), gl.UNSIGNED_INT, nil, int32(instances))
	gl.BindVertexArray(0)
	return checkError("DrawElements")
}

var _ gpu.Device = (*Device)(nil)
