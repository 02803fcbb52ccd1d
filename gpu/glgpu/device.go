// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package glgpu provides a [gpu.Device] on an OpenGL 4.6 core context,
// using go-gl. All methods must be called on the goroutine that locked
// its OS thread and made the context current, as [NewHeadless] does.
package glgpu

import (
	"fmt"
	"unsafe"

	"cogentcore.org/gpubuf/gpu"
	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Device is an OpenGL [gpu.Device]. Buffer, program and vertex array
// handles are the OpenGL object names.
type Device struct {

	// Window owning the context, nil if the context was made elsewhere.
	Window *glfw.Window

	version    string
	programs   map[gpu.ProgramHandle]*program
	persistent map[gpu.BufferHandle]bool
	capture    *capture
}

type program struct {
	name     string
	compute  bool
	varyings []string
}

type capture struct {
	query   uint32
	discard bool
}

// NewDevice returns a device for the OpenGL context that is current
// on the calling thread, loading the OpenGL functions.
func NewDevice() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("glgpu.NewDevice: %v: %w", err, gpu.ErrUnsupported)
	}
	dv := &Device{
		version:    gl.GoStr(gl.GetString(gl.VERSION)),
		programs:   make(map[gpu.ProgramHandle]*program),
		persistent: make(map[gpu.BufferHandle]bool),
	}
	gpu.Logger().Info("glgpu device", "version", dv.version, "renderer", gl.GoStr(gl.GetString(gl.RENDERER)))
	return dv, nil
}

// NewHeadless creates a hidden window with an OpenGL 4.6 core context,
// makes it current and returns a device for it. The calling goroutine
// must have locked its OS thread (runtime.LockOSThread) and must make
// all later calls on the device.
func NewHeadless(width, height int, title string) (*Device, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glgpu.NewHeadless: %v: %w", err, gpu.ErrUnsupported)
	}
	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("glgpu.NewHeadless: %v: %w", err, gpu.ErrUnsupported)
	}
	win.MakeContextCurrent()
	dv, err := NewDevice()
	if err != nil {
		win.Destroy()
		glfw.Terminate()
		return nil, err
	}
	dv.Window = win
	return dv, nil
}

func (dv *Device) Name() string {
	return "OpenGL " + dv.version
}

func (dv *Device) Features() gpu.Features {
	return gpu.FeatureCompute | gpu.FeaturePersistentMapping | gpu.FeatureCapture | gpu.FeatureDraw
}

// Release destroys the window and terminates glfw, if made by NewHeadless.
// Device objects are released with the context.
func (dv *Device) Release() {
	if dv.Window == nil {
		return
	}
	dv.Window.Destroy()
	dv.Window = nil
	glfw.Terminate()
}

// checkError returns the pending OpenGL error, if any.
func checkError(op string) error {
	switch e := gl.GetError(); e {
	case gl.NO_ERROR:
		return nil
	case gl.OUT_OF_MEMORY:
		return fmt.Errorf("glgpu %s: out of memory: %w", op, gpu.ErrDeviceResourceExhausted)
	default:
		return fmt.Errorf("glgpu %s: error 0x%x: %w", op, e, gpu.ErrInvalidArgument)
	}
}

func glTarget(t gpu.BufferTargets) uint32 {
	switch t {
	case gpu.IndexBuffer:
		return gl.ELEMENT_ARRAY_BUFFER
	case gpu.StorageBuffer:
		return gl.SHADER_STORAGE_BUFFER
	case gpu.CaptureBuffer:
		return gl.TRANSFORM_FEEDBACK_BUFFER
	case gpu.UniformBuffer:
		return gl.UNIFORM_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func glUsage(u gpu.Usages) uint32 {
	switch u {
	case gpu.DynamicDraw:
		return gl.DYNAMIC_DRAW
	case gpu.DynamicCopy:
		return gl.DYNAMIC_COPY
	}
	return gl.STATIC_DRAW
}

func glMode(m gpu.PrimitiveModes) uint32 {
	return [...]uint32{gl.POINTS, gl.LINES, gl.LINE_LOOP, gl.LINE_STRIP, gl.TRIANGLES, gl.TRIANGLE_STRIP, gl.TRIANGLE_FAN}[m]
}

// bind binds the buffer to its target. The vertex array is unbound
// first so that index buffer bindings do not change it.
func bind(target gpu.BufferTargets, h gpu.BufferHandle) uint32 {
	t := glTarget(target)
	if target == gpu.IndexBuffer {
		gl.BindVertexArray(0)
	}
	gl.BindBuffer(t, uint32(h))
	return t
}

func (dv *Device) NewBuffer(target gpu.BufferTargets) (gpu.BufferHandle, error) {
	var h uint32
	gl.GenBuffers(1, &h)
	if h == 0 {
		return 0, fmt.Errorf("glgpu NewBuffer: no buffer name: %w", gpu.ErrDeviceResourceExhausted)
	}
	return gpu.BufferHandle(h), nil
}

func (dv *Device) BufferData(target gpu.BufferTargets, h gpu.BufferHandle, size int, usage gpu.Usages) error {
	if dv.persistent[h] {
		return fmt.Errorf("glgpu BufferData: buffer %d has immutable storage: %w", h, gpu.ErrInvalidArgument)
	}
	t := bind(target, h)
	gl.BufferData(t, size, nil, glUsage(usage))
	gl.BindBuffer(t, 0)
	return checkError("BufferData")
}

func (dv *Device) BufferSubData(target gpu.BufferTargets, h gpu.BufferHandle, offset int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	t := bind(target, h)
	gl.BufferSubData(t, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(t, 0)
	return checkError("BufferSubData")
}

// ReadBuffer reads with glGetBufferSubData, which waits for all
// prior commands writing the buffer.
func (dv *Device) ReadBuffer(target gpu.BufferTargets, h gpu.BufferHandle, offset int, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	t := bind(target, h)
	gl.GetBufferSubData(t, offset, len(dst), gl.Ptr(dst))
	gl.BindBuffer(t, 0)
	return checkError("ReadBuffer")
}

const persistentFlags = gl.MAP_WRITE_BIT | gl.MAP_PERSISTENT_BIT | gl.MAP_COHERENT_BIT

func (dv *Device) MapPersistent(target gpu.BufferTargets, h gpu.BufferHandle, size int) ([]byte, error) {
	if dv.persistent[h] {
		return nil, fmt.Errorf("glgpu MapPersistent: buffer %d has immutable storage: %w", h, gpu.ErrInvalidArgument)
	}
	t := bind(target, h)
	defer gl.BindBuffer(t, 0)
	gl.BufferStorage(t, size, nil, persistentFlags|gl.DYNAMIC_STORAGE_BIT)
	if err := checkError("MapPersistent"); err != nil {
		return nil, err
	}
	dv.persistent[h] = true
	p := gl.MapBufferRange(t, 0, size, persistentFlags)
	if p == nil {
		err := checkError("MapBufferRange")
		if err == nil {
			err = gpu.ErrDeviceResourceExhausted
		}
		return nil, fmt.Errorf("glgpu MapPersistent: mapping buffer %d: %w", h, err)
	}
	return unsafe.Slice((*byte)(p), size), nil
}

func (dv *Device) Unmap(target gpu.BufferTargets, h gpu.BufferHandle) error {
	t := bind(target, h)
	ok := gl.UnmapBuffer(t)
	gl.BindBuffer(t, 0)
	if !ok {
		return fmt.Errorf("glgpu Unmap: buffer %d: %w", h, gpu.ErrInvalidArgument)
	}
	return nil
}

func (dv *Device) DeleteBuffer(h gpu.BufferHandle) {
	b := uint32(h)
	gl.DeleteBuffers(1, &b)
	delete(dv.persistent, h)
}

func (dv *Device) BindBufferBase(target gpu.BufferTargets, binding int, h gpu.BufferHandle) error {
	if !target.Indexed() || binding < 0 {
		return fmt.Errorf("glgpu BindBufferBase: %s binding %d: %w", target, binding, gpu.ErrInvalidArgument)
	}
	gl.BindBufferBase(glTarget(target), uint32(binding), uint32(h))
	return checkError("BindBufferBase")
}

func (dv *Device) MemoryBarrier(b gpu.Barriers) {
	var bits uint32
	if b&gpu.StorageBarrier != 0 {
		bits |= gl.SHADER_STORAGE_BARRIER_BIT
	}
	if b&gpu.VertexAttribBarrier != 0 {
		bits |= gl.VERTEX_ATTRIB_ARRAY_BARRIER_BIT
	}
	if b&gpu.BufferUpdateBarrier != 0 {
		bits |= gl.BUFFER_UPDATE_BARRIER_BIT
	}
	if b == gpu.AllBarriers {
		bits = gl.ALL_BARRIER_BITS
	}
	gl.MemoryBarrier(bits)
}
