// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"cogentcore.org/gpubuf/config"
	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/gpu/glgpu"
	"cogentcore.org/gpubuf/gpu/softgpu"
	"cogentcore.org/gpubuf/gpu/webgpu"
	"cogentcore.org/gpubuf/shaderwatch"
)

// NewDevice returns a new device for the configured backend.
// The gl backend must be created on the main, locked OS thread.
func NewDevice(c *config.Config) (gpu.Device, error) {
	switch c.Backend {
	case config.Soft:
		dev := softgpu.NewDevice()
		RegisterKernels(dev)
		return dev, nil
	case config.GL:
		dev, err := glgpu.NewHeadless(c.Window.Width, c.Window.Height, c.Window.Title)
		if err != nil {
			return nil, err
		}
		return dev, nil
	case config.WebGPU:
		dev, err := webgpu.NewDevice()
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
	return nil, fmt.Errorf("unknown backend %q: %w", c.Backend, gpu.ErrUnsupported)
}

// deviceLang returns the shading language compiled by the device.
func deviceLang(dev gpu.Device) gpu.ShaderLangs {
	switch dev.(type) {
	case *softgpu.Device:
		return gpu.Kernel
	case *webgpu.Device:
		return gpu.WGSL
	}
	return gpu.GLSL
}

// kernelFile returns the file for the named kernel stage in the
// language of the device, within dir.
func kernelFile(dir, name string, stage gpu.ShaderStages, lang gpu.ShaderLangs) string {
	ext := ".comp"
	switch {
	case lang == gpu.WGSL:
		ext = ".wgsl"
	case lang == gpu.Kernel:
		ext = ".kernel"
	case stage == gpu.VertexShader:
		ext = ".vert"
	}
	return filepath.Join(dir, name+ext)
}

// loadKernel returns src with the code of its stage replaced by the
// kernel file in the configured shader directory, if there is one
// for the language of the device. If watching is configured, the
// file is watched with w.
func loadKernel(c *config.Config, dev gpu.Device, w *shaderwatch.Watcher, src *gpu.ProgramSource, stage gpu.ShaderStages) (*gpu.ProgramSource, error) {
	if c.Shaders.Dir == "" {
		return src, nil
	}
	fn := kernelFile(c.Shaders.Dir, src.Name, stage, deviceLang(dev))
	if _, err := os.Stat(fn); err != nil {
		return src, nil
	}
	ns := *src
	ns.Shaders = nil
	if err := ns.AddFile(stage, fn); err != nil {
		return nil, err
	}
	ns.Shaders = append(ns.Shaders, src.Shaders...)
	if w != nil && c.Shaders.Watch {
		if err := w.Watch(src.Name, &ns, stage, fn); err != nil {
			return nil, err
		}
	}
	return &ns, nil
}
