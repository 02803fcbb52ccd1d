// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"

	"cogentcore.org/gpubuf/config"
	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/mesh"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"
)

func (a *App) captureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Capture the vertices of a triangle strip",
		Long: `Draw a quad as a triangle strip through the pass-through capture
program and print the captured triangles.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, dev gpu.Device) error {
				return Capture(ctx, a.Config, dev, cmd.OutOrStdout())
			})
		},
	}
}

// Capture captures the two triangles of a quad strip and writes
// the captured vertices to w.
func Capture(ctx context.Context, c *config.Config, dev gpu.Device, w io.Writer) error {
	quad := mesh.Attributes{Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}}
	pr, err := mesh.NewPrimitive("quad", quad, nil, gpu.TriangleStrip, c.ReserveRatio)
	if err != nil {
		return err
	}
	if err := pr.Bind(dev); err != nil {
		return err
	}
	defer pr.Delete()

	cp, err := gpu.NewCapture(dev, nil)
	if err != nil {
		return err
	}
	defer cp.Delete()
	nv := gpu.TriangleStrip.CaptureMode().Vertices() * 2
	out, err := gpu.NewBuffer(dev, "captured", gpu.CaptureBuffer, gpu.SizeOf[mgl32.Vec4](), 1)
	if err != nil {
		return err
	}
	defer out.Delete()
	if err := out.Allocate(nv); err != nil {
		return err
	}
	if err := cp.Attach(out, 0); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cp.Begin(gpu.TriangleStrip); err != nil {
		return err
	}
	if err := cp.DrawArrays(pr.VertexArray(), 0, len(quad.Positions)); err != nil {
		cp.End()
		return err
	}
	n, err := cp.End()
	if err != nil {
		return err
	}
	verts, err := gpu.ReadValues[mgl32.Vec4](out)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "captured %d primitives\n", n)
	for _, v := range verts[:min(len(verts), n*gpu.TriangleStrip.CaptureMode().Vertices())] {
		fmt.Fprintln(w, v)
	}
	return nil
}
