// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cogentcore.org/gpubuf/config"
	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/mesh"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *App) skeletonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skeleton",
		Short: "Draw a growing joint chain with dynamic topology",
		Long: `Grow a chain of joints drawn as lines, updating positions and
topology from a producer goroutine every frame, and report how the
reserve ratio keeps the buffers from being reallocated every frame.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, dev gpu.Device) error {
				return Skeleton(ctx, a.Config, dev, cmd.OutOrStdout())
			})
		},
	}
}

// chain returns the joints of a chain of n joints at the given
// frame, and the line indices connecting them.
func chain(n, frame int) ([]mgl32.Vec3, []uint32) {
	pts := make([]mgl32.Vec3, n)
	for j := range pts {
		pts[j] = mgl32.Vec3{float32(j), math32.Sin(0.5*float32(j) + 0.1*float32(frame)), 0}
	}
	idx := make([]uint32, 0, 2*max(n-1, 0))
	for j := 1; j < n; j++ {
		idx = append(idx, uint32(j-1), uint32(j))
	}
	return pts, idx
}

// Skeleton runs the skeleton demo for the configured number of frames
// and writes a summary to w. The chain is updated on a producer
// goroutine, one frame ahead of the device goroutine, which syncs and
// draws it twice per frame, once per instance pose.
func Skeleton(ctx context.Context, c *config.Config, dev gpu.Device, w io.Writer) error {
	sc := c.Skeleton
	if sc.Joints < 2 || sc.Grow < 0 || sc.Frames < 0 {
		return fmt.Errorf("skeleton: %d joints, grow %d, %d frames: %w", sc.Joints, sc.Grow, sc.Frames, gpu.ErrInvalidArgument)
	}
	pts, idx := chain(sc.Joints, 0)
	pr, err := mesh.NewPrimitive("skeleton", mesh.Attributes{Positions: pts}, idx, gpu.Lines, c.ReserveRatio)
	if err != nil {
		return err
	}
	pr.OnChange = func(p *mesh.Primitive) {
		slog.Debug("skeleton changed", "bounds", p.Bounds())
	}
	if err := pr.SetPoses([]mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(0, 0, 1)}); err != nil {
		return err
	}
	if err := pr.Bind(dev); err != nil {
		return err
	}
	defer pr.Delete()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	frames := make(chan int)
	drawn := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(frames)
		for f := 1; f <= sc.Frames; f++ {
			pts, idx := chain(sc.Joints+f*sc.Grow, f)
			if err := pr.UpdatePositions(pts); err != nil {
				return err
			}
			if err := pr.UpdateTopology(idx); err != nil {
				return err
			}
			select {
			case frames <- f:
			case <-gctx.Done():
				return nil
			}
			select {
			case <-drawn:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	reallocs, prevCap := 0, pr.VertexBuffer().Capacity
	err = func() error {
		for f := range frames {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := pr.Sync(); err != nil {
				return err
			}
			if vc := pr.VertexBuffer().Capacity; vc != prevCap {
				reallocs++
				prevCap = vc
			}
			if err := pr.Draw(); err != nil {
				return err
			}
			slog.Debug("skeleton frame", "frame", f, "joints", pr.VertexBuffer().Len, "capacity", prevCap)
			drawn <- struct{}{}
		}
		return nil
	}()
	cancel()
	if gerr := g.Wait(); err == nil {
		err = gerr
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "skeleton: %d joints, %d frames, vertex capacity %d, index capacity %d, %d reallocations\n",
		pr.VertexBuffer().Len, sc.Frames, pr.VertexBuffer().Capacity, pr.IndexBuffer().Capacity, reallocs)
	return err
}
