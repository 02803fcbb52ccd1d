// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cogentcore.org/gpubuf/base/errors"
	"cogentcore.org/gpubuf/config"
	"cogentcore.org/gpubuf/gpu"
	"cogentcore.org/gpubuf/mesh"
	"cogentcore.org/gpubuf/shaderwatch"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *App) particlesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "particles",
		Short: "Simulate bouncing particles with a compute kernel",
		Long: `Advance particles with a compute kernel, streaming the simulation
parameters from a producer goroutine, and draw them as a point primitive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, dev gpu.Device) error {
				return Particles(ctx, a.Config, dev, cmd.OutOrStdout())
			})
		},
	}
}

// particleParams are the kernel parameters:
// time step, gravity, bounce and padding.
type particleParams [4]float32

// initParticles places n particles on a ring of radius 1 at height 1,
// moving outward and up.
func initParticles(n int) (pos, vel []float32) {
	pos = make([]float32, 4*n)
	vel = make([]float32, 4*n)
	for i := range n {
		a := 2 * math32.Pi * float32(i) / float32(n)
		c, s := math32.Cos(a), math32.Sin(a)
		copy(pos[4*i:], []float32{c, 1, s, 1})
		copy(vel[4*i:], []float32{0.5 * c, 2, 0.5 * s, 0})
	}
	return
}

func toPoints(pos []float32) []mgl32.Vec3 {
	pts := make([]mgl32.Vec3, len(pos)/4)
	for i := range pts {
		pts[i] = mgl32.Vec3{pos[4*i], pos[4*i+1], pos[4*i+2]}
	}
	return pts
}

// paramsBinding is the binding of the parameters in the particles kernel.
const paramsBinding = 2

// Particles runs the particles simulation for the configured number
// of steps and writes a summary to w. The parameters are produced on
// another goroutine and staged; each step applies the latest. They are
// written to a stream buffer on devices with persistent mapping and
// to a storage entry otherwise. Points are drawn on devices that draw.
func Particles(ctx context.Context, c *config.Config, dev gpu.Device, w io.Writer) error {
	pc := c.Particles
	if pc.Count <= 0 || pc.Steps < 0 {
		return fmt.Errorf("particles: count %d and steps %d: %w", pc.Count, pc.Steps, gpu.ErrInvalidArgument)
	}
	var watch *shaderwatch.Watcher
	if c.Shaders.Watch {
		var err error
		watch, err = shaderwatch.New()
		if err != nil {
			return err
		}
		defer watch.Close()
	}
	src, err := loadKernel(c, dev, watch, ParticlesSource(), gpu.ComputeShader)
	if err != nil {
		return err
	}
	ss, err := gpu.NewStorageSet(dev, src)
	if err != nil {
		return err
	}
	defer ss.Delete()
	pos, vel := initParticles(pc.Count)
	sh := gpu.Shape{pc.Count, 4}
	if err := gpu.RegisterStorage(ss, "positions", sh, pos, 0); err != nil {
		return err
	}
	if err := gpu.RegisterStorage(ss, "velocities", sh, vel, 1); err != nil {
		return err
	}

	params := particleParams{pc.DeltaTime, pc.Gravity, 0.8, 0}
	var writeParams func(p particleParams) error
	if dev.Features().Has(gpu.FeaturePersistentMapping) {
		sb, err := gpu.NewStreamBuffer(dev, "params", gpu.StorageBuffer, gpu.SizeOf[particleParams]())
		if err != nil {
			return err
		}
		defer func() { errors.Log(sb.Delete()) }()
		writeParams = func(p particleParams) error {
			if err := gpu.WriteStream(sb, p[:], 0); err != nil {
				return err
			}
			return sb.Bind(gpu.StorageBuffer, paramsBinding)
		}
	} else {
		if err := gpu.RegisterStorage(ss, "params", gpu.Shape{4}, params[:], paramsBinding); err != nil {
			return err
		}
		writeParams = func(p particleParams) error {
			return gpu.UpdateStorage(ss, "params", gpu.Shape{4}, p[:])
		}
	}
	if err := writeParams(params); err != nil {
		return err
	}

	var ms *mesh.Mesh
	if dev.Features().Has(gpu.FeatureDraw) {
		ms, err = mesh.FromPoints("particles", toPoints(pos), []mgl32.Vec4{{1, 1, 1, 1}}, c.ReserveRatio)
		if err != nil {
			return err
		}
		if err := ms.Bind(dev); err != nil {
			return err
		}
		defer ms.Delete()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var staged gpu.Staged[particleParams]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return produceParams(gctx, pc, &staged)
	})
	err = stepParticles(ctx, pc, ss, ms, watch, &staged, writeParams)
	cancel()
	if gerr := g.Wait(); err == nil {
		err = gerr
	}
	if err != nil {
		return err
	}

	got, err := gpu.ReadStorage[float32](ss, "positions")
	if err != nil {
		return err
	}
	bb := mesh.BoundsOf(toPoints(got))
	_, err = fmt.Fprintf(w, "particles: %d particles, %d steps, bounds %v to %v\n", pc.Count, pc.Steps, bb.Min, bb.Max)
	return err
}

// produceParams stages parameters with a gravity that varies over
// time, once per time step, until ctx is done.
func produceParams(ctx context.Context, pc config.Particles, staged *gpu.Staged[particleParams]) error {
	period := time.Duration(float64(time.Second) * float64(pc.DeltaTime))
	if period <= 0 {
		period = time.Millisecond
	}
	tick := time.NewTicker(period)
	defer tick.Stop()
	for step := 0; ; step++ {
		g := pc.Gravity * (1 + 0.25*math32.Sin(0.1*float32(step)))
		staged.Stage(particleParams{pc.DeltaTime, g, 0.8, 0})
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

func stepParticles(ctx context.Context, pc config.Particles, ss *gpu.StorageSet, ms *mesh.Mesh, watch *shaderwatch.Watcher, staged *gpu.Staged[particleParams], writeParams func(particleParams) error) error {
	groups := ss.Source().WorkGroups(pc.Count)
	for step := range pc.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if watch != nil {
			if _, err := watch.Apply("particles", ss); err != nil {
				slog.Warn("particles kernel not reloaded", "err", err)
			}
		}
		if p, ok := staged.Drain(); ok {
			if err := writeParams(p); err != nil {
				return err
			}
		}
		if err := ss.Dispatch(groups[:]...); err != nil {
			return err
		}
		if ms == nil {
			continue
		}
		pos, err := gpu.ReadStorage[float32](ss, "positions")
		if err != nil {
			return err
		}
		if err := ms.UpdatePositions(0, toPoints(pos)); err != nil {
			return err
		}
		if err := ms.Sync(); err != nil {
			return err
		}
		if err := ms.Draw(); err != nil {
			return err
		}
		slog.Debug("particles step", "step", step, "centroid", ms.Centroid())
	}
	return nil
}
