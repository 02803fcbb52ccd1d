// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"cogentcore.org/gpubuf/config"
	"cogentcore.org/gpubuf/gpu"
	"github.com/spf13/cobra"
)

func (a *App) computeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compute [values...]",
		Short: "Double values with a compute kernel",
		Long: `Upload the given values (default 1 2 3 4) to a storage buffer,
double them with a compute kernel and print the values read back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			vals := []float32{1, 2, 3, 4}
			if len(args) > 0 {
				vals = make([]float32, len(args))
				for i, s := range args {
					v, err := strconv.ParseFloat(s, 32)
					if err != nil {
						return fmt.Errorf("value %d: %w", i, err)
					}
					vals[i] = float32(v)
				}
			}
			return a.run(cmd, func(ctx context.Context, dev gpu.Device) error {
				return Compute(ctx, a.Config, dev, cmd.OutOrStdout(), vals)
			})
		},
	}
}

// Compute doubles vals on the device and writes the result to w.
func Compute(ctx context.Context, c *config.Config, dev gpu.Device, w io.Writer, vals []float32) error {
	src, err := loadKernel(c, dev, nil, DoubleSource(), gpu.ComputeShader)
	if err != nil {
		return err
	}
	ss, err := gpu.NewStorageSet(dev, src)
	if err != nil {
		return err
	}
	defer ss.Delete()
	if err := gpu.RegisterStorage(ss, "data", gpu.Shape{len(vals)}, vals, 0); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ss.Dispatch(); err != nil {
		return err
	}
	got, err := gpu.ReadStorage[float32](ss, "data")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, got)
	return err
}
