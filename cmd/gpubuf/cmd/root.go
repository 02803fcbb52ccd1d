// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmd contains the command definitions
// for the gpubuf tool.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cogentcore.org/gpubuf/base/errors"
	"cogentcore.org/gpubuf/base/logx"
	"cogentcore.org/gpubuf/config"
	"cogentcore.org/gpubuf/gpu"
	"github.com/spf13/cobra"
)

// App holds the state shared by the gpubuf commands.
type App struct {

	// Config is the effective configuration, set before any command runs.
	Config *config.Config

	configFile  string
	backend     string
	timeout     time.Duration
	verbose     bool
	veryVerbose bool
	quiet       bool
}

// NewRootCmd returns the gpubuf root command with all subcommands.
func NewRootCmd() *cobra.Command {
	a := &App{}
	root := &cobra.Command{
		Use:   "gpubuf",
		Short: "GPU geometry and compute buffer demos",
		Long: `gpubuf runs demos of growable device buffers, storage buffer compute,
persistently mapped stream buffers, vertex capture and dynamic mesh
primitives, on the software, OpenGL or WebGPU backend.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "config file (.toml or .yaml)")
	pf.StringVar(&a.backend, "backend", "", "device backend: soft, gl or webgpu")
	pf.DurationVar(&a.timeout, "timeout", time.Minute, "maximum run time of a demo")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "show info messages")
	pf.BoolVar(&a.veryVerbose, "vv", false, "show debug messages")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "only show errors")
	errors.Must(root.MarkPersistentFlagFilename("config", "toml", "yaml", "yml"))

	root.AddCommand(
		a.computeCmd(),
		a.particlesCmd(),
		a.skeletonCmd(),
		a.captureCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads the configuration, applies the flags and sets up logging.
func (a *App) setup(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if a.configFile != "" {
		var err error
		c, err = config.Open(a.configFile)
		if err != nil {
			return err
		}
	}
	if a.backend != "" {
		c.Backend = config.Backends(a.backend)
	}
	c.Log.VeryVerbose = c.Log.VeryVerbose || a.veryVerbose
	c.Log.Verbose = c.Log.Verbose || a.verbose
	c.Log.Quiet = c.Log.Quiet || a.quiet
	if err := c.Validate(); err != nil {
		return err
	}
	a.Config = c
	logx.SetLevel(c.LogLevel())
	logx.SetDefaultLogger()
	gpu.SetLogger(slog.Default())
	return nil
}

// run runs fn with a new device and a context bounded by the timeout.
func (a *App) run(cmd *cobra.Command, fn func(ctx context.Context, dev gpu.Device) error) error {
	dev, err := NewDevice(a.Config)
	if err != nil {
		return err
	}
	defer dev.Release()
	slog.Info("device", "backend", a.Config.Backend, "name", dev.Name(), "features", dev.Features())
	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()
	return fn(ctx, dev)
}

func (a *App) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [file]",
		Short: "Print or save the effective configuration",
		Long:  `Print the effective configuration as TOML, or save it to the given file.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.Config.Save(args[0])
			}
			b, err := a.Config.Marshal()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
