// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config contains the configuration
// structs for the gpubuf tool.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cogentcore.org/gpubuf/base/errors"
	"cogentcore.org/gpubuf/base/logx"
	"github.com/jinzhu/copier"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Backends are the device backends that can be selected.
type Backends string

const (
	// Soft is the pure Go software device.
	Soft Backends = "soft"

	// GL is the OpenGL 4.6 core device.
	GL Backends = "gl"

	// WebGPU is the compute-only WebGPU device.
	WebGPU Backends = "webgpu"
)

// Config is the main config struct
// that contains all of the configuration
// options for the gpubuf tool
type Config struct {

	// the device backend to use (soft, gl, webgpu)
	Backend Backends `toml:"backend" yaml:"backend"`

	// the reserve ratio used for growable buffers; must be >= 1
	ReserveRatio float64 `toml:"reserve_ratio" yaml:"reserve_ratio"`

	// the window configuration for the gl backend
	Window Window `toml:"window" yaml:"window"`

	// the logging configuration
	Log Log `toml:"log" yaml:"log"`

	// the configuration for the particles demo
	Particles Particles `toml:"particles" yaml:"particles"`

	// the configuration for the skeleton demo
	Skeleton Skeleton `toml:"skeleton" yaml:"skeleton"`

	// the configuration for kernel shader sources
	Shaders Shaders `toml:"shaders" yaml:"shaders"`
}

type Window struct {

	// the width of the (hidden) window
	Width int `toml:"width" yaml:"width"`

	// the height of the (hidden) window
	Height int `toml:"height" yaml:"height"`

	// the title of the window
	Title string `toml:"title" yaml:"title"`
}

type Log struct {

	// show debug messages
	VeryVerbose bool `toml:"very_verbose" yaml:"very_verbose"`

	// show info messages
	Verbose bool `toml:"verbose" yaml:"verbose"`

	// only show errors
	Quiet bool `toml:"quiet" yaml:"quiet"`
}

type Particles struct {

	// the number of particles
	Count int `toml:"count" yaml:"count"`

	// the number of simulation steps to run
	Steps int `toml:"steps" yaml:"steps"`

	// the simulation time step in seconds
	DeltaTime float32 `toml:"delta_time" yaml:"delta_time"`

	// the gravity acceleration along -y
	Gravity float32 `toml:"gravity" yaml:"gravity"`
}

type Skeleton struct {

	// the initial number of joints
	Joints int `toml:"joints" yaml:"joints"`

	// the number of joints added per frame
	Grow int `toml:"grow" yaml:"grow"`

	// the number of frames to run
	Frames int `toml:"frames" yaml:"frames"`
}

type Shaders struct {

	// the directory to load kernel sources from; empty uses the built-in sources
	Dir string `toml:"dir" yaml:"dir"`

	// whether to watch Dir and reload kernels when their files change
	Watch bool `toml:"watch" yaml:"watch"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend:      Soft,
		ReserveRatio: 2,
		Window:       Window{Width: 640, Height: 480, Title: "gpubuf"},
		Particles:    Particles{Count: 1024, Steps: 120, DeltaTime: 1.0 / 60, Gravity: 9.8},
		Skeleton:     Skeleton{Joints: 4, Grow: 1, Frames: 16},
	}
}

// Open returns the configuration read from the given file on top of
// [Default]. The format is chosen by extension: .toml, or .yaml / .yml.
// The path may start with ~ for the home directory.
func Open(filename string) (*Config, error) {
	c := Default()
	fn, err := homedir.Expand(filename)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".toml":
		err = toml.Unmarshal(b, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, c)
	default:
		err = fmt.Errorf("config.Open %s: unsupported extension %q", fn, filepath.Ext(fn))
	}
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config.Open %s: %w", fn, err)
	}
	c.Shaders.Dir = errors.Log1(homedir.Expand(c.Shaders.Dir))
	return c, nil
}

// Marshal returns the configuration in TOML format.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Save writes the configuration to the given file in TOML format.
func (c *Config) Save(filename string) error {
	fn, err := homedir.Expand(filename)
	if err != nil {
		return err
	}
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(fn, b, 0666)
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	nc := &Config{}
	errors.Log(copier.CopyWithOption(nc, c, copier.Option{DeepCopy: true}))
	return nc
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	switch c.Backend {
	case Soft, GL, WebGPU:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.ReserveRatio < 1 {
		return fmt.Errorf("reserve ratio %g must be >= 1", c.ReserveRatio)
	}
	return nil
}

// LogLevel returns the log level selected by the Log flags.
func (c *Config) LogLevel() slog.Level {
	return logx.LevelFromFlags(c.Log.VeryVerbose, c.Log.Verbose, c.Log.Quiet)
}
