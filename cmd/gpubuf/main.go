// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command gpubuf runs demos of the gpubuf buffer, compute, capture
// and mesh layers on a selectable device backend.
package main

import (
	"os"
	"runtime"

	"cogentcore.org/gpubuf/cmd/gpubuf/cmd"
)

func init() {
	// OpenGL contexts are bound to the OS thread that made them current.
	runtime.LockOSThread()
}

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
