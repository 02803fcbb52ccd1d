// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logx

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFromFlags(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFromFlags(true, false, false))
	assert.Equal(t, slog.LevelDebug, LevelFromFlags(true, true, true))
	assert.Equal(t, slog.LevelInfo, LevelFromFlags(false, true, false))
	assert.Equal(t, slog.LevelError, LevelFromFlags(false, false, true))
	assert.Equal(t, slog.LevelWarn, LevelFromFlags(false, false, false))
}

func TestHandler(t *testing.T) {
	prev := UserLevel
	defer SetLevel(prev)

	var buf bytes.Buffer
	SetLevel(slog.LevelWarn)
	lg := slog.New(NewHandler(&buf))
	lg.Info("hidden info")
	lg.Warn("shown warning", "buffer", "pos")
	out := buf.String()
	assert.NotContains(t, out, "hidden info")
	assert.Contains(t, out, "shown warning")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "buffer=pos")
	assert.NotContains(t, out, "time=")

	buf.Reset()
	SetLevel(slog.LevelDebug)
	lg.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestDefaultLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)
	SetDefaultLogger()

	slog.Debug("this is debug")
	slog.Info("this is info")
	slog.Warn("this is warn")
}
