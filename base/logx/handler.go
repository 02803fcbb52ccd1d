// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logx

import (
	"io"
	"log/slog"
	"os"

	"github.com/muesli/termenv"
)

// levelVar is the level used by handlers made with [NewHandler],
// kept in sync with [UserLevel] by [SetDefaultLogger] and [SetLevel].
var levelVar slog.LevelVar

// NewHandler returns a new text [slog.Handler] writing to w that
// colors the level of each record according to the terminal
// capabilities of w, and only shows records at or above [UserLevel].
func NewHandler(w io.Writer) slog.Handler {
	out := termenv.NewOutput(w)
	levelVar.Set(UserLevel)
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: &levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.Attr{}
			case slog.LevelKey:
				lv, ok := a.Value.Any().(slog.Level)
				if !ok {
					return a
				}
				a.Value = slog.StringValue(LevelString(out, lv))
			}
			return a
		},
	})
}

// LevelString returns the name of the given level styled for
// the given termenv output. Outputs without color support get
// the plain name.
func LevelString(out *termenv.Output, lv slog.Level) string {
	s := out.String(lv.String())
	switch {
	case lv >= slog.LevelError:
		s = s.Foreground(termenv.ANSIRed).Bold()
	case lv >= slog.LevelWarn:
		s = s.Foreground(termenv.ANSIYellow)
	case lv >= slog.LevelInfo:
		s = s.Foreground(termenv.ANSICyan)
	default:
		s = s.Faint()
	}
	return s.String()
}

// SetLevel sets [UserLevel] and updates the level of all
// handlers made with [NewHandler].
func SetLevel(lv slog.Level) {
	UserLevel = lv
	levelVar.Set(lv)
}

// SetDefaultLogger sets the default logger to a handler made
// with [NewHandler] writing to [os.Stderr].
func SetDefaultLogger() {
	slog.SetDefault(slog.New(NewHandler(os.Stderr)))
}
