// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mesh provides drawable geometry primitives whose vertex and
// index data live in growable device buffers. Updates may come from
// any goroutine; they are staged and applied by Sync on the goroutine
// owning the device.
package mesh

import "strings"

// Capabilities is a bit mask of the per-vertex arrays a primitive has.
// A renderer uses it to select a compatible shading program.
type Capabilities int32

const (
	// Position is always set.
	Position Capabilities = 1 << iota

	// Normal is XYZ vertex normals.
	Normal

	// Tangent is XYZW vertex tangents, W being the handedness.
	Tangent

	// TexCoord0 is the first set of UV texture coordinates.
	TexCoord0

	// TexCoord1 is the second set of UV texture coordinates.
	TexCoord1

	// Color0 is RGBA vertex colors.
	Color0

	// Joints0 is skinning joint indexes. It is not part of the vertex layout.
	Joints0

	// Weights0 is skinning weights. It is not part of the vertex layout.
	Weights0
)

var capNames = []string{"Position", "Normal", "Tangent", "TexCoord0", "TexCoord1", "Color0", "Joints0", "Weights0"}

// Has returns whether all of the given capabilities are set.
func (cp Capabilities) Has(c Capabilities) bool {
	return cp&c == c
}

func (cp Capabilities) String() string {
	var s []string
	for i, nm := range capNames {
		if cp&(1<<i) != 0 {
			s = append(s, nm)
		}
	}
	if len(s) == 0 {
		return "0"
	}
	return strings.Join(s, "|")
}
