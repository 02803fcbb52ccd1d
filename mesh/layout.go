// Copyright (c) 2026, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mesh

import "cogentcore.org/gpubuf/gpu"

// LayoutAttribute is one attribute of the interleaved vertex layout.
type LayoutAttribute struct {

	// Capability of the attribute.
	Capability Capabilities

	// Name of the shader input.
	Name string

	// Location of the shader input.
	Location int

	// Components is the number of float32 components.
	Components int

	// Offset is the byte offset within a vertex.
	Offset int
}

// layoutOrder is the fixed order and width of the interleaved attributes.
var layoutOrder = []struct {
	cap  Capabilities
	name string
	n    int
}{
	{Position, "position", 3},
	{Normal, "normal", 3},
	{Tangent, "tangent", 4},
	{TexCoord0, "texcoord_0", 2},
	{TexCoord1, "texcoord_1", 2},
	{Color0, "color_0", 4},
}

// InstanceStride is the byte size of one instance pose matrix.
const InstanceStride = 16 * 4

// Layout is the interleaved float32 vertex layout for a set of
// capabilities: attributes in the fixed order position, normal,
// tangent, texcoord_0, texcoord_1, color_0, each at consecutive
// locations, followed by the four columns of the instance pose
// matrix.
type Layout struct {

	// Caps are the capabilities the layout was built for.
	Caps Capabilities

	// Attributes in layout order.
	Attributes []LayoutAttribute

	// Stride is the byte size of one vertex.
	Stride int

	// PoseLocation is the location of the first pose matrix column.
	PoseLocation int
}

// NewLayout returns the layout for the given capabilities.
// Position is always included.
func NewLayout(caps Capabilities) *Layout {
	ly := &Layout{Caps: caps | Position}
	for _, lo := range layoutOrder {
		if !ly.Caps.Has(lo.cap) {
			continue
		}
		ly.Attributes = append(ly.Attributes, LayoutAttribute{Capability: lo.cap, Name: lo.name, Location: len(ly.Attributes), Components: lo.n, Offset: ly.Stride})
		ly.Stride += 4 * lo.n
	}
	ly.PoseLocation = len(ly.Attributes)
	return ly
}

// Attribute returns the attribute for given capability, if in the layout.
func (ly *Layout) Attribute(c Capabilities) (LayoutAttribute, bool) {
	for _, at := range ly.Attributes {
		if at.Capability == c {
			return at, true
		}
	}
	return LayoutAttribute{}, false
}

// Floats returns the number of float32 values per vertex.
func (ly *Layout) Floats() int {
	return ly.Stride / 4
}

// VertexAttributes returns the per-vertex attributes for a vertex array.
func (ly *Layout) VertexAttributes() []gpu.VertexAttribute {
	va := make([]gpu.VertexAttribute, len(ly.Attributes))
	for i, at := range ly.Attributes {
		va[i] = gpu.VertexAttribute{Name: at.Name, Location: at.Location, Components: at.Components, Offset: at.Offset}
	}
	return va
}

// InstanceAttributes returns the four pose matrix columns,
// advanced once per instance.
func (ly *Layout) InstanceAttributes() []gpu.VertexAttribute {
	va := make([]gpu.VertexAttribute, 4)
	for i := range va {
		va[i] = gpu.VertexAttribute{Name: "pose", Location: ly.PoseLocation + i, Components: 4, Offset: 16 * i}
	}
	return va
}
