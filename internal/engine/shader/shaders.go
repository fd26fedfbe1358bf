package shader

import _ "embed"

// meshVertexSource is the vertex stage shared by every variant.
//
//go:embed shaders/mesh.vert
var meshVertexSource string

// meshFragmentSource is the fragment stage shared by every variant.
//
//go:embed shaders/mesh.frag
var meshFragmentSource string
