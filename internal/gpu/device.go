// Package gpu defines the small graphics device surface the renderer and
// the shader cache draw through, plus a headless implementation that
// records every call.
package gpu

import (
	"image"

	"github.com/Faultbox/gltfview/pkg/math"
)

// Handles are opaque, non-zero when valid.
type (
	Buffer  uint32
	Texture uint32
	Shader  uint32
	Program uint32
)

// ShaderStage selects the pipeline stage a shader is compiled for.
type ShaderStage int

const (
	VertexStage ShaderStage = iota
	FragmentStage
)

func (s ShaderStage) String() string {
	if s == VertexStage {
		return "vertex"
	}
	return "fragment"
}

// BufferTarget is the binding point a buffer is uploaded to. Values match GL.
type BufferTarget uint32

const (
	ArrayBuffer        BufferTarget = 0x8892
	ElementArrayBuffer BufferTarget = 0x8893
)

// BlendFactor values match GL.
type BlendFactor uint32

const (
	Zero             BlendFactor = 0
	One              BlendFactor = 1
	SrcAlpha         BlendFactor = 0x0302
	OneMinusSrcAlpha BlendFactor = 0x0303
)

// Blend is the color blending state.
type Blend struct {
	Enabled  bool
	SrcRGB   BlendFactor
	DstRGB   BlendFactor
	SrcAlpha BlendFactor
	DstAlpha BlendFactor
}

// AlphaBlend is standard source-over blending with separate alpha factors.
var AlphaBlend = Blend{
	Enabled:  true,
	SrcRGB:   SrcAlpha,
	DstRGB:   OneMinusSrcAlpha,
	SrcAlpha: One,
	DstAlpha: OneMinusSrcAlpha,
}

// NoBlend disables blending.
var NoBlend = Blend{}

// VertexAttrib describes how one attribute reads from the bound array buffer.
// ComponentType, like glTF's, is a GL type enum.
type VertexAttrib struct {
	Location      uint32
	Components    int
	ComponentType uint32
	Normalized    bool
	Stride        int
	Offset        int
}

// Device is the GPU surface. All calls happen on the render thread.
type Device interface {
	CreateBuffer(target BufferTarget, data []byte) (Buffer, error)
	DeleteBuffer(b Buffer)
	BindBuffer(target BufferTarget, b Buffer)

	CreateTexture(img *image.RGBA) (Texture, error)
	DeleteTexture(t Texture)
	BindTexture(unit int, t Texture)

	CompileShader(stage ShaderStage, source string) (Shader, error)
	DeleteShader(s Shader)
	LinkProgram(vs, fs Shader) (Program, error)
	DeleteProgram(p Program)
	UseProgram(p Program)

	// AttribLocation and UniformLocation return -1 for names the program
	// does not use.
	AttribLocation(p Program, name string) int32
	UniformLocation(p Program, name string) int32

	UniformMat4(loc int32, m ...math.Mat4)
	UniformMat3(loc int32, m [9]float32)
	UniformVec4(loc int32, v [4]float32)
	UniformInt(loc int32, v int32)

	EnableAttrib(a VertexAttrib)
	DisableAttrib(loc uint32)

	DrawArrays(mode uint32, first, count int)
	DrawElements(mode uint32, count int, indexType uint32, offset int)

	Viewport(width, height int)
	Clear(color [4]float32)
	SetDepthTest(enabled bool)
	SetCullFace(enabled bool)
	SetBlend(b Blend)
}
