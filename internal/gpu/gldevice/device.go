// Package gldevice implements gpu.Device on OpenGL 4.1 core through go-gl.
package gldevice

import (
	"fmt"
	"image"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/gpu"
	"github.com/Faultbox/gltfview/internal/logger"
	"github.com/Faultbox/gltfview/pkg/math"
)

// Device draws with the current OpenGL context.
type Device struct {
	vao uint32
}

// New loads GL function pointers and binds the single vertex array object
// all attribute state lives in.
// IMPORTANT: Must be called AFTER the OpenGL context is created!
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	d := &Device{}
	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	gl.ClearDepth(1)
	gl.DepthFunc(gl.LEQUAL)
	gl.CullFace(gl.BACK)
	return d, nil
}

// Close deletes the vertex array object.
func (d *Device) Close() {
	if d.vao != 0 {
		gl.BindVertexArray(0)
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
}

func (d *Device) CreateBuffer(target gpu.BufferTarget, data []byte) (gpu.Buffer, error) {
	var id uint32
	gl.GenBuffers(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("glGenBuffers returned 0")
	}
	gl.BindBuffer(uint32(target), id)
	var ptr unsafe.Pointer
	if len(data) > 0 {
		ptr = gl.Ptr(&data[0])
	}
	gl.BufferData(uint32(target), len(data), ptr, gl.STATIC_DRAW)
	return gpu.Buffer(id), nil
}

func (d *Device) DeleteBuffer(b gpu.Buffer) {
	id := uint32(b)
	gl.DeleteBuffers(1, &id)
}

func (d *Device) BindBuffer(target gpu.BufferTarget, b gpu.Buffer) {
	gl.BindBuffer(uint32(target), uint32(b))
}

func (d *Device) CreateTexture(img *image.RGBA) (gpu.Texture, error) {
	if img == nil || len(img.Pix) == 0 {
		return 0, fmt.Errorf("empty image")
	}
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(img.Bounds().Dx()), int32(img.Bounds().Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	return gpu.Texture(id), nil
}

func (d *Device) DeleteTexture(t gpu.Texture) {
	id := uint32(t)
	gl.DeleteTextures(1, &id)
}

func (d *Device) BindTexture(unit int, t gpu.Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(t))
}

func (d *Device) CompileShader(stage gpu.ShaderStage, source string) (gpu.Shader, error) {
	kind := uint32(gl.VERTEX_SHADER)
	if stage == gpu.FragmentStage {
		kind = gl.FRAGMENT_SHADER
	}
	shader := gl.CreateShader(kind)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", stage, strings.TrimRight(log, "\x00"))
	}
	return gpu.Shader(shader), nil
}

func (d *Device) DeleteShader(s gpu.Shader) {
	gl.DeleteShader(uint32(s))
}

func (d *Device) LinkProgram(vs, fs gpu.Shader) (gpu.Program, error) {
	program := gl.CreateProgram()
	gl.AttachShader(program, uint32(vs))
	gl.AttachShader(program, uint32(fs))
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(program, logLen, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s", strings.TrimRight(log, "\x00"))
	}
	// Stages stay cached for other variants; detach so deleting them later frees them.
	gl.DetachShader(program, uint32(vs))
	gl.DetachShader(program, uint32(fs))
	return gpu.Program(program), nil
}

func (d *Device) DeleteProgram(p gpu.Program) {
	gl.DeleteProgram(uint32(p))
}

func (d *Device) UseProgram(p gpu.Program) {
	gl.UseProgram(uint32(p))
}

func (d *Device) AttribLocation(p gpu.Program, name string) int32 {
	return gl.GetAttribLocation(uint32(p), gl.Str(name+"\x00"))
}

func (d *Device) UniformLocation(p gpu.Program, name string) int32 {
	return gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
}

func (d *Device) UniformMat4(loc int32, m ...math.Mat4) {
	if loc < 0 || len(m) == 0 {
		return
	}
	gl.UniformMatrix4fv(loc, int32(len(m)), false, &m[0][0])
}

func (d *Device) UniformMat3(loc int32, m [9]float32) {
	if loc < 0 {
		return
	}
	gl.UniformMatrix3fv(loc, 1, false, &m[0])
}

func (d *Device) UniformVec4(loc int32, v [4]float32) {
	if loc < 0 {
		return
	}
	gl.Uniform4fv(loc, 1, &v[0])
}

func (d *Device) UniformInt(loc int32, v int32) {
	if loc < 0 {
		return
	}
	gl.Uniform1i(loc, v)
}

func (d *Device) EnableAttrib(a gpu.VertexAttrib) {
	gl.VertexAttribPointerWithOffset(a.Location, int32(a.Components), a.ComponentType, a.Normalized, int32(a.Stride), uintptr(a.Offset))
	gl.EnableVertexAttribArray(a.Location)
}

func (d *Device) DisableAttrib(loc uint32) {
	gl.DisableVertexAttribArray(loc)
}

func (d *Device) DrawArrays(mode uint32, first, count int) {
	gl.DrawArrays(mode, int32(first), int32(count))
}

func (d *Device) DrawElements(mode uint32, count int, indexType uint32, offset int) {
	gl.DrawElementsWithOffset(mode, int32(count), indexType, uintptr(offset))
}

func (d *Device) Viewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *Device) Clear(color [4]float32) {
	gl.ClearColor(color[0], color[1], color[2], color[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (d *Device) SetDepthTest(enabled bool) {
	if enabled {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LEQUAL)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
}

func (d *Device) SetCullFace(enabled bool) {
	if enabled {
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	} else {
		gl.Disable(gl.CULL_FACE)
	}
}

func (d *Device) SetBlend(b gpu.Blend) {
	if !b.Enabled {
		gl.Disable(gl.BLEND)
		return
	}
	gl.Enable(gl.BLEND)
	gl.BlendFuncSeparate(uint32(b.SrcRGB), uint32(b.DstRGB), uint32(b.SrcAlpha), uint32(b.DstAlpha))
}

var _ gpu.Device = (*Device)(nil)
