package gpu

import (
	"errors"
	"fmt"
	"image"
	"regexp"
	"sort"

	"github.com/Faultbox/gltfview/pkg/math"
)

// DrawCall is one recorded draw.
type DrawCall struct {
	Program   Program
	Mode      uint32
	Count     int
	Indexed   bool
	IndexType uint32
	Attribs   []uint32
	Blend     Blend
	Cull      bool
}

// Counts tallies resource lifecycle calls.
type Counts struct {
	BuffersCreated, BuffersDeleted   int
	TexturesCreated, TexturesDeleted int
	ShadersCompiled, ShadersDeleted  int
	ProgramsLinked, ProgramsDeleted  int
}

// Recorder is a headless Device. It hands out handles, tracks which are
// live, records draws and reports double frees. Attribute and uniform
// locations are derived from the declarations in the shader sources, so a
// name compiled out by a preprocessor branch is still reported present.
type Recorder struct {
	// FailCompile, when set, is consulted for every compile and its error
	// returned instead of a shader.
	FailCompile func(stage ShaderStage, source string) error

	Counts       Counts
	Draws        []DrawCall
	Errors       []error
	ViewportSize [2]int

	next     uint32
	buffers  map[Buffer]BufferTarget
	textures map[Texture]*image.RGBA
	shaders  map[Shader]string
	programs map[Program]*recordedProgram

	current Program
	enabled map[uint32]bool
	blend   Blend
	cull    bool
	depth   bool
}

type recordedProgram struct {
	attribs  map[string]int32
	uniforms map[string]int32
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		buffers:  make(map[Buffer]BufferTarget),
		textures: make(map[Texture]*image.RGBA),
		shaders:  make(map[Shader]string),
		programs: make(map[Program]*recordedProgram),
		enabled:  make(map[uint32]bool),
	}
}

func (r *Recorder) handle() uint32 {
	r.next++
	return r.next
}

func (r *Recorder) fault(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Errorf(format, args...))
}

// LiveBuffers returns the number of buffers created and not yet deleted.
func (r *Recorder) LiveBuffers() int { return len(r.buffers) }

// LiveTextures returns the number of textures created and not yet deleted.
func (r *Recorder) LiveTextures() int { return len(r.textures) }

// LivePrograms returns the number of linked programs not yet deleted.
func (r *Recorder) LivePrograms() int { return len(r.programs) }

// EnabledAttribs returns the attribute locations currently enabled.
func (r *Recorder) EnabledAttribs() []uint32 {
	var out []uint32
	for loc, on := range r.enabled {
		if on {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResetFrame forgets recorded draws.
func (r *Recorder) ResetFrame() {
	r.Draws = r.Draws[:0]
}

func (r *Recorder) CreateBuffer(target BufferTarget, data []byte) (Buffer, error) {
	b := Buffer(r.handle())
	r.buffers[b] = target
	r.Counts.BuffersCreated++
	return b, nil
}

func (r *Recorder) DeleteBuffer(b Buffer) {
	if _, ok := r.buffers[b]; !ok {
		r.fault("delete of unknown buffer %d", b)
		return
	}
	delete(r.buffers, b)
	r.Counts.BuffersDeleted++
}

func (r *Recorder) BindBuffer(target BufferTarget, b Buffer) {
	if _, ok := r.buffers[b]; !ok {
		r.fault("bind of unknown buffer %d", b)
	}
}

func (r *Recorder) CreateTexture(img *image.RGBA) (Texture, error) {
	if img == nil {
		return 0, errors.New("nil image")
	}
	t := Texture(r.handle())
	r.textures[t] = img
	r.Counts.TexturesCreated++
	return t, nil
}

func (r *Recorder) DeleteTexture(t Texture) {
	if _, ok := r.textures[t]; !ok {
		r.fault("delete of unknown texture %d", t)
		return
	}
	delete(r.textures, t)
	r.Counts.TexturesDeleted++
}

func (r *Recorder) BindTexture(unit int, t Texture) {
	if _, ok := r.textures[t]; !ok {
		r.fault("bind of unknown texture %d on unit %d", t, unit)
	}
}

func (r *Recorder) CompileShader(stage ShaderStage, source string) (Shader, error) {
	if r.FailCompile != nil {
		if err := r.FailCompile(stage, source); err != nil {
			return 0, err
		}
	}
	s := Shader(r.handle())
	r.shaders[s] = source
	r.Counts.ShadersCompiled++
	return s, nil
}

func (r *Recorder) DeleteShader(s Shader) {
	if _, ok := r.shaders[s]; !ok {
		r.fault("delete of unknown shader %d", s)
		return
	}
	delete(r.shaders, s)
	r.Counts.ShadersDeleted++
}

var (
	attribDecl  = regexp.MustCompile(`(?m)^\s*in\s+\w+\s+(\w+)\s*;`)
	uniformDecl = regexp.MustCompile(`(?m)^\s*uniform\s+\w+\s+(\w+)\s*(\[[^\]]*\])?\s*;`)
)

func (r *Recorder) LinkProgram(vs, fs Shader) (Program, error) {
	vsrc, ok1 := r.shaders[vs]
	fsrc, ok2 := r.shaders[fs]
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("link with unknown shader (%d, %d)", vs, fs)
	}
	p := &recordedProgram{attribs: make(map[string]int32), uniforms: make(map[string]int32)}
	for i, m := range attribDecl.FindAllStringSubmatch(vsrc, -1) {
		p.attribs[m[1]] = int32(i)
	}
	var loc int32
	for _, src := range []string{vsrc, fsrc} {
		for _, m := range uniformDecl.FindAllStringSubmatch(src, -1) {
			if _, dup := p.uniforms[m[1]]; !dup {
				p.uniforms[m[1]] = loc
				loc++
			}
		}
	}
	h := Program(r.handle())
	r.programs[h] = p
	r.Counts.ProgramsLinked++
	return h, nil
}

func (r *Recorder) DeleteProgram(p Program) {
	if _, ok := r.programs[p]; !ok {
		r.fault("delete of unknown program %d", p)
		return
	}
	delete(r.programs, p)
	r.Counts.ProgramsDeleted++
}

func (r *Recorder) UseProgram(p Program) {
	r.current = p
}

func (r *Recorder) AttribLocation(p Program, name string) int32 {
	if prog, ok := r.programs[p]; ok {
		if loc, ok := prog.attribs[name]; ok {
			return loc
		}
	}
	return -1
}

func (r *Recorder) UniformLocation(p Program, name string) int32 {
	if prog, ok := r.programs[p]; ok {
		if loc, ok := prog.uniforms[name]; ok {
			return loc
		}
	}
	return -1
}

func (r *Recorder) UniformMat4(loc int32, m ...math.Mat4) {}
func (r *Recorder) UniformMat3(loc int32, m [9]float32)   {}
func (r *Recorder) UniformVec4(loc int32, v [4]float32)   {}
func (r *Recorder) UniformInt(loc int32, v int32)         {}

func (r *Recorder) EnableAttrib(a VertexAttrib) {
	r.enabled[a.Location] = true
}

func (r *Recorder) DisableAttrib(loc uint32) {
	delete(r.enabled, loc)
}

func (r *Recorder) DrawArrays(mode uint32, first, count int) {
	r.draw(DrawCall{Mode: mode, Count: count})
}

func (r *Recorder) DrawElements(mode uint32, count int, indexType uint32, offset int) {
	r.draw(DrawCall{Mode: mode, Count: count, Indexed: true, IndexType: indexType})
}

func (r *Recorder) draw(dc DrawCall) {
	if _, ok := r.programs[r.current]; !ok {
		r.fault("draw without a linked program")
	}
	dc.Program = r.current
	dc.Attribs = r.EnabledAttribs()
	dc.Blend = r.blend
	dc.Cull = r.cull
	r.Draws = append(r.Draws, dc)
}

func (r *Recorder) Viewport(width, height int) {
	r.ViewportSize = [2]int{width, height}
}

func (r *Recorder) Clear(color [4]float32) {}

func (r *Recorder) SetDepthTest(enabled bool) { r.depth = enabled }

func (r *Recorder) SetCullFace(enabled bool) { r.cull = enabled }

func (r *Recorder) SetBlend(b Blend) { r.blend = b }

var _ Device = (*Recorder)(nil)
