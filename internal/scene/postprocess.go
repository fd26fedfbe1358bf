package scene

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/logger"
	"github.com/Faultbox/gltfview/pkg/gltf"
	"github.com/Faultbox/gltfview/pkg/math"
)

// Options controls the optional postprocessing passes.
type Options struct {
	// FitToView wraps the roots in a node that centers the scene and scales
	// its longest side to 1.
	FitToView bool
}

// Stats summarizes what Postprocess generated.
type Stats struct {
	GeneratedNormals  int
	ReusedNormals     int
	GeneratedTangents int
	ReusedTangents    int
	Fitted            bool
}

// Postprocess prepares a freshly loaded scene for rendering. The passes
// run in a fixed order: local matrices, normals, tangents (which need the
// normals), bind poses, animation keyframes and finally fit-to-view.
func Postprocess(s *Scene, opts Options) (Stats, error) {
	var st Stats

	fillMatrices(s)

	if err := fillNormals(s, &st); err != nil {
		return st, err
	}
	if err := fillTangents(s, &st); err != nil {
		return st, err
	}
	if err := fillBindPoses(s); err != nil {
		return st, err
	}
	if err := fillAnimationData(s); err != nil {
		return st, err
	}
	if opts.FitToView {
		fitted, err := FitToView(s)
		if err != nil {
			return st, err
		}
		st.Fitted = fitted
	}

	logger.Named("scene").Debug("postprocessed",
		zap.Int("generated_normals", st.GeneratedNormals),
		zap.Int("reused_normals", st.ReusedNormals),
		zap.Int("generated_tangents", st.GeneratedTangents),
		zap.Int("reused_tangents", st.ReusedTangents),
		zap.Bool("fitted", st.Fitted))
	return st, nil
}

func fillMatrices(s *Scene) {
	for i := range s.Nodes {
		if !s.Nodes[i].HasMatrix {
			s.Nodes[i].UpdateMatrix()
		}
	}
}

// fillNormals gives every triangle primitive a NORMAL attribute. Primitives
// sharing a POSITION accessor share the generated normals.
func fillNormals(s *Scene, st *Stats) error {
	cache := make(map[int]int)

	for mi := range s.Meshes {
		for pi := range s.Meshes[mi].Primitives {
			p := &s.Meshes[mi].Primitives[pi]
			pos := p.Attribute(AttrPosition)
			if p.HasAttribute(AttrNormal) || pos == None || p.Mode != gltf.ModeTriangles {
				continue
			}
			if n, ok := cache[pos]; ok {
				p.Attributes[AttrNormal] = n
				st.ReusedNormals++
				continue
			}

			positions, err := s.Floats(pos)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d positions: %w", mi, pi, err)
			}
			indices, err := s.Indices(p)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			normals, err := GenerateNormals(positions, indices)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}

			n := s.AppendFloatAccessor(normals, gltf.Vec3)
			p.Attributes[AttrNormal] = n
			cache[pos] = n
			st.GeneratedNormals++
		}
	}
	return nil
}

// GenerateNormals computes smooth vertex normals by accumulating unit face
// normals of every triangle touching a vertex and normalizing the sum.
func GenerateNormals(positions []float32, indices []uint32) ([]float32, error) {
	vertexCount := uint32(len(positions) / 3)
	normals := make([]float32, len(positions))

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if a >= vertexCount || b >= vertexCount || c >= vertexCount {
			return nil, fmt.Errorf("%w: index out of range of %d vertices", gltf.ErrMalformedAsset, vertexCount)
		}
		pa := math.Vec3From(positions[3*a:])
		pb := math.Vec3From(positions[3*b:])
		pc := math.Vec3From(positions[3*c:])
		face := pb.Sub(pa).Cross(pc.Sub(pa)).Normalize()

		for _, v := range [3]uint32{a, b, c} {
			normals[3*v] += face.X
			normals[3*v+1] += face.Y
			normals[3*v+2] += face.Z
		}
	}

	for v := 0; v+2 < len(normals); v += 3 {
		n := math.Vec3From(normals[v:]).Normalize()
		normals[v], normals[v+1], normals[v+2] = n.X, n.Y, n.Z
	}
	return normals, nil
}

// fillTangents gives every primitive with TEXCOORD_0 a TANGENT attribute.
func fillTangents(s *Scene, st *Stats) error {
	cache := make(map[string]int)

	for mi := range s.Meshes {
		for pi := range s.Meshes[mi].Primitives {
			p := &s.Meshes[mi].Primitives[pi]
			if p.HasAttribute(AttrTangent) || !p.HasAttribute(AttrTexCoord0) || !p.HasAttribute(AttrNormal) ||
				!p.HasAttribute(AttrPosition) || p.Mode != gltf.ModeTriangles {
				continue
			}

			key := tangentKey(p)
			if t, ok := cache[key]; ok {
				p.Attributes[AttrTangent] = t
				st.ReusedTangents++
				continue
			}

			positions, err := s.Floats(p.Attribute(AttrPosition))
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d positions: %w", mi, pi, err)
			}
			normals, err := s.Floats(p.Attribute(AttrNormal))
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d normals: %w", mi, pi, err)
			}
			uvs, err := s.Floats(p.Attribute(AttrTexCoord0))
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d uvs: %w", mi, pi, err)
			}
			indices, err := s.Indices(p)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			tangents, err := GenerateTangents(positions, normals, uvs, indices)
			if err != nil {
				return fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}

			t := s.AppendFloatAccessor(tangents, gltf.Vec4)
			p.Attributes[AttrTangent] = t
			cache[key] = t
			st.GeneratedTangents++
		}
	}
	return nil
}

func tangentKey(p *Primitive) string {
	return strconv.Itoa(p.Attribute(AttrPosition)) + "_" +
		strconv.Itoa(p.Indices) + "_" +
		strconv.Itoa(p.Attribute(AttrNormal)) + "_" +
		strconv.Itoa(p.Attribute(AttrTexCoord0))
}

// GenerateTangents computes per-vertex tangents from UV gradients,
// Gram-Schmidt orthogonalized against the normal. W holds the bitangent
// handedness, +1 or -1.
func GenerateTangents(positions, normals, uvs []float32, indices []uint32) ([]float32, error) {
	vertexCount := len(positions) / 3
	if len(normals) < 3*vertexCount || len(uvs) < 2*vertexCount {
		return nil, fmt.Errorf("%w: attribute counts differ from POSITION", gltf.ErrMalformedAsset)
	}
	tan1 := make([]math.Vec3, vertexCount)
	tan2 := make([]math.Vec3, vertexCount)

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := int(indices[i]), int(indices[i+1]), int(indices[i+2])
		if a >= vertexCount || b >= vertexCount || c >= vertexCount {
			return nil, fmt.Errorf("%w: index out of range of %d vertices", gltf.ErrMalformedAsset, vertexCount)
		}
		pa := math.Vec3From(positions[3*a:])
		e1 := math.Vec3From(positions[3*b:]).Sub(pa)
		e2 := math.Vec3From(positions[3*c:]).Sub(pa)

		s1, t1 := uvs[2*b]-uvs[2*a], uvs[2*b+1]-uvs[2*a+1]
		s2, t2 := uvs[2*c]-uvs[2*a], uvs[2*c+1]-uvs[2*a+1]
		det := s1*t2 - s2*t1
		if det == 0 {
			continue
		}
		r := 1 / det
		sdir := e1.Scale(t2).Sub(e2.Scale(t1)).Scale(r)
		tdir := e2.Scale(s1).Sub(e1.Scale(s2)).Scale(r)

		for _, v := range [3]int{a, b, c} {
			tan1[v] = tan1[v].Add(sdir)
			tan2[v] = tan2[v].Add(tdir)
		}
	}

	out := make([]float32, 4*vertexCount)
	for v := 0; v < vertexCount; v++ {
		n := math.Vec3From(normals[3*v:])
		t := tan1[v]
		ortho := t.Sub(n.Scale(n.Dot(t))).Normalize()
		w := float32(1)
		if n.Cross(t).Dot(tan2[v]) < 0 {
			w = -1
		}
		out[4*v], out[4*v+1], out[4*v+2], out[4*v+3] = ortho.X, ortho.Y, ortho.Z, w
	}
	return out, nil
}

// fillBindPoses decodes each skin's inverse bind matrices. Skins without
// the accessor get identity matrices.
func fillBindPoses(s *Scene) error {
	for i := range s.Skins {
		sk := &s.Skins[i]
		sk.InverseBind = make([]math.Mat4, len(sk.Joints))
		for j := range sk.InverseBind {
			sk.InverseBind[j] = math.Identity()
		}
		if sk.InverseBindAccessor == None {
			continue
		}
		data, err := s.Floats(sk.InverseBindAccessor)
		if err != nil {
			return fmt.Errorf("skin %d inverse bind matrices: %w", i, err)
		}
		if len(data)/16 < len(sk.Joints) {
			return fmt.Errorf("%w: skin %d has %d joints but %d inverse bind matrices",
				gltf.ErrMalformedAsset, i, len(sk.Joints), len(data)/16)
		}
		for j := range sk.InverseBind {
			sk.InverseBind[j] = math.Mat4From(data[16*j:])
		}
	}
	return nil
}

// fillAnimationData decodes sampler keyframes, rescaling normalized
// integer outputs.
func fillAnimationData(s *Scene) error {
	for ai := range s.Animations {
		a := &s.Animations[ai]
		for si := range a.Samplers {
			smp := &a.Samplers[si]
			times, err := s.Floats(smp.Input)
			if err != nil {
				return fmt.Errorf("animation %d sampler %d input: %w", ai, si, err)
			}
			values, err := s.Floats(smp.Output)
			if err != nil {
				return fmt.Errorf("animation %d sampler %d output: %w", ai, si, err)
			}
			smp.Times, smp.Values = times, values
		}
	}
	return nil
}
