package scene

import (
	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/logger"
	"github.com/Faultbox/gltfview/pkg/math"
)

// FitRootName names the wrapper node inserted by FitToView.
const FitRootName = "fitToViewRoot"

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max math.Vec3
}

// EmptyBounds returns inverted bounds that any point extends.
func EmptyBounds() Bounds {
	inf := math32.Inf(1)
	return Bounds{
		Min: math.Vec3{X: inf, Y: inf, Z: inf},
		Max: math.Vec3{X: -inf, Y: -inf, Z: -inf},
	}
}

// Valid reports whether the bounds contain at least one point.
func (b Bounds) Valid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Extend grows b to include p.
func (b Bounds) Extend(p math.Vec3) Bounds {
	return Bounds{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Center returns the midpoint of the box.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the box extents.
func (b Bounds) Size() math.Vec3 {
	return b.Max.Sub(b.Min)
}

// WorldBounds unions the declared POSITION bounds of every drawn primitive,
// transformed into world space. The second result is false when no
// primitive declares bounds.
func WorldBounds(s *Scene, g *Graph) (Bounds, bool) {
	b := EmptyBounds()
	found := false
	for _, idx := range g.Order {
		if nb, ok := NodeBounds(s, g, idx); ok {
			b = b.Extend(nb.Min).Extend(nb.Max)
			found = true
		}
	}
	return b, found
}

// NodeBounds returns the world-space box around the declared POSITION
// bounds of one node's primitives, ignoring its children.
func NodeBounds(s *Scene, g *Graph, idx int) (Bounds, bool) {
	n := &s.Nodes[idx]
	if !n.HasMesh() {
		return Bounds{}, false
	}
	b := EmptyBounds()
	found := false
	for pi := range s.Meshes[n.Mesh].Primitives {
		pos := s.Meshes[n.Mesh].Primitives[pi].Attribute(AttrPosition)
		if pos == None {
			continue
		}
		a := &s.Accessors[pos]
		if !a.HasBounds() {
			logger.Named("scene").Debug("POSITION accessor has no min/max", zap.Int("accessor", pos))
			continue
		}
		lo, hi := math.Vec3From(a.Min), math.Vec3From(a.Max)
		for corner := 0; corner < 8; corner++ {
			p := lo
			if corner&1 != 0 {
				p.X = hi.X
			}
			if corner&2 != 0 {
				p.Y = hi.Y
			}
			if corner&4 != 0 {
				p.Z = hi.Z
			}
			b = b.Extend(g.World[idx].TransformPoint(p))
		}
		found = true
	}
	return b, found
}

// FitToView inserts a wrapper root that centers the scene at the origin and
// scales its longest side to 1. Without declared bounds the scene is left
// untouched, a warning is logged and false is returned.
func FitToView(s *Scene) (bool, error) {
	g, err := Evaluate(s)
	if err != nil {
		return false, err
	}
	b, ok := WorldBounds(s, g)
	if !ok || !b.Valid() {
		logger.Named("scene").Warn("no POSITION min/max declared, scene not fitted to view")
		return false, nil
	}

	scale := float32(1)
	if longest := b.Size().MaxComponent(); longest > 0 {
		scale = 1 / longest
	}
	translate := b.Center().Scale(-scale)

	wrapper := Node{
		Name:        FitRootName,
		Children:    append([]int(nil), s.RootNodes...),
		Mesh:        None,
		Skin:        None,
		Translation: translate,
		Rotation:    math.QuatIdentity(),
		Scale:       math.Vec3{X: scale, Y: scale, Z: scale},
	}
	wrapper.UpdateMatrix()
	s.Nodes = append(s.Nodes, wrapper)
	s.RootNodes = []int{len(s.Nodes) - 1}
	return true, nil
}
