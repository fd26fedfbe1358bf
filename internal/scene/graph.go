package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/gltfview/pkg/math"
)

// ErrCyclicHierarchy is returned when the node hierarchy is deeper than the
// node count, which only happens when children form a cycle.
var ErrCyclicHierarchy = errors.New("node hierarchy contains a cycle")

// Graph is the evaluated scene graph for one frame.
type Graph struct {
	// World holds each node's world matrix. Unreachable nodes keep identity.
	World []math.Mat4
	// Order lists reachable nodes in depth-first, parent-before-child order.
	Order []int
}

// Evaluate walks the hierarchy from the root nodes and computes every
// world matrix as parent world * local.
func Evaluate(s *Scene) (*Graph, error) {
	g := &Graph{
		World: make([]math.Mat4, len(s.Nodes)),
		Order: make([]int, 0, len(s.Nodes)),
	}
	for i := range g.World {
		g.World[i] = math.Identity()
	}

	budget := len(s.Nodes)
	var visit func(idx int, parent math.Mat4, depth int) error
	visit = func(idx int, parent math.Mat4, depth int) error {
		if depth > budget {
			return fmt.Errorf("%w: at node %d", ErrCyclicHierarchy, idx)
		}
		n := &s.Nodes[idx]
		world := parent.Mul(n.Matrix)
		g.World[idx] = world
		g.Order = append(g.Order, idx)
		for _, c := range n.Children {
			if err := visit(c, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range s.RootNodes {
		if err := visit(root, math.Identity(), 1); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// JointMatrices returns the skinning matrices for a skinned node:
// inverse(nodeWorld) * jointWorld * inverseBind, one per joint.
func (g *Graph) JointMatrices(s *Scene, node int) []math.Mat4 {
	n := &s.Nodes[node]
	if !n.HasSkin() {
		return nil
	}
	skin := &s.Skins[n.Skin]
	invNode := g.World[node].Inverse()

	out := make([]math.Mat4, len(skin.Joints))
	for j, joint := range skin.Joints {
		ibm := math.Identity()
		if j < len(skin.InverseBind) {
			ibm = skin.InverseBind[j]
		}
		out[j] = invNode.Mul(g.World[joint]).Mul(ibm)
	}
	return out
}
