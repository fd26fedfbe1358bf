package math

import (
	"math"
	"testing"
)

func approxQuat(a, b Quat, eps float64) bool {
	return math.Abs(float64(a.X-b.X)) < eps &&
		math.Abs(float64(a.Y-b.Y)) < eps &&
		math.Abs(float64(a.Z-b.Z)) < eps &&
		math.Abs(float64(a.W-b.W)) < eps
}

func TestQuatNormalize(t *testing.T) {
	n := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
	if math.Abs(float64(n.Length()-1)) > 1e-5 {
		t.Errorf("normalized length should be 1, got %v", n.Length())
	}
	if (Quat{}).Normalize() != QuatIdentity() {
		t.Error("zero quaternion should normalize to identity")
	}
}

func TestSlerpEndpointsExact(t *testing.T) {
	a := QuatFromAxisAngle(Vec3{0, 1, 0}, 0.3)
	b := QuatFromAxisAngle(Vec3{1, 0, 0}, 1.2)
	if got := a.Slerp(b, 0); got != a {
		t.Errorf("Slerp(a,b,0) = %v, want %v", got, a)
	}
	if got := a.Slerp(b, 1); got != b {
		t.Errorf("Slerp(a,b,1) = %v, want %v", got, b)
	}
}

func TestSlerpDiagonal(t *testing.T) {
	a := QuatFromAxisAngle(Vec3{0, 0, 1}, 0.9)
	for _, tt := range []float32{0.1, 0.5, 0.9} {
		if got := a.Slerp(a, tt); !approxQuat(got, a, 1e-5) {
			t.Errorf("Slerp(a,a,%v) = %v, want %v", tt, got, a)
		}
	}
}

func TestSlerpHalfway(t *testing.T) {
	a := QuatIdentity()
	b := QuatFromAxisAngle(Vec3{0, 1, 0}, float32(math.Pi/2))
	want := QuatFromAxisAngle(Vec3{0, 1, 0}, float32(math.Pi/4))
	if got := a.Slerp(b, 0.5); !approxQuat(got, want, 1e-4) {
		t.Errorf("Slerp halfway: got %v, want %v", got, want)
	}
}

func TestSlerpShortestPath(t *testing.T) {
	a := QuatIdentity()
	b := QuatFromAxisAngle(Vec3{0, 1, 0}, float32(math.Pi/2)).Neg()
	want := QuatFromAxisAngle(Vec3{0, 1, 0}, float32(math.Pi/4))
	if got := a.Slerp(b, 0.5); !approxQuat(got, want, 1e-4) {
		t.Errorf("Slerp with sign flip: got %v, want %v", got, want)
	}
}

func TestSlerpNearlyParallel(t *testing.T) {
	a := QuatFromAxisAngle(Vec3{0, 1, 0}, 0.5)
	b := QuatFromAxisAngle(Vec3{0, 1, 0}, 0.5001)
	got := a.Slerp(b, 0.5)
	if math.Abs(float64(got.Length()-1)) > 1e-4 {
		t.Errorf("lerp fallback should stay unit length, got %v", got.Length())
	}
}

func TestQuatToMat4(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{0, 0, 1}, float32(math.Pi/2))
	p := q.ToMat4().TransformPoint(Vec3{1, 0, 0})
	if math.Abs(float64(p.X)) > 1e-5 || math.Abs(float64(p.Y-1)) > 1e-5 {
		t.Errorf("90 degrees about Z should map +X to +Y, got %v", p)
	}
}

func TestQuatMul(t *testing.T) {
	a := QuatFromAxisAngle(Vec3{0, 1, 0}, 0.4)
	b := QuatFromAxisAngle(Vec3{0, 1, 0}, 0.6)
	want := QuatFromAxisAngle(Vec3{0, 1, 0}, 1.0)
	if got := a.Mul(b); !approxQuat(got, want, 1e-5) {
		t.Errorf("Mul: got %v, want %v", got, want)
	}
}
