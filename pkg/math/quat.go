package math

import "github.com/chewxy/math32"

// Quat is a rotation quaternion. W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFrom reads X, Y, Z, W from s[0:4].
func QuatFrom(s []float32) Quat {
	return Quat{X: s[0], Y: s[1], Z: s[2], W: s[3]}
}

// QuatFromAxisAngle creates a quaternion from a normalized axis and an angle in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	s, c := math32.Sincos(angle / 2)
	return Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: c}
}

// Length returns the quaternion norm.
func (q Quat) Length() float32 {
	return math32.Sqrt(q.Dot(q))
}

// Normalize returns a unit quaternion. A zero quaternion becomes identity.
func (q Quat) Normalize() Quat {
	l := q.Length()
	if l == 0 {
		return QuatIdentity()
	}
	inv := 1 / l
	return Quat{X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv, W: q.W * inv}
}

// Dot returns the 4D dot product.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Neg returns -q, which encodes the same rotation.
func (q Quat) Neg() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
}

// slerpEpsilon bounds sin²(θ/2) below which slerp degrades to a normalized lerp.
const slerpEpsilon = 1e-6

// Slerp interpolates along the shortest arc between q and other.
// t == 0 returns q and t == 1 returns other exactly.
func (q Quat) Slerp(other Quat, t float32) Quat {
	if t == 0 {
		return q
	}
	if t == 1 {
		return other
	}

	b := other
	cosHalf := q.Dot(other)
	if cosHalf < 0 {
		b = other.Neg()
		cosHalf = -cosHalf
	}
	if cosHalf >= 1 {
		return q
	}

	sqrSinHalf := 1 - cosHalf*cosHalf
	if sqrSinHalf <= slerpEpsilon {
		s := 1 - t
		return Quat{
			X: s*q.X + t*b.X,
			Y: s*q.Y + t*b.Y,
			Z: s*q.Z + t*b.Z,
			W: s*q.W + t*b.W,
		}.Normalize()
	}

	sinHalf := math32.Sqrt(sqrSinHalf)
	halfTheta := math32.Atan2(sinHalf, cosHalf)
	ra := math32.Sin((1-t)*halfTheta) / sinHalf
	rb := math32.Sin(t*halfTheta) / sinHalf
	return Quat{
		X: q.X*ra + b.X*rb,
		Y: q.Y*ra + b.Y*rb,
		Z: q.Z*ra + b.Z*rb,
		W: q.W*ra + b.W*rb,
	}
}

// Mul composes two rotations (q applied after other).
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// ToMat4 converts the rotation to a matrix.
func (q Quat) ToMat4() Mat4 {
	return FromTRS(Vec3{}, q.Normalize(), Vec3{1, 1, 1})
}

// Array returns X, Y, Z, W.
func (q Quat) Array() [4]float32 {
	return [4]float32{q.X, q.Y, q.Z, q.W}
}
