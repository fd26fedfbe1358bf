package math

import "github.com/chewxy/math32"

// Mat4 is a 4x4 matrix in column-major order, the layout glTF and OpenGL use.
//
//	[m0 m4 m8  m12]
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mat4From copies 16 column-major values starting at s[0].
func Mat4From(s []float32) Mat4 {
	var m Mat4
	copy(m[:], s)
	return m
}

// Perspective returns an OpenGL perspective projection.
// fovY is in radians, aspect is width/height.
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovY/2)
	nf := 1 / (near - far)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, -1,
		0, 0, 2 * far * near * nf, 0,
	}
}

// LookAt returns a view matrix looking from eye towards center.
func LookAt(eye, center, up Vec3) Mat4 {
	f := center.Sub(eye).Normalize()
	s := f.Cross(up).Normalize()
	u := s.Cross(f)
	return Mat4{
		s.X, u.X, -f.X, 0,
		s.Y, u.Y, -f.Y, 0,
		s.Z, u.Z, -f.Z, 0,
		-s.Dot(eye), -u.Dot(eye), f.Dot(eye), 1,
	}
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = x, y, z
	return m
}

// FromTRS composes translation * rotation * scale into a single matrix.
func FromTRS(t Vec3, r Quat, s Vec3) Mat4 {
	x2, y2, z2 := r.X+r.X, r.Y+r.Y, r.Z+r.Z
	xx, xy, xz := r.X*x2, r.X*y2, r.X*z2
	yy, yz, zz := r.Y*y2, r.Y*z2, r.Z*z2
	wx, wy, wz := r.W*x2, r.W*y2, r.W*z2

	return Mat4{
		(1 - (yy + zz)) * s.X, (xy + wz) * s.X, (xz - wy) * s.X, 0,
		(xy - wz) * s.Y, (1 - (xx + zz)) * s.Y, (yz + wx) * s.Y, 0,
		(xz + wy) * s.Z, (yz - wx) * s.Z, (1 - (xx + yy)) * s.Z, 0,
		t.X, t.Y, t.Z, 1,
	}
}

// Mul returns m * other.
func (m Mat4) Mul(other Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * other[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// TransformPoint transforms a point (w = 1), dividing by w when it is not 1.
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	x := m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12]
	y := m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13]
	z := m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14]
	w := m[3]*p.X + m[7]*p.Y + m[11]*p.Z + m[15]
	if w != 0 && w != 1 {
		return Vec3{x / w, y / w, z / w}
	}
	return Vec3{x, y, z}
}

// TransformDirection transforms a direction, ignoring translation.
func (m Mat4) TransformDirection(d Vec3) Vec3 {
	return Vec3{
		m[0]*d.X + m[4]*d.Y + m[8]*d.Z,
		m[1]*d.X + m[5]*d.Y + m[9]*d.Z,
		m[2]*d.X + m[6]*d.Y + m[10]*d.Z,
	}
}

// Transpose returns the transposed matrix.
func (m Mat4) Transpose() Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			out[row*4+col] = m[col*4+row]
		}
	}
	return out
}

// Determinant returns the determinant of m.
func (m Mat4) Determinant() float32 {
	d := m.minors()
	return d.s0*d.c5 - d.s1*d.c4 + d.s2*d.c3 + d.s3*d.c2 - d.s4*d.c1 + d.s5*d.c0
}

// Inverse returns the inverse of m, or identity when m is singular.
func (m Mat4) Inverse() Mat4 {
	d := m.minors()
	det := d.s0*d.c5 - d.s1*d.c4 + d.s2*d.c3 + d.s3*d.c2 - d.s4*d.c1 + d.s5*d.c0
	if det == 0 {
		return Identity()
	}
	inv := 1 / det

	// Rows of the classic adjugate expansion, written back in column-major order.
	a00, a01, a02, a03 := m[0], m[4], m[8], m[12]
	a10, a11, a12, a13 := m[1], m[5], m[9], m[13]
	a20, a21, a22, a23 := m[2], m[6], m[10], m[14]
	a30, a31, a32, a33 := m[3], m[7], m[11], m[15]

	var out Mat4
	out[0] = (a11*d.c5 - a12*d.c4 + a13*d.c3) * inv
	out[4] = (-a01*d.c5 + a02*d.c4 - a03*d.c3) * inv
	out[8] = (a31*d.s5 - a32*d.s4 + a33*d.s3) * inv
	out[12] = (-a21*d.s5 + a22*d.s4 - a23*d.s3) * inv

	out[1] = (-a10*d.c5 + a12*d.c2 - a13*d.c1) * inv
	out[5] = (a00*d.c5 - a02*d.c2 + a03*d.c1) * inv
	out[9] = (-a30*d.s5 + a32*d.s2 - a33*d.s1) * inv
	out[13] = (a20*d.s5 - a22*d.s2 + a23*d.s1) * inv

	out[2] = (a10*d.c4 - a11*d.c2 + a13*d.c0) * inv
	out[6] = (-a00*d.c4 + a01*d.c2 - a03*d.c0) * inv
	out[10] = (a30*d.s4 - a31*d.s2 + a33*d.s0) * inv
	out[14] = (-a20*d.s4 + a21*d.s2 - a23*d.s0) * inv

	out[3] = (-a10*d.c3 + a11*d.c1 - a12*d.c0) * inv
	out[7] = (a00*d.c3 - a01*d.c1 + a02*d.c0) * inv
	out[11] = (-a30*d.s3 + a31*d.s1 - a32*d.s0) * inv
	out[15] = (a20*d.s3 - a21*d.s1 + a22*d.s0) * inv
	return out
}

// minors holds the 2x2 sub-determinants of the top (s) and bottom (c) row pairs.
type minors struct {
	s0, s1, s2, s3, s4, s5 float32
	c0, c1, c2, c3, c4, c5 float32
}

func (m Mat4) minors() minors {
	a00, a01, a02, a03 := m[0], m[4], m[8], m[12]
	a10, a11, a12, a13 := m[1], m[5], m[9], m[13]
	a20, a21, a22, a23 := m[2], m[6], m[10], m[14]
	a30, a31, a32, a33 := m[3], m[7], m[11], m[15]
	return minors{
		s0: a00*a11 - a10*a01,
		s1: a00*a12 - a10*a02,
		s2: a00*a13 - a10*a03,
		s3: a01*a12 - a11*a02,
		s4: a01*a13 - a11*a03,
		s5: a02*a13 - a12*a03,
		c5: a22*a33 - a32*a23,
		c4: a21*a33 - a31*a23,
		c3: a21*a32 - a31*a22,
		c2: a20*a33 - a30*a23,
		c1: a20*a32 - a30*a22,
		c0: a20*a31 - a30*a21,
	}
}

// NormalMatrix returns the inverse-transpose of the upper 3x3, column-major,
// for transforming normals under non-uniform scale.
func (m Mat4) NormalMatrix() [9]float32 {
	n := m.Inverse().Transpose()
	return [9]float32{
		n[0], n[1], n[2],
		n[4], n[5], n[6],
		n[8], n[9], n[10],
	}
}

// Ptr returns a pointer to the first element, for uniform uploads.
func (m *Mat4) Ptr() *float32 {
	return &m[0]
}
