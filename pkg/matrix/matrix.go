// Package matrix is a 4x4 homogeneous transform in column-major order, the
// layout CSS matrix3d() uses.
package matrix

import (
	"math"
	"strconv"
	"strings"
)

// Matrix is a 4x4 matrix stored column by column: element (row r, column c)
// lives at index c*4+r, so the translation sits in 12, 13 and 14.
type Matrix [16]float64

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate creates a 2D translation.
func Translate(x, y float64) Matrix {
	m := Identity()
	m[12] = x
	m[13] = y
	return m
}

// Translate3d creates a 3D translation.
func Translate3d(x, y, z float64) Matrix {
	m := Translate(x, y)
	m[14] = z
	return m
}

// RotateY creates a rotation about the Y axis (angle in degrees).
func RotateY(deg float64) Matrix {
	rad := deg * math.Pi / 180
	cos := math.Cos(rad)
	sin := math.Sin(rad)
	m := Identity()
	m[0] = cos
	m[2] = -sin
	m[8] = sin
	m[10] = cos
	return m
}

// Perspective creates a perspective projection with the viewer at distance d.
// A non-positive distance yields the identity.
func Perspective(d float64) Matrix {
	m := Identity()
	if d > 0 {
		m[11] = -1 / d
	}
	return m
}

// Multiply returns a·b. Applied to a point, b acts first.
func Multiply(a, b Matrix) Matrix {
	var out Matrix
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += a[k*4+r] * b[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// Multiply returns m·other.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Multiply(m, other)
}

// Clone returns a copy of m.
func (m Matrix) Clone() Matrix {
	return m
}

// IsIdentity returns true if the matrix is the identity matrix.
func (m Matrix) IsIdentity() bool {
	return m == Identity()
}

// TransformPoint applies the matrix to (x, y, z) including the perspective divide.
func (m Matrix) TransformPoint(x, y, z float64) (float64, float64, float64) {
	tx := m[0]*x + m[4]*y + m[8]*z + m[12]
	ty := m[1]*x + m[5]*y + m[9]*z + m[13]
	tz := m[2]*x + m[6]*y + m[10]*z + m[14]
	w := m[3]*x + m[7]*y + m[11]*z + m[15]
	if w == 0 {
		return tx, ty, tz
	}
	return tx / w, ty / w, tz / w
}

// TransformX maps an x coordinate on the z=0 plane.
func (m Matrix) TransformX(x float64) float64 {
	tx, _, _ := m.TransformPoint(x, 0, 0)
	return tx
}

// String formats the matrix as a CSS matrix3d() value.
func (m Matrix) String() string {
	var b strings.Builder
	b.WriteString("matrix3d(")
	for i, v := range m {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatNumber(v))
	}
	b.WriteByte(')')
	return b.String()
}

func formatNumber(v float64) string {
	if math.Abs(v) < 1e-12 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
