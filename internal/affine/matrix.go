// Package affine implements the 4x4 homogeneous transform used to place
// emitted objects.
//
// Matrices are row-major and act on column vectors, so the translation
// lives in the last column. Composition is not commutative: a.Mul(b)
// applies b in the local frame of a, which is how an operator's delta is
// folded into the running transform.
package affine

import (
	"fmt"
	"math"
)

// Matrix is a 4x4 homogeneous transform. The zero value is NOT the
// identity; use Identity.
type Matrix [4][4]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Translate returns a translation by (x, y, z).
func Translate(x, y, z float64) Matrix {
	m := Identity()
	m[0][3] = x
	m[1][3] = y
	m[2][3] = z
	return m
}

// Scale returns a non-uniform scale.
func Scale(x, y, z float64) Matrix {
	m := Identity()
	m[0][0] = x
	m[1][1] = y
	m[2][2] = z
	return m
}

// RotateX returns a rotation about the x axis by deg degrees.
func RotateX(deg float64) Matrix {
	s, c := math.Sincos(deg * math.Pi / 180)
	m := Identity()
	m[1][1], m[1][2] = c, -s
	m[2][1], m[2][2] = s, c
	return m
}

// RotateY returns a rotation about the y axis by deg degrees.
func RotateY(deg float64) Matrix {
	s, c := math.Sincos(deg * math.Pi / 180)
	m := Identity()
	m[0][0], m[0][2] = c, s
	m[2][0], m[2][2] = -s, c
	return m
}

// RotateZ returns a rotation about the z axis by deg degrees.
func RotateZ(deg float64) Matrix {
	s, c := math.Sincos(deg * math.Pi / 180)
	m := Identity()
	m[0][0], m[0][1] = c, -s
	m[1][0], m[1][1] = s, c
	return m
}

// Raw builds a transform from a row-major 3x3 linear part and a
// translation.
func Raw(linear [9]float64, t [3]float64) Matrix {
	m := Identity()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r][c] = linear[r*3+c]
		}
		m[r][3] = t[r]
	}
	return m
}

// Mul returns a*b.
func (a Matrix) Mul(b Matrix) Matrix {
	var out Matrix
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r][c] = a[r][0]*b[0][c] + a[r][1]*b[1][c] + a[r][2]*b[2][c] + a[r][3]*b[3][c]
		}
	}
	return out
}

// Det3 returns the determinant of the upper-left 3x3 submatrix. Its
// magnitude is the volume scale of the transform.
func (a Matrix) Det3() float64 {
	return a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
}

// Translation returns the translation column.
func (a Matrix) Translation() (x, y, z float64) {
	return a[0][3], a[1][3], a[2][3]
}

// Apply transforms the point (x, y, z).
func (a Matrix) Apply(x, y, z float64) (float64, float64, float64) {
	return a[0][0]*x + a[0][1]*y + a[0][2]*z + a[0][3],
		a[1][0]*x + a[1][1]*y + a[1][2]*z + a[1][3],
		a[2][0]*x + a[2][1]*y + a[2][2]*z + a[2][3]
}

// Elements returns the matrix flattened in row-major order.
func (a Matrix) Elements() []float64 {
	out := make([]float64, 0, 16)
	for r := 0; r < 4; r++ {
		out = append(out, a[r][:]...)
	}
	return out
}

// FromElements rebuilds a matrix from a row-major slice of 16 values.
func FromElements(e []float64) (Matrix, error) {
	var m Matrix
	if len(e) != 16 {
		return m, fmt.Errorf("matrix needs 16 elements, got %d", len(e))
	}
	for i, v := range e {
		m[i/4][i%4] = v
	}
	return m, nil
}

// ApproxEqual reports whether every element differs by at most eps.
func (a Matrix) ApproxEqual(b Matrix, eps float64) bool {
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if math.Abs(a[r][c]-b[r][c]) > eps {
				return false
			}
		}
	}
	return true
}

// IsFinite reports whether no element is NaN or infinite.
func (a Matrix) IsFinite() bool {
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if math.IsNaN(a[r][c]) || math.IsInf(a[r][c], 0) {
				return false
			}
		}
	}
	return true
}

// IsIdentity reports whether a is exactly the identity.
func (a Matrix) IsIdentity() bool {
	return a == Identity()
}

func (a Matrix) String() string {
	return fmt.Sprintf("[%g %g %g %g; %g %g %g %g; %g %g %g %g; %g %g %g %g]",
		a[0][0], a[0][1], a[0][2], a[0][3],
		a[1][0], a[1][1], a[1][2], a[1][3],
		a[2][0], a[2][1], a[2][2], a[2][3],
		a[3][0], a[3][1], a[3][2], a[3][3])
}
