package evcam

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Constants for rotation math
const (
	// SmallAngleThresholdSq is the squared angle below which ExpMap switches
	// to its Taylor expansion to avoid a 0/0 in the Rodrigues coefficients.
	SmallAngleThresholdSq = 1e-12
	// MinDerivativeNormSq is the minimum squared rotation-vector norm for
	// the exponential-map derivative. The closed form divides by this norm,
	// so a zero rotation has no defined derivative.
	MinDerivativeNormSq = 1e-12
)

// Mat3 is a 3x3 matrix stored row-major: m00,m01,m02, m10,m11,m12, m20,m21,m22.
type Mat3 [9]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Apply multiplies the matrix by a column vector: m * v.
func (m Mat3) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// Mul returns the matrix product m * b.
func (m Mat3) Mul(b Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += m[i*3+k] * b[k*3+j]
			}
			out[i*3+j] = sum
		}
	}
	return out
}

// Transpose returns the matrix transpose.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Scale returns the matrix with every element multiplied by s.
func (m Mat3) Scale(s float64) Mat3 {
	var out Mat3
	for i := range m {
		out[i] = m[i] * s
	}
	return out
}

// Add returns the elementwise sum m + b.
func (m Mat3) Add(b Mat3) Mat3 {
	var out Mat3
	for i := range m {
		out[i] = m[i] + b[i]
	}
	return out
}

// Skew returns the cross-product matrix of v, so that Skew(v).Apply(x) == v x x.
func Skew(v r3.Vector) Mat3 {
	return Mat3{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	}
}

// Outer returns the outer product a * b^T.
func Outer(a, b r3.Vector) Mat3 {
	return Mat3{
		a.X * b.X, a.X * b.Y, a.X * b.Z,
		a.Y * b.X, a.Y * b.Y, a.Y * b.Z,
		a.Z * b.X, a.Z * b.Y, a.Z * b.Z,
	}
}

// ExpMap converts a rotation vector (axis-angle: direction = axis,
// magnitude = angle in radians) into a rotation matrix using the closed-form
// Rodrigues formula:
//
//	R = I + sin(t)/t * K + (1-cos(t))/t^2 * K^2,  K = Skew(v), t = |v|
//
// Near t = 0 the coefficients use their Taylor expansions, so ExpMap of the
// zero vector is exactly the identity.
func ExpMap(v r3.Vector) Mat3 {
	theta2 := v.Norm2()

	var a, b float64 // a = sin(t)/t, b = (1-cos(t))/t^2
	if theta2 < SmallAngleThresholdSq {
		a = 1 - theta2/6
		b = 0.5 - theta2/24
	} else {
		theta := math.Sqrt(theta2)
		a = math.Sin(theta) / theta
		b = (1 - math.Cos(theta)) / theta2
	}

	k := Skew(v)
	k2 := k.Mul(k)
	return Identity3().Add(k.Scale(a)).Add(k2.Scale(b))
}

// ExpMapPointDerivative returns the 3x3 derivative of R*x with respect to the
// rotation vector v, where rot = ExpMap(v) and x is held fixed:
//
//	d(R*x)/dv = -R * Skew(x) * M(v)
//	M(v) = ( v*v^T + (R^T - I) * Skew(v) ) / |v|^2
//
// Column j of the result is the partial of R*x with respect to v_j. The
// formula is valid for rotation angles in [0, pi] and is singular at v = 0;
// a zero-norm rotation vector is rejected with an error rather than
// substituting a limit.
func ExpMapPointDerivative(rot Mat3, v, x r3.Vector) (Mat3, error) {
	m, err := expMapDerivFactor(rot, v)
	if err != nil {
		return Mat3{}, err
	}
	return rot.Scale(-1).Mul(Skew(x)).Mul(m), nil
}

// expMapDerivFactor returns M(v) = (v*v^T + (R^T - I)*Skew(v)) / |v|^2, the
// point-independent factor of ExpMapPointDerivative. Callers evaluating many
// points under one rotation compute it once.
func expMapDerivFactor(rot Mat3, v r3.Vector) (Mat3, error) {
	norm2 := v.Norm2()
	if norm2 < MinDerivativeNormSq {
		return Mat3{}, fmt.Errorf("exponential-map derivative undefined for zero-norm rotation vector (|v|^2=%g)", norm2)
	}

	rtMinusI := rot.Transpose().Add(Identity3().Scale(-1))
	return Outer(v, v).Add(rtMinusI.Mul(Skew(v))).Scale(1 / norm2), nil
}
