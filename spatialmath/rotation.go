// Package spatialmath defines spatial math primitives for poses built on
// gonum quaternions and r3 vectors.
package spatialmath

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const defaultAngleEpsilon = 1e-8

// Norm returns the norm of the quaternion, i.e. the sqrt of the squares of the imaginary parts.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// Normalize scales a quaternion to unit length.
func Normalize(q quat.Number) quat.Number {
	length := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if math.Abs(length-1.0) < 1e-10 {
		return q
	}
	if length == 0 {
		return quat.Number{Real: 1}
	}
	if length == math.Inf(1) {
		length = float64(math.MaxFloat64)
	}
	return quat.Number{Real: q.Real / length, Imag: q.Imag / length, Jmag: q.Jmag / length, Kmag: q.Kmag / length}
}

// Flip multiplies a quaternion by -1, preserving the rotation it represents.
func Flip(q quat.Number) quat.Number {
	return quat.Number{Real: -q.Real, Imag: -q.Imag, Jmag: -q.Jmag, Kmag: -q.Kmag}
}

// Rotate rotates a vector by the given unit quaternion.
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// RotVecToQuat converts a rotation vector (axis scaled by angle, radians) to a
// unit quaternion, the exponential map of so(3).
func RotVecToQuat(v r3.Vector) quat.Number {
	angle := v.Norm()
	if angle < defaultAngleEpsilon {
		// first order expansion, renormalized
		return Normalize(quat.Number{Real: 1, Imag: v.X / 2, Jmag: v.Y / 2, Kmag: v.Z / 2})
	}
	s := math.Sin(angle/2) / angle
	return quat.Number{Real: math.Cos(angle / 2), Imag: v.X * s, Jmag: v.Y * s, Kmag: v.Z * s}
}

// QuatToRotVec converts a unit quaternion to its rotation vector, choosing the
// representation with angle magnitude at most pi, in the same way the C++
// Eigen library does.
// https://eigen.tuxfamily.org/dox/AngleAxis_8h_source.html
func QuatToRotVec(q quat.Number) r3.Vector {
	denom := Norm(q)
	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}
	if denom < defaultAngleEpsilon {
		return r3.Vector{}
	}
	return r3.Vector{X: angle * q.Imag / denom, Y: angle * q.Jmag / denom, Z: angle * q.Kmag / denom}
}

// QuatToRotMat returns the rotation matrix of a unit quaternion in row-major
// order.
func QuatToRotMat(q quat.Number) [9]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// Yaw extracts the rotation angle about the world Z axis.
func Yaw(q quat.Number) float64 {
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}

// NewZRotation returns the quaternion rotating by theta radians about the Z axis.
func NewZRotation(theta float64) quat.Number {
	return quat.Number{Real: math.Cos(theta / 2), Kmag: math.Sin(theta / 2)}
}

// NewRotationFromAxisAngle returns the quaternion rotating by theta radians
// about the given axis. The axis need not be unit length.
func NewRotationFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	norm := axis.Norm()
	if norm < defaultAngleEpsilon {
		return quat.Number{Real: 1}
	}
	return RotVecToQuat(axis.Mul(theta / norm))
}

// RandomQuat returns a rotation drawn uniformly over SO(3).
func RandomQuat(rnd *rand.Rand) quat.Number {
	return Normalize(quat.Number{
		Real: rnd.NormFloat64(),
		Imag: rnd.NormFloat64(),
		Jmag: rnd.NormFloat64(),
		Kmag: rnd.NormFloat64(),
	})
}

// QuatAlmostEqual reports whether two quaternions represent rotations within
// tol of one another, accounting for the double cover.
func QuatAlmostEqual(a, b quat.Number, tol float64) bool {
	if quatDistance(a, b) < tol {
		return true
	}
	return quatDistance(a, Flip(b)) < tol
}

func quatDistance(a, b quat.Number) float64 {
	diff := quat.Number{
		Real: a.Real - b.Real,
		Imag: a.Imag - b.Imag,
		Jmag: a.Jmag - b.Jmag,
		Kmag: a.Kmag - b.Kmag,
	}
	return math.Sqrt(diff.Real*diff.Real + diff.Imag*diff.Imag + diff.Jmag*diff.Jmag + diff.Kmag*diff.Kmag)
}
