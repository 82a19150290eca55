package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: a point in 3D space and an orientation. The zero
// value is the identity pose.
type Pose struct {
	point       r3.Vector
	orientation quat.Number
	set         bool
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{orientation: quat.Number{Real: 1}, set: true}
}

// NewPose takes a point and an orientation and returns a Pose. The orientation
// is normalized to unit length.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return Pose{point: point, orientation: Normalize(orientation), set: true}
}

// NewPoseFromPoint takes a point and returns a Pose with no orientation change.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{point: point, orientation: quat.Number{Real: 1}, set: true}
}

// NewPoseFromOrientation takes an orientation and returns a Pose at the origin.
func NewPoseFromOrientation(orientation quat.Number) Pose {
	return Pose{orientation: Normalize(orientation), set: true}
}

// Point returns the position of the pose.
func (p Pose) Point() r3.Vector {
	return p.point
}

// Orientation returns the orientation of the pose as a unit quaternion.
func (p Pose) Orientation() quat.Number {
	if !p.set {
		return quat.Number{Real: 1}
	}
	return p.orientation
}

// Compose treats Poses as functions and returns the result of applying b after
// a, i.e. the frame of b expressed in the frame of a.
func Compose(a, b Pose) Pose {
	return Pose{
		point:       a.Point().Add(Rotate(a.Orientation(), b.Point())),
		orientation: Normalize(quat.Mul(a.Orientation(), b.Orientation())),
		set:         true,
	}
}

// PoseBetween returns the pose of b relative to a, i.e. the transform taking a
// to b. Compose(a, PoseBetween(a, b)) equals b.
func PoseBetween(a, b Pose) Pose {
	inv := quat.Conj(a.Orientation())
	return Pose{
		point:       Rotate(inv, b.Point().Sub(a.Point())),
		orientation: Normalize(quat.Mul(inv, b.Orientation())),
		set:         true,
	}
}

// PoseInverse returns the inverse transform, so that
// Compose(p, PoseInverse(p)) is the identity.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(p.Orientation())
	return Pose{
		point:       Rotate(inv, p.Point().Mul(-1)),
		orientation: inv,
		set:         true,
	}
}

// PoseAlmostEqual reports whether two poses agree in position and orientation
// within tol.
func PoseAlmostEqual(a, b Pose, tol float64) bool {
	if a.Point().Sub(b.Point()).Norm() > tol {
		return false
	}
	return QuatAlmostEqual(a.Orientation(), b.Orientation(), tol)
}
