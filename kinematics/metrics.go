package kinematics

import (
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// StateMetric scores a pose against some criterion. Lower is better. This is
// used for gradient descent to converge upon a goal pose, for example.
type StateMetric func(spatialmath.Pose) float64

// NewSquaredNormMetric is the default distance function between two poses to
// be used for gradient descent.
func NewSquaredNormMetric(goal spatialmath.Pose, orientWeight float64) StateMetric {
	return func(query spatialmath.Pose) float64 {
		delta := spatialmath.PoseBetween(goal, query)
		// Increase weight for orientation since it's a small number.
		rot := spatialmath.QuatToRotVec(delta.Orientation()).Mul(orientWeight)
		return delta.Point().Norm2() + rot.Norm2()
	}
}

// NewPositionOnlyMetric reports the squared distance to the goal point
// without regard for orientation. This is useful when there are not enough
// DoF to control orientation but arbitrary points may still be arrived at.
func NewPositionOnlyMetric(goal spatialmath.Pose) StateMetric {
	return func(query spatialmath.Pose) float64 {
		return query.Point().Sub(goal.Point()).Norm2()
	}
}
