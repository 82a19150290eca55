// Package kinematics provides forward and inverse kinematics for serial
// chains of revolute joints.
package kinematics

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// Limit represents the limits of motion for a joint.
type Limit struct {
	Min float64
	Max float64
}

// Frame is anything with a pose in space determined by joint values.
type Frame interface {
	// Name returns the name of the frame.
	Name() string
	// DoF returns the per-joint limits. Its length is the number of values
	// Transform expects.
	DoF() []Limit
	// Transform computes the pose of the end of the frame for the given
	// joint values.
	Transform(q []float64) (spatialmath.Pose, error)
}

// Joint is a revolute joint: a rotation about Axis followed by a translation
// by Offset expressed in the rotated frame.
type Joint struct {
	Axis   r3.Vector
	Offset r3.Vector
	Limit  Limit
}

// SerialChain is a Frame built from a base pose and a sequence of revolute
// joints.
type SerialChain struct {
	name   string
	base   spatialmath.Pose
	joints []Joint
}

// NewSerialChain returns a chain rooted at the given base pose.
func NewSerialChain(name string, base spatialmath.Pose, joints []Joint) (*SerialChain, error) {
	if len(joints) == 0 {
		return nil, errors.New("serial chain needs at least one joint")
	}
	owned := make([]Joint, len(joints))
	copy(owned, joints)
	for i, j := range owned {
		if j.Axis.Norm() == 0 {
			return nil, errors.Errorf("joint %d has a zero rotation axis", i)
		}
		if j.Limit.Min > j.Limit.Max {
			return nil, errors.Errorf("joint %d has limit min %f greater than max %f", i, j.Limit.Min, j.Limit.Max)
		}
		owned[i].Axis = j.Axis.Normalize()
	}
	return &SerialChain{name: name, base: base, joints: owned}, nil
}

// NewPlanarChain returns a chain of links in the XY plane, one z-axis joint
// per link length, all sharing the given limit.
func NewPlanarChain(name string, lengths []float64, limit Limit) (*SerialChain, error) {
	joints := make([]Joint, 0, len(lengths))
	for _, length := range lengths {
		joints = append(joints, Joint{
			Axis:   r3.Vector{Z: 1},
			Offset: r3.Vector{X: length},
			Limit:  limit,
		})
	}
	return NewSerialChain(name, spatialmath.NewZeroPose(), joints)
}

// Name returns the name of the chain.
func (c *SerialChain) Name() string {
	return c.name
}

// DoF returns the joint limits of the chain.
func (c *SerialChain) DoF() []Limit {
	out := make([]Limit, len(c.joints))
	for i, j := range c.joints {
		out[i] = j.Limit
	}
	return out
}

// Transform implements Frame.
func (c *SerialChain) Transform(q []float64) (spatialmath.Pose, error) {
	if len(q) != len(c.joints) {
		return spatialmath.Pose{}, errors.Errorf("got %d joint values, want %d", len(q), len(c.joints))
	}
	pose := c.base
	for i, j := range c.joints {
		rot := spatialmath.NewRotationFromAxisAngle(j.Axis, q[i])
		pose = spatialmath.Compose(pose, spatialmath.NewPose(spatialmath.Rotate(rot, j.Offset), rot))
	}
	return pose, nil
}

// RandomInputs returns joint values drawn uniformly within the limits.
func RandomInputs(limits []Limit, rnd *rand.Rand) []float64 {
	q := make([]float64, len(limits))
	for i, l := range limits {
		q[i] = l.Min + rnd.Float64()*(l.Max-l.Min)
	}
	return q
}

func clampToLimits(q []float64, limits []Limit) {
	for i, l := range limits {
		if q[i] < l.Min {
			q[i] = l.Min
		} else if q[i] > l.Max {
			q[i] = l.Max
		}
	}
}
