// Package sampling defines the pose subspaces a reachability map can be
// built over and the calculus connecting poses, samples, classifier inputs
// and velocities.
//
// A sample is the fixed-size vector representation of a pose in one of six
// subspaces (R2, SO2, SE2, R3, SO3, SE3). Rotations are carried inside the
// sample as unit complex numbers (planar) or unit quaternions (spatial), so
// samples are smooth in the pose. A classifier input is the sample with any
// quaternion lifted to its rotation matrix. A velocity is a minimal world
// frame increment that IntegrateVel applies to a sample.
package sampling

import (
	"math"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// Kind enumerates the supported sampling spaces.
type Kind int

// The supported sampling spaces.
const (
	R2 Kind = iota + 1
	SO2
	SE2
	R3
	SO3
	SE3
)

// ErrUnsupportedSpace is returned when a Kind is not one of the six
// supported sampling spaces.
var ErrUnsupportedSpace = errors.New("unsupported sampling space")

func (k Kind) String() string {
	switch k {
	case R2:
		return "R2"
	case SO2:
		return "SO2"
	case SE2:
		return "SE2"
	case R3:
		return "R3"
	case SO3:
		return "SO3"
	case SE3:
		return "SE3"
	}
	return "Unknown"
}

// KindFromString parses a sampling space name, case insensitively.
func KindFromString(name string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(k.String(), name) {
			return k, nil
		}
	}
	return 0, errors.Wrap(ErrUnsupportedSpace, name)
}

// Kinds returns all supported sampling space kinds.
func Kinds() []Kind {
	return []Kind{R2, SO2, SE2, R3, SO3, SE3}
}

// Sample is the vector representation of a pose in a sampling space.
type Sample []float64

// Velocity is a minimal world frame increment applied to a sample.
type Velocity []float64

// Input is the classifier input derived from a sample.
type Input []float64

// Clone returns a copy of the sample.
func (s Sample) Clone() Sample {
	out := make(Sample, len(s))
	copy(out, s)
	return out
}

// Clone returns a copy of the velocity.
func (v Velocity) Clone() Velocity {
	out := make(Velocity, len(v))
	copy(out, v)
	return out
}

// Space is the calculus of one sampling space. Implementations are fixed; use
// NewSpace to obtain one.
type Space interface {
	Kind() Kind

	// SampleDim, VelDim and InputDim are the lengths of Sample, Velocity
	// and Input vectors for this space.
	SampleDim() int
	VelDim() int
	InputDim() int

	// PoseToSample projects a pose onto the space. Components outside the
	// space (e.g. out-of-plane motion for planar spaces) are discarded.
	PoseToSample(p spatialmath.Pose) Sample
	// SampleToPose embeds a sample back into a full pose, with discarded
	// components at identity.
	SampleToPose(s Sample) spatialmath.Pose
	// SampleToInput lifts a sample to its classifier input. It is the
	// identity except for spaces carrying quaternions, whose rotation is
	// expanded to a row-major rotation matrix.
	SampleToInput(s Sample) Input

	IdentitySample() Sample
	// RandomSample draws translations uniformly from [-1, 1] and rotations
	// uniformly over the rotation group.
	RandomSample(rnd *rand.Rand) Sample
	RandomPose(rnd *rand.Rand) spatialmath.Pose

	// SampleError returns the world frame velocity taking from to to, the
	// inverse of IntegrateVel for small velocities.
	SampleError(from, to Sample) Velocity
	// IntegrateVel applies a world frame velocity to a sample. Rotation
	// components are renormalized.
	IntegrateVel(s Sample, v Velocity) Sample

	// RelSample expresses suc relative to pre, equivalent to projecting
	// PoseBetween(SampleToPose(pre), SampleToPose(suc)).
	RelSample(pre, suc Sample) Sample
	// RelVelToVelMat returns the VelDim square Jacobian of the relative
	// sample's velocity with respect to the velocity of suc (wrtSuc true)
	// or pre (wrtSuc false).
	RelVelToVelMat(pre, suc Sample, wrtSuc bool) *mat.Dense
	// InputToVelMat returns the InputDim by VelDim Jacobian of the input
	// with respect to a velocity applied at s.
	InputToVelMat(s Sample) *mat.Dense
}

// NewSpace returns the Space for the given kind, or ErrUnsupportedSpace.
func NewSpace(kind Kind) (Space, error) {
	switch kind {
	case R2:
		return r2Space{}, nil
	case SO2:
		return so2Space{}, nil
	case SE2:
		return se2Space{}, nil
	case R3:
		return r3Space{}, nil
	case SO3:
		return so3Space{}, nil
	case SE3:
		return se3Space{}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedSpace, "kind %d", kind)
}

// CheckSample validates the length of a sample for a space.
func CheckSample(space Space, s Sample) error {
	if len(s) != space.SampleDim() {
		return errors.Errorf("%s sample has dimension %d, expected %d", space.Kind(), len(s), space.SampleDim())
	}
	return nil
}

// CheckVelocity validates the length of a velocity for a space.
func CheckVelocity(space Space, v Velocity) error {
	if len(v) != space.VelDim() {
		return errors.Errorf("%s velocity has dimension %d, expected %d", space.Kind(), len(v), space.VelDim())
	}
	return nil
}

// wrapAngle wraps an angle to (-pi, pi].
func wrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func uniform(rnd *rand.Rand, min, max float64) float64 {
	return min + (max-min)*rnd.Float64()
}
