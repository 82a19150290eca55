package sampling

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// so2Space is the planar rotation space. Samples are [cos, sin] so that the
// classifier input is smooth across the angle wrap; velocities are the scalar
// angular rate.
type so2Space struct{}

func (so2Space) Kind() Kind     { return SO2 }
func (so2Space) SampleDim() int { return 2 }
func (so2Space) VelDim() int    { return 1 }
func (so2Space) InputDim() int  { return 2 }

func (so2Space) PoseToSample(p spatialmath.Pose) Sample {
	theta := spatialmath.Yaw(p.Orientation())
	return Sample{math.Cos(theta), math.Sin(theta)}
}

func (so2Space) SampleToPose(s Sample) spatialmath.Pose {
	return spatialmath.NewPoseFromOrientation(spatialmath.NewZRotation(math.Atan2(s[1], s[0])))
}

func (so2Space) SampleToInput(s Sample) Input {
	return Input(s.Clone())
}

func (so2Space) IdentitySample() Sample {
	return Sample{1, 0}
}

func (so2Space) RandomSample(rnd *rand.Rand) Sample {
	theta := uniform(rnd, -math.Pi, math.Pi)
	return Sample{math.Cos(theta), math.Sin(theta)}
}

func (sp so2Space) RandomPose(rnd *rand.Rand) spatialmath.Pose {
	return sp.SampleToPose(sp.RandomSample(rnd))
}

func (so2Space) SampleError(from, to Sample) Velocity {
	return Velocity{relAngle(from[0], from[1], to[0], to[1])}
}

func (so2Space) IntegrateVel(s Sample, v Velocity) Sample {
	c, sn := rotateUnit(s[0], s[1], v[0])
	return Sample{c, sn}
}

func (so2Space) RelSample(pre, suc Sample) Sample {
	// R(-theta_pre) * R(theta_suc)
	c := pre[0]*suc[0] + pre[1]*suc[1]
	sn := pre[0]*suc[1] - pre[1]*suc[0]
	return Sample{c, sn}
}

func (so2Space) RelVelToVelMat(pre, suc Sample, wrtSuc bool) *mat.Dense {
	return signedIdentity(1, wrtSuc)
}

func (so2Space) InputToVelMat(s Sample) *mat.Dense {
	return mat.NewDense(2, 1, []float64{-s[1], s[0]})
}

// se2Space is the planar pose space. Samples are [x, y, cos, sin]; velocities
// are [vx, vy, omega] with the translation part in the world frame.
type se2Space struct{}

func (se2Space) Kind() Kind     { return SE2 }
func (se2Space) SampleDim() int { return 4 }
func (se2Space) VelDim() int    { return 3 }
func (se2Space) InputDim() int  { return 4 }

func (se2Space) PoseToSample(p spatialmath.Pose) Sample {
	pt := p.Point()
	theta := spatialmath.Yaw(p.Orientation())
	return Sample{pt.X, pt.Y, math.Cos(theta), math.Sin(theta)}
}

func (se2Space) SampleToPose(s Sample) spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: s[0], Y: s[1]},
		spatialmath.NewZRotation(math.Atan2(s[3], s[2])),
	)
}

func (se2Space) SampleToInput(s Sample) Input {
	return Input(s.Clone())
}

func (se2Space) IdentitySample() Sample {
	return Sample{0, 0, 1, 0}
}

func (se2Space) RandomSample(rnd *rand.Rand) Sample {
	theta := uniform(rnd, -math.Pi, math.Pi)
	return Sample{uniform(rnd, -1, 1), uniform(rnd, -1, 1), math.Cos(theta), math.Sin(theta)}
}

func (sp se2Space) RandomPose(rnd *rand.Rand) spatialmath.Pose {
	return sp.SampleToPose(sp.RandomSample(rnd))
}

func (se2Space) SampleError(from, to Sample) Velocity {
	return Velocity{to[0] - from[0], to[1] - from[1], relAngle(from[2], from[3], to[2], to[3])}
}

func (se2Space) IntegrateVel(s Sample, v Velocity) Sample {
	c, sn := rotateUnit(s[2], s[3], v[2])
	return Sample{s[0] + v[0], s[1] + v[1], c, sn}
}

func (se2Space) RelSample(pre, suc Sample) Sample {
	dx, dy := suc[0]-pre[0], suc[1]-pre[1]
	cp, sp := pre[2], pre[3]
	// translation rotated into pre's frame, rotation composed
	return Sample{
		cp*dx + sp*dy,
		-sp*dx + cp*dy,
		cp*suc[2] + sp*suc[3],
		cp*suc[3] - sp*suc[2],
	}
}

func (sp se2Space) RelVelToVelMat(pre, suc Sample, wrtSuc bool) *mat.Dense {
	cp, sn := pre[2], pre[3]
	if wrtSuc {
		return mat.NewDense(3, 3, []float64{
			cp, sn, 0,
			-sn, cp, 0,
			0, 0, 1,
		})
	}
	rel := sp.RelSample(pre, suc)
	return mat.NewDense(3, 3, []float64{
		-cp, -sn, rel[1],
		sn, -cp, -rel[0],
		0, 0, -1,
	})
}

func (se2Space) InputToVelMat(s Sample) *mat.Dense {
	return mat.NewDense(4, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, -s[3],
		0, 0, s[2],
	})
}

// rotateUnit advances a unit (cos, sin) pair by the angle omega and
// renormalizes.
func rotateUnit(c, s, omega float64) (float64, float64) {
	co, so := math.Cos(omega), math.Sin(omega)
	nc := c*co - s*so
	ns := s*co + c*so
	norm := math.Hypot(nc, ns)
	if norm < 1e-12 {
		return 1, 0
	}
	return nc / norm, ns / norm
}

// relAngle returns the wrapped angle from (c1, s1) to (c2, s2).
func relAngle(c1, s1, c2, s2 float64) float64 {
	return wrapAngle(math.Atan2(s2, c2) - math.Atan2(s1, c1))
}
