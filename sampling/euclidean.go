package sampling

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// r2Space is the planar position space. Samples, inputs and velocities are
// all [x, y].
type r2Space struct{}

func (r2Space) Kind() Kind     { return R2 }
func (r2Space) SampleDim() int { return 2 }
func (r2Space) VelDim() int    { return 2 }
func (r2Space) InputDim() int  { return 2 }

func (r2Space) PoseToSample(p spatialmath.Pose) Sample {
	pt := p.Point()
	return Sample{pt.X, pt.Y}
}

func (r2Space) SampleToPose(s Sample) spatialmath.Pose {
	return spatialmath.NewPoseFromPoint(r3.Vector{X: s[0], Y: s[1]})
}

func (r2Space) SampleToInput(s Sample) Input {
	return Input(s.Clone())
}

func (r2Space) IdentitySample() Sample {
	return Sample{0, 0}
}

func (r2Space) RandomSample(rnd *rand.Rand) Sample {
	return Sample{uniform(rnd, -1, 1), uniform(rnd, -1, 1)}
}

func (sp r2Space) RandomPose(rnd *rand.Rand) spatialmath.Pose {
	return sp.SampleToPose(sp.RandomSample(rnd))
}

func (r2Space) SampleError(from, to Sample) Velocity {
	return Velocity{to[0] - from[0], to[1] - from[1]}
}

func (r2Space) IntegrateVel(s Sample, v Velocity) Sample {
	return Sample{s[0] + v[0], s[1] + v[1]}
}

func (r2Space) RelSample(pre, suc Sample) Sample {
	return Sample{suc[0] - pre[0], suc[1] - pre[1]}
}

func (r2Space) RelVelToVelMat(pre, suc Sample, wrtSuc bool) *mat.Dense {
	return signedIdentity(2, wrtSuc)
}

func (r2Space) InputToVelMat(s Sample) *mat.Dense {
	return identityDense(2)
}

// r3Space is the spatial position space. Samples, inputs and velocities are
// all [x, y, z].
type r3Space struct{}

func (r3Space) Kind() Kind     { return R3 }
func (r3Space) SampleDim() int { return 3 }
func (r3Space) VelDim() int    { return 3 }
func (r3Space) InputDim() int  { return 3 }

func (r3Space) PoseToSample(p spatialmath.Pose) Sample {
	pt := p.Point()
	return Sample{pt.X, pt.Y, pt.Z}
}

func (r3Space) SampleToPose(s Sample) spatialmath.Pose {
	return spatialmath.NewPoseFromPoint(r3.Vector{X: s[0], Y: s[1], Z: s[2]})
}

func (r3Space) SampleToInput(s Sample) Input {
	return Input(s.Clone())
}

func (r3Space) IdentitySample() Sample {
	return Sample{0, 0, 0}
}

func (r3Space) RandomSample(rnd *rand.Rand) Sample {
	return Sample{uniform(rnd, -1, 1), uniform(rnd, -1, 1), uniform(rnd, -1, 1)}
}

func (sp r3Space) RandomPose(rnd *rand.Rand) spatialmath.Pose {
	return sp.SampleToPose(sp.RandomSample(rnd))
}

func (r3Space) SampleError(from, to Sample) Velocity {
	return Velocity{to[0] - from[0], to[1] - from[1], to[2] - from[2]}
}

func (r3Space) IntegrateVel(s Sample, v Velocity) Sample {
	return Sample{s[0] + v[0], s[1] + v[1], s[2] + v[2]}
}

func (r3Space) RelSample(pre, suc Sample) Sample {
	return Sample{suc[0] - pre[0], suc[1] - pre[1], suc[2] - pre[2]}
}

func (r3Space) RelVelToVelMat(pre, suc Sample, wrtSuc bool) *mat.Dense {
	return signedIdentity(3, wrtSuc)
}

func (r3Space) InputToVelMat(s Sample) *mat.Dense {
	return identityDense(3)
}

func identityDense(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func signedIdentity(n int, positive bool) *mat.Dense {
	sign := 1.0
	if !positive {
		sign = -1.0
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, sign)
	}
	return m
}
