package sampling

import (
	"math/rand"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// so3Space is the spatial rotation space. Samples are unit quaternions
// [w, x, y, z]; inputs are the row-major rotation matrix, which is free of the
// quaternion double cover; velocities are world frame angular rates.
type so3Space struct{}

func (so3Space) Kind() Kind     { return SO3 }
func (so3Space) SampleDim() int { return 4 }
func (so3Space) VelDim() int    { return 3 }
func (so3Space) InputDim() int  { return 9 }

func (so3Space) PoseToSample(p spatialmath.Pose) Sample {
	return quatToSample(canonicalQuat(p.Orientation()))
}

func (so3Space) SampleToPose(s Sample) spatialmath.Pose {
	return spatialmath.NewPoseFromOrientation(sampleQuat(s, 0))
}

func (so3Space) SampleToInput(s Sample) Input {
	r := spatialmath.QuatToRotMat(sampleQuat(s, 0))
	return Input(r[:])
}

func (so3Space) IdentitySample() Sample {
	return Sample{1, 0, 0, 0}
}

func (so3Space) RandomSample(rnd *rand.Rand) Sample {
	return quatToSample(canonicalQuat(spatialmath.RandomQuat(rnd)))
}

func (sp so3Space) RandomPose(rnd *rand.Rand) spatialmath.Pose {
	return sp.SampleToPose(sp.RandomSample(rnd))
}

func (so3Space) SampleError(from, to Sample) Velocity {
	w := spatialmath.QuatToRotVec(quat.Mul(sampleQuat(to, 0), quat.Conj(sampleQuat(from, 0))))
	return Velocity{w.X, w.Y, w.Z}
}

func (so3Space) IntegrateVel(s Sample, v Velocity) Sample {
	q := integrateQuat(sampleQuat(s, 0), r3.Vector{X: v[0], Y: v[1], Z: v[2]})
	return quatToSample(q)
}

func (so3Space) RelSample(pre, suc Sample) Sample {
	q := quat.Mul(quat.Conj(sampleQuat(pre, 0)), sampleQuat(suc, 0))
	return quatToSample(canonicalQuat(q))
}

func (so3Space) RelVelToVelMat(pre, suc Sample, wrtSuc bool) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	setTransposed(m, 0, 0, spatialmath.QuatToRotMat(sampleQuat(pre, 0)), wrtSuc)
	return m
}

func (so3Space) InputToVelMat(s Sample) *mat.Dense {
	m := mat.NewDense(9, 3, nil)
	setRotInputJac(m, 0, 0, spatialmath.QuatToRotMat(sampleQuat(s, 0)))
	return m
}

// se3Space is the spatial pose space. Samples are [x, y, z, qw, qx, qy, qz];
// inputs replace the quaternion with the row-major rotation matrix;
// velocities are [vx, vy, vz, wx, wy, wz] in the world frame.
type se3Space struct{}

func (se3Space) Kind() Kind     { return SE3 }
func (se3Space) SampleDim() int { return 7 }
func (se3Space) VelDim() int    { return 6 }
func (se3Space) InputDim() int  { return 12 }

func (se3Space) PoseToSample(p spatialmath.Pose) Sample {
	pt := p.Point()
	q := canonicalQuat(p.Orientation())
	return Sample{pt.X, pt.Y, pt.Z, q.Real, q.Imag, q.Jmag, q.Kmag}
}

func (se3Space) SampleToPose(s Sample) spatialmath.Pose {
	return spatialmath.NewPose(r3.Vector{X: s[0], Y: s[1], Z: s[2]}, sampleQuat(s, 3))
}

func (se3Space) SampleToInput(s Sample) Input {
	r := spatialmath.QuatToRotMat(sampleQuat(s, 3))
	in := make(Input, 0, 12)
	in = append(in, s[0], s[1], s[2])
	return append(in, r[:]...)
}

func (se3Space) IdentitySample() Sample {
	return Sample{0, 0, 0, 1, 0, 0, 0}
}

func (se3Space) RandomSample(rnd *rand.Rand) Sample {
	q := canonicalQuat(spatialmath.RandomQuat(rnd))
	return Sample{
		uniform(rnd, -1, 1), uniform(rnd, -1, 1), uniform(rnd, -1, 1),
		q.Real, q.Imag, q.Jmag, q.Kmag,
	}
}

func (sp se3Space) RandomPose(rnd *rand.Rand) spatialmath.Pose {
	return sp.SampleToPose(sp.RandomSample(rnd))
}

func (se3Space) SampleError(from, to Sample) Velocity {
	w := spatialmath.QuatToRotVec(quat.Mul(sampleQuat(to, 3), quat.Conj(sampleQuat(from, 3))))
	return Velocity{to[0] - from[0], to[1] - from[1], to[2] - from[2], w.X, w.Y, w.Z}
}

func (se3Space) IntegrateVel(s Sample, v Velocity) Sample {
	q := integrateQuat(sampleQuat(s, 3), r3.Vector{X: v[3], Y: v[4], Z: v[5]})
	return Sample{s[0] + v[0], s[1] + v[1], s[2] + v[2], q.Real, q.Imag, q.Jmag, q.Kmag}
}

func (se3Space) RelSample(pre, suc Sample) Sample {
	qp := sampleQuat(pre, 3)
	d := r3.Vector{X: suc[0] - pre[0], Y: suc[1] - pre[1], Z: suc[2] - pre[2]}
	pt := spatialmath.Rotate(quat.Conj(qp), d)
	q := canonicalQuat(quat.Mul(quat.Conj(qp), sampleQuat(suc, 3)))
	return Sample{pt.X, pt.Y, pt.Z, q.Real, q.Imag, q.Jmag, q.Kmag}
}

func (se3Space) RelVelToVelMat(pre, suc Sample, wrtSuc bool) *mat.Dense {
	rp := spatialmath.QuatToRotMat(sampleQuat(pre, 3))
	m := mat.NewDense(6, 6, nil)
	setTransposed(m, 0, 0, rp, wrtSuc)
	setTransposed(m, 3, 3, rp, wrtSuc)
	if !wrtSuc {
		// translation sensitivity to the rotation of pre:
		// Rp^T * skew(suc - pre)
		d := r3.Vector{X: suc[0] - pre[0], Y: suc[1] - pre[1], Z: suc[2] - pre[2]}
		skew := [9]float64{
			0, -d.Z, d.Y,
			d.Z, 0, -d.X,
			-d.Y, d.X, 0,
		}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				var sum float64
				for k := 0; k < 3; k++ {
					sum += rp[3*k+i] * skew[3*k+j]
				}
				m.Set(i, 3+j, sum)
			}
		}
	}
	return m
}

func (se3Space) InputToVelMat(s Sample) *mat.Dense {
	m := mat.NewDense(12, 6, nil)
	for i := 0; i < 3; i++ {
		m.Set(i, i, 1)
	}
	setRotInputJac(m, 3, 3, spatialmath.QuatToRotMat(sampleQuat(s, 3)))
	return m
}

func sampleQuat(s Sample, off int) quat.Number {
	return quat.Number{Real: s[off], Imag: s[off+1], Jmag: s[off+2], Kmag: s[off+3]}
}

func quatToSample(q quat.Number) Sample {
	return Sample{q.Real, q.Imag, q.Jmag, q.Kmag}
}

// canonicalQuat picks the double cover representative with nonnegative real
// part so equal rotations yield equal samples.
func canonicalQuat(q quat.Number) quat.Number {
	if q.Real < 0 {
		return spatialmath.Flip(q)
	}
	return q
}

func integrateQuat(q quat.Number, w r3.Vector) quat.Number {
	return spatialmath.Normalize(quat.Mul(spatialmath.RotVecToQuat(w), q))
}

// setTransposed writes R^T (or -R^T) into the 3x3 block of m at (row, col).
func setTransposed(m *mat.Dense, row, col int, r [9]float64, positive bool) {
	sign := 1.0
	if !positive {
		sign = -1.0
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(row+i, col+j, sign*r[3*j+i])
		}
	}
}

// setRotInputJac writes the 9x3 Jacobian of the row-major rotation matrix
// entries with respect to a world frame angular velocity, d vec(R)/d w for
// R <- exp(skew(w)) R, into m at (row, col).
func setRotInputJac(m *mat.Dense, row, col int, r [9]float64) {
	for j := 0; j < 3; j++ {
		m.Set(row+3+j, col+0, -r[6+j])
		m.Set(row+6+j, col+0, r[3+j])
		m.Set(row+0+j, col+1, r[6+j])
		m.Set(row+6+j, col+1, -r[0+j])
		m.Set(row+0+j, col+2, -r[3+j])
		m.Set(row+3+j, col+2, r[0+j])
	}
}
