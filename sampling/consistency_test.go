package sampling

import (
	"math/rand"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

const fdStep = 1e-5

func randomVel(space Space, rnd *rand.Rand, scale float64) Velocity {
	v := make(Velocity, space.VelDim())
	for i := range v {
		v[i] = scale * rnd.NormFloat64()
	}
	return v
}

func TestIntegrateErrorInverse(t *testing.T) {
	rnd := rand.New(rand.NewSource(21))
	for _, kind := range Kinds() {
		space, err := NewSpace(kind)
		test.That(t, err, test.ShouldBeNil)
		for i := 0; i < 20; i++ {
			s := space.RandomSample(rnd)
			v := randomVel(space, rnd, 0.1)
			moved := space.IntegrateVel(s, v)
			back := space.SampleError(s, moved)
			for j := range v {
				test.That(t, back[j], test.ShouldAlmostEqual, v[j], 1e-9)
			}
		}
	}
}

func TestRelSampleMatchesPoseBetween(t *testing.T) {
	rnd := rand.New(rand.NewSource(22))
	for _, kind := range Kinds() {
		space, err := NewSpace(kind)
		test.That(t, err, test.ShouldBeNil)
		for i := 0; i < 20; i++ {
			pre := space.RandomSample(rnd)
			suc := space.RandomSample(rnd)
			rel := space.RelSample(pre, suc)
			want := space.PoseToSample(spatialmath.PoseBetween(space.SampleToPose(pre), space.SampleToPose(suc)))
			for j := range want {
				test.That(t, rel[j], test.ShouldAlmostEqual, want[j], 1e-9)
			}
		}
	}
}

// numericRelVelMat estimates RelVelToVelMat by central differences of
// RelSample under IntegrateVel perturbations.
func numericRelVelMat(space Space, pre, suc Sample, wrtSuc bool) *mat.Dense {
	n := space.VelDim()
	out := mat.NewDense(n, n, nil)
	for k := 0; k < n; k++ {
		dv := make(Velocity, n)
		dv[k] = fdStep
		var plus, minus Sample
		if wrtSuc {
			plus = space.RelSample(pre, space.IntegrateVel(suc, dv))
			dv[k] = -fdStep
			minus = space.RelSample(pre, space.IntegrateVel(suc, dv))
		} else {
			plus = space.RelSample(space.IntegrateVel(pre, dv), suc)
			dv[k] = -fdStep
			minus = space.RelSample(space.IntegrateVel(pre, dv), suc)
		}
		diff := space.SampleError(minus, plus)
		for i := 0; i < n; i++ {
			out.Set(i, k, diff[i]/(2*fdStep))
		}
	}
	return out
}

func TestRelVelToVelMat(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))
	for _, kind := range Kinds() {
		space, err := NewSpace(kind)
		test.That(t, err, test.ShouldBeNil)
		for i := 0; i < 10; i++ {
			pre := space.RandomSample(rnd)
			suc := space.RandomSample(rnd)
			for _, wrtSuc := range []bool{true, false} {
				got := space.RelVelToVelMat(pre, suc, wrtSuc)
				want := numericRelVelMat(space, pre, suc, wrtSuc)
				n := space.VelDim()
				for r := 0; r < n; r++ {
					for c := 0; c < n; c++ {
						test.That(t, got.At(r, c), test.ShouldAlmostEqual, want.At(r, c), 1e-4)
					}
				}
			}
		}
	}
}

func TestInputToVelMat(t *testing.T) {
	rnd := rand.New(rand.NewSource(24))
	for _, kind := range Kinds() {
		space, err := NewSpace(kind)
		test.That(t, err, test.ShouldBeNil)
		for i := 0; i < 10; i++ {
			s := space.RandomSample(rnd)
			got := space.InputToVelMat(s)
			rows, cols := got.Dims()
			test.That(t, rows, test.ShouldEqual, space.InputDim())
			test.That(t, cols, test.ShouldEqual, space.VelDim())
			for k := 0; k < cols; k++ {
				dv := make(Velocity, cols)
				dv[k] = fdStep
				plus := space.SampleToInput(space.IntegrateVel(s, dv))
				dv[k] = -fdStep
				minus := space.SampleToInput(space.IntegrateVel(s, dv))
				for r := 0; r < rows; r++ {
					want := (plus[r] - minus[r]) / (2 * fdStep)
					test.That(t, got.At(r, k), test.ShouldAlmostEqual, want, 1e-4)
				}
			}
		}
	}
}

func TestRotationStaysUnit(t *testing.T) {
	rnd := rand.New(rand.NewSource(25))
	for _, kind := range []Kind{SO2, SE2, SO3, SE3} {
		space, err := NewSpace(kind)
		test.That(t, err, test.ShouldBeNil)
		s := space.RandomSample(rnd)
		// long random walk must not drift off the rotation manifold
		for i := 0; i < 500; i++ {
			s = space.IntegrateVel(s, randomVel(space, rnd, 0.3))
		}
		var norm float64
		switch kind {
		case SO2:
			norm = s[0]*s[0] + s[1]*s[1]
		case SE2:
			norm = s[2]*s[2] + s[3]*s[3]
		case SO3:
			norm = s[0]*s[0] + s[1]*s[1] + s[2]*s[2] + s[3]*s[3]
		case SE3:
			norm = s[3]*s[3] + s[4]*s[4] + s[5]*s[5] + s[6]*s[6]
		}
		test.That(t, norm, test.ShouldAlmostEqual, 1, 1e-9)
	}
}
