package spatialmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

var (
	q90z = quat.Number{Real: math.Sqrt2 / 2, Kmag: math.Sqrt2 / 2}
	q90x = quat.Number{Real: math.Sqrt2 / 2, Imag: math.Sqrt2 / 2}
)

func TestRotate(t *testing.T) {
	v := Rotate(q90z, r3.Vector{X: 1})
	test.That(t, v.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, v.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, v.Z, test.ShouldAlmostEqual, 0, 1e-12)

	v = Rotate(q90x, r3.Vector{Y: 1})
	test.That(t, v.Z, test.ShouldAlmostEqual, 1, 1e-12)
}

func TestRotVecRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		w := r3.Vector{X: rnd.NormFloat64(), Y: rnd.NormFloat64(), Z: rnd.NormFloat64()}
		// keep the angle below pi so the log map is unique
		if w.Norm() > 3 {
			w = w.Mul(3 / w.Norm())
		}
		q := RotVecToQuat(w)
		back := QuatToRotVec(q)
		test.That(t, back.X, test.ShouldAlmostEqual, w.X, 1e-9)
		test.That(t, back.Y, test.ShouldAlmostEqual, w.Y, 1e-9)
		test.That(t, back.Z, test.ShouldAlmostEqual, w.Z, 1e-9)
	}
}

func TestRotVecSmallAngle(t *testing.T) {
	w := r3.Vector{X: 1e-10}
	q := RotVecToQuat(w)
	test.That(t, q.Real, test.ShouldAlmostEqual, 1, 1e-12)
	back := QuatToRotVec(q)
	test.That(t, back.Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestQuatToRotVecFlip(t *testing.T) {
	// q and -q represent the same rotation and must log to the same vector
	w := r3.Vector{X: 0.3, Y: -0.2, Z: 0.9}
	q := RotVecToQuat(w)
	a := QuatToRotVec(q)
	b := QuatToRotVec(Flip(q))
	test.That(t, a.X, test.ShouldAlmostEqual, b.X, 1e-9)
	test.That(t, a.Y, test.ShouldAlmostEqual, b.Y, 1e-9)
	test.That(t, a.Z, test.ShouldAlmostEqual, b.Z, 1e-9)
}

func TestQuatToRotMat(t *testing.T) {
	m := QuatToRotMat(q90z)
	// 90 degrees about Z maps x to y
	want := [9]float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	}
	for i := range want {
		test.That(t, m[i], test.ShouldAlmostEqual, want[i], 1e-12)
	}
}

func TestYaw(t *testing.T) {
	for _, theta := range []float64{0, 0.5, -1.2, 3.0, -3.0} {
		test.That(t, Yaw(NewZRotation(theta)), test.ShouldAlmostEqual, theta, 1e-12)
	}
}

func TestRandomQuatIsUnit(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	for i := 0; i < 20; i++ {
		q := RandomQuat(rnd)
		norm := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
		test.That(t, norm, test.ShouldAlmostEqual, 1, 1e-12)
	}
}

func TestQuatAlmostEqualDoubleCover(t *testing.T) {
	test.That(t, QuatAlmostEqual(q90z, Flip(q90z), 1e-9), test.ShouldBeTrue)
	test.That(t, QuatAlmostEqual(q90z, q90x, 1e-9), test.ShouldBeFalse)
}
