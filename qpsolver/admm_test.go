package qpsolver

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/mmurooka/differentiable-rmap/logging"
)

func TestSolveUnconstrained(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver := NewADMMSolver(ADMMConfig{}, logger)

	qc := NewCoefficients(2, 0)
	qc.ObjMat.SetSym(0, 0, 1)
	qc.ObjMat.SetSym(1, 1, 1)
	qc.ObjVec[0] = -1
	qc.ObjVec[1] = -2

	x, err := solver.Solve(context.Background(), qc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x[0], test.ShouldAlmostEqual, 1, 1e-4)
	test.That(t, x[1], test.ShouldAlmostEqual, 2, 1e-4)
}

func TestSolveCrossTerms(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver := NewADMMSolver(ADMMConfig{}, logger)

	// Q = [2 0.5; 0.5 1], c = (-1, -1). The minimizer solves Qx = -c.
	qc := NewCoefficients(2, 0)
	qc.ObjMat.SetSym(0, 0, 2)
	qc.ObjMat.SetSym(0, 1, 0.5)
	qc.ObjMat.SetSym(1, 1, 1)
	qc.ObjVec[0] = -1
	qc.ObjVec[1] = -1

	x, err := solver.Solve(context.Background(), qc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x[0], test.ShouldAlmostEqual, 0.5/1.75, 1e-4)
	test.That(t, x[1], test.ShouldAlmostEqual, 1.5/1.75, 1e-4)
}

func TestSolveActiveInequality(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver := NewADMMSolver(ADMMConfig{}, logger)

	// Unconstrained minimizer (2, 2) violates x1+x2 <= 2, so the
	// constrained optimum sits on the constraint at (1, 1).
	qc := NewCoefficients(2, 1)
	qc.ObjMat.SetSym(0, 0, 1)
	qc.ObjMat.SetSym(1, 1, 1)
	qc.ObjVec[0] = -2
	qc.ObjVec[1] = -2
	qc.IneqMat.Set(0, 0, 1)
	qc.IneqMat.Set(0, 1, 1)
	qc.IneqVec[0] = 2

	x, err := solver.Solve(context.Background(), qc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x[0], test.ShouldAlmostEqual, 1, 1e-4)
	test.That(t, x[1], test.ShouldAlmostEqual, 1, 1e-4)
	test.That(t, x[0]+x[1], test.ShouldBeLessThanOrEqualTo, 2+1e-4)
}

func TestSolveActiveBounds(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver := NewADMMSolver(ADMMConfig{}, logger)

	qc := NewCoefficients(1, 0)
	qc.ObjMat.SetSym(0, 0, 1)
	qc.ObjVec[0] = -3
	qc.XMax[0] = 1

	x, err := solver.Solve(context.Background(), qc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x[0], test.ShouldAlmostEqual, 1, 1e-4)

	qc.Reset()
	qc.ObjMat.SetSym(0, 0, 1)
	qc.ObjVec[0] = 3
	qc.XMin[0] = -1

	x, err = solver.Solve(context.Background(), qc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x[0], test.ShouldAlmostEqual, -1, 1e-4)
}

func TestSolveInfeasible(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver := NewADMMSolver(ADMMConfig{MaxIterations: 500}, logger)

	// x <= -1 conflicts with the lower bound x >= 0.
	qc := NewCoefficients(1, 1)
	qc.ObjMat.SetSym(0, 0, 1)
	qc.IneqMat.Set(0, 0, 1)
	qc.IneqVec[0] = -1
	qc.XMin[0] = 0

	x, err := solver.Solve(context.Background(), qc)
	test.That(t, x, test.ShouldBeNil)
	test.That(t, errors.Is(err, ErrSolveFailed), test.ShouldBeTrue)
}

func TestSolveInvalidShape(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver := NewADMMSolver(ADMMConfig{}, logger)

	qc := NewCoefficients(2, 1)
	qc.ObjVec = qc.ObjVec[:1]
	_, err := solver.Solve(context.Background(), qc)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSolveCancel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver := NewADMMSolver(ADMMConfig{}, logger)

	qc := NewCoefficients(2, 0)
	qc.ObjMat.SetSym(0, 0, 1)
	qc.ObjMat.SetSym(1, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := solver.Solve(ctx, qc)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestCoefficientsReuse(t *testing.T) {
	logger := logging.NewTestLogger(t)
	solver := NewADMMSolver(ADMMConfig{}, logger)

	qc := NewCoefficients(2, 1)
	qc.ObjMat.SetSym(0, 0, 1)
	qc.ObjMat.SetSym(1, 1, 1)
	qc.ObjVec[0] = -2
	qc.ObjVec[1] = -2
	qc.IneqMat.Set(0, 0, 1)
	qc.IneqMat.Set(0, 1, 1)
	qc.IneqVec[0] = 2
	_, err := solver.Solve(context.Background(), qc)
	test.That(t, err, test.ShouldBeNil)

	// After a reset the same allocation solves an unrelated program.
	qc.Reset()
	qc.ObjMat.SetSym(0, 0, 1)
	qc.ObjMat.SetSym(1, 1, 1)
	qc.ObjVec[0] = -1
	qc.ObjVec[1] = 1
	qc.IneqMat.Set(0, 1, -1)
	qc.IneqVec[0] = 0.5

	x, err := solver.Solve(context.Background(), qc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x[0], test.ShouldAlmostEqual, 1, 1e-4)
	test.That(t, x[1], test.ShouldAlmostEqual, -0.5, 1e-4)
}
