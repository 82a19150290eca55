// Package qpsolver solves strictly convex quadratic programs with linear
// inequality and box constraints.
package qpsolver

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrSolveFailed is returned when a solver cannot meet its convergence
// criteria, for example on an infeasible program.
var ErrSolveFailed = errors.New("failed to solve QP")

// Coefficients holds a quadratic program of the form
//
//	minimize    (1/2) xᵀ Q x + cᵀ x
//	subject to  G x ≤ h
//	            lb ≤ x ≤ ub
//
// A Coefficients value is allocated once and refilled on every solver call,
// so iterative callers do not allocate per iteration.
type Coefficients struct {
	ObjMat  *mat.SymDense // Q, dim x dim
	ObjVec  []float64     // c, length dim
	IneqMat *mat.Dense    // G, ineqDim x dim, nil when ineqDim is zero
	IneqVec []float64     // h, length ineqDim
	XMin    []float64     // lb, length dim
	XMax    []float64     // ub, length dim
}

// NewCoefficients allocates a zeroed program with dim variables and ineqDim
// inequality rows. The bounds start unbounded.
func NewCoefficients(dim, ineqDim int) *Coefficients {
	qc := &Coefficients{
		ObjMat: mat.NewSymDense(dim, nil),
		ObjVec: make([]float64, dim),
		XMin:   make([]float64, dim),
		XMax:   make([]float64, dim),
	}
	if ineqDim > 0 {
		qc.IneqMat = mat.NewDense(ineqDim, dim, nil)
		qc.IneqVec = make([]float64, ineqDim)
	}
	for i := 0; i < dim; i++ {
		qc.XMin[i] = math.Inf(-1)
		qc.XMax[i] = math.Inf(1)
	}
	return qc
}

// Dim returns the number of optimization variables.
func (qc *Coefficients) Dim() int {
	return len(qc.ObjVec)
}

// IneqDim returns the number of inequality rows.
func (qc *Coefficients) IneqDim() int {
	return len(qc.IneqVec)
}

// Reset zeroes the objective and inequality terms and removes the bounds so
// the value can be refilled for a new program of the same shape.
func (qc *Coefficients) Reset() {
	qc.ObjMat.Zero()
	for i := range qc.ObjVec {
		qc.ObjVec[i] = 0
		qc.XMin[i] = math.Inf(-1)
		qc.XMax[i] = math.Inf(1)
	}
	if qc.IneqMat != nil {
		qc.IneqMat.Zero()
	}
	for i := range qc.IneqVec {
		qc.IneqVec[i] = 0
	}
}

func (qc *Coefficients) check() error {
	if qc.ObjMat == nil {
		return errors.New("objective matrix is not set")
	}
	dim, _ := qc.ObjMat.Dims()
	if len(qc.ObjVec) != dim {
		return errors.Errorf("objective vector has length %d, want %d", len(qc.ObjVec), dim)
	}
	if len(qc.XMin) != dim || len(qc.XMax) != dim {
		return errors.Errorf("bounds must have length %d", dim)
	}
	if qc.IneqMat == nil {
		if len(qc.IneqVec) != 0 {
			return errors.New("inequality vector set without inequality matrix")
		}
		return nil
	}
	rows, cols := qc.IneqMat.Dims()
	if cols != dim {
		return errors.Errorf("inequality matrix has %d columns, want %d", cols, dim)
	}
	if len(qc.IneqVec) != rows {
		return errors.Errorf("inequality vector has length %d, want %d", len(qc.IneqVec), rows)
	}
	return nil
}

// Solver finds the minimizer of a quadratic program.
type Solver interface {
	Solve(ctx context.Context, qc *Coefficients) ([]float64, error)
}
