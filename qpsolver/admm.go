package qpsolver

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/logging"
)

const (
	defaultRho           = 0.1
	defaultSigma         = 1e-6
	defaultTolerance     = 1e-6
	defaultMaxIterations = 4000
)

// ADMMConfig configures an ADMMSolver. Zero values select defaults.
type ADMMConfig struct {
	// Rho is the penalty weight on the constraint split.
	Rho float64
	// Sigma regularizes the objective Hessian so the linear system stays
	// positive definite even when Q is only positive semidefinite.
	Sigma float64
	// Tolerance bounds the infinity norm of the primal and dual residuals.
	Tolerance float64
	// MaxIterations caps the number of splitting iterations per solve.
	MaxIterations int
}

func (cfg ADMMConfig) withDefaults() ADMMConfig {
	if cfg.Rho == 0 {
		cfg.Rho = defaultRho
	}
	if cfg.Sigma == 0 {
		cfg.Sigma = defaultSigma
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = defaultTolerance
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	return cfg
}

// ADMMSolver solves quadratic programs by operator splitting. The inequality
// and box constraints are stacked as l ≤ Ax ≤ u with A = [G; I], and each
// iteration alternates a regularized linear solve with a projection onto the
// constraint interval. The linear system is factored once per Solve.
type ADMMSolver struct {
	cfg    ADMMConfig
	logger logging.Logger
}

// NewADMMSolver returns a pure Go solver with the given configuration.
func NewADMMSolver(cfg ADMMConfig, logger logging.Logger) *ADMMSolver {
	return &ADMMSolver{cfg: cfg.withDefaults(), logger: logger}
}

// Solve implements Solver. It returns a wrapped ErrSolveFailed when the
// residuals do not converge within MaxIterations.
func (s *ADMMSolver) Solve(ctx context.Context, qc *Coefficients) ([]float64, error) {
	if err := qc.check(); err != nil {
		return nil, err
	}
	cfg := s.cfg
	dim := qc.Dim()
	ineqDim := qc.IneqDim()
	total := ineqDim + dim

	// Constraint interval of the stacked system. The inequality rows are
	// one-sided, the box rows carry the variable bounds.
	low := make([]float64, total)
	high := make([]float64, total)
	for i := 0; i < ineqDim; i++ {
		low[i] = math.Inf(-1)
		high[i] = qc.IneqVec[i]
	}
	for i := 0; i < dim; i++ {
		low[ineqDim+i] = qc.XMin[i]
		high[ineqDim+i] = qc.XMax[i]
	}

	// Q + σI + ρAᵀA with AᵀA = GᵀG + I.
	var gtg mat.Dense
	if ineqDim > 0 {
		gtg.Mul(qc.IneqMat.T(), qc.IneqMat)
	}
	kkt := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			v := qc.ObjMat.At(i, j)
			if ineqDim > 0 {
				v += cfg.Rho * gtg.At(i, j)
			}
			if i == j {
				v += cfg.Sigma + cfg.Rho
			}
			kkt.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(kkt) {
		return nil, errors.Wrap(ErrSolveFailed, "stacked system is not positive definite")
	}

	x := make([]float64, dim)
	z := make([]float64, total)
	y := make([]float64, total)
	ax := make([]float64, total)
	rhs := mat.NewVecDense(dim, nil)
	sol := mat.NewVecDense(dim, nil)

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// x-update: solve (Q + σI + ρAᵀA) x = σx − c + Aᵀ(ρz − y).
		for j := 0; j < dim; j++ {
			v := cfg.Sigma*x[j] - qc.ObjVec[j]
			v += cfg.Rho*z[ineqDim+j] - y[ineqDim+j]
			for i := 0; i < ineqDim; i++ {
				v += qc.IneqMat.At(i, j) * (cfg.Rho*z[i] - y[i])
			}
			rhs.SetVec(j, v)
		}
		if err := chol.SolveVecTo(sol, rhs); err != nil {
			return nil, errors.Wrap(ErrSolveFailed, err.Error())
		}
		for j := 0; j < dim; j++ {
			x[j] = sol.AtVec(j)
		}

		// z-update: project Ax + y/ρ onto [l, u].
		for i := 0; i < ineqDim; i++ {
			v := 0.0
			for j := 0; j < dim; j++ {
				v += qc.IneqMat.At(i, j) * x[j]
			}
			ax[i] = v
		}
		copy(ax[ineqDim:], x)
		primal := 0.0
		for i := 0; i < total; i++ {
			z[i] = math.Min(math.Max(ax[i]+y[i]/cfg.Rho, low[i]), high[i])
			if r := math.Abs(ax[i] - z[i]); r > primal {
				primal = r
			}
		}

		// Dual update.
		for i := 0; i < total; i++ {
			y[i] += cfg.Rho * (ax[i] - z[i])
		}

		// Stationarity residual ‖Qx + c + Aᵀy‖∞.
		dual := 0.0
		for j := 0; j < dim; j++ {
			v := qc.ObjVec[j] + y[ineqDim+j]
			for k := 0; k < dim; k++ {
				v += qc.ObjMat.At(j, k) * x[k]
			}
			for i := 0; i < ineqDim; i++ {
				v += qc.IneqMat.At(i, j) * y[i]
			}
			if a := math.Abs(v); a > dual {
				dual = a
			}
		}

		if primal <= cfg.Tolerance && dual <= cfg.Tolerance {
			if s.logger != nil {
				s.logger.Debugf("QP converged after %d iterations (primal %.3g dual %.3g)", iter+1, primal, dual)
			}
			out := make([]float64, dim)
			copy(out, x)
			return out, nil
		}
	}
	return nil, errors.Wrapf(ErrSolveFailed, "no convergence after %d iterations", cfg.MaxIterations)
}
