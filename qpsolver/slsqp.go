//go:build !windows && !no_cgo

package qpsolver

import (
	"context"
	"math"

	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/mmurooka/differentiable-rmap/logging"
)

const (
	defaultFtolAbs        = 1e-10
	defaultMaxEvaluations = 500
	constraintTolerance   = 1e-8
)

// SLSQPConfig configures an SLSQPSolver. Zero values select defaults.
type SLSQPConfig struct {
	// FtolAbs is the absolute objective tolerance passed to NLopt.
	FtolAbs float64
	// MaxEvaluations caps the number of objective evaluations per solve.
	MaxEvaluations int
}

func (cfg SLSQPConfig) withDefaults() SLSQPConfig {
	if cfg.FtolAbs == 0 {
		cfg.FtolAbs = defaultFtolAbs
	}
	if cfg.MaxEvaluations == 0 {
		cfg.MaxEvaluations = defaultMaxEvaluations
	}
	return cfg
}

// SLSQPSolver solves quadratic programs with NLopt's sequential least squares
// algorithm. It requires cgo and the system NLopt library.
type SLSQPSolver struct {
	cfg    SLSQPConfig
	logger logging.Logger
}

// NewSLSQPSolver returns a solver backed by NLopt.
func NewSLSQPSolver(cfg SLSQPConfig, logger logging.Logger) (*SLSQPSolver, error) {
	return &SLSQPSolver{cfg: cfg.withDefaults(), logger: logger}, nil
}

// Solve implements Solver.
func (s *SLSQPSolver) Solve(ctx context.Context, qc *Coefficients) ([]float64, error) {
	if err := qc.check(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dim := qc.Dim()
	ineqDim := qc.IneqDim()

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(dim))
	if err != nil {
		return nil, err
	}
	defer opt.Destroy()

	objective := func(x, gradient []float64) float64 {
		val := 0.0
		for i := 0; i < dim; i++ {
			qx := 0.0
			for j := 0; j < dim; j++ {
				qx += qc.ObjMat.At(i, j) * x[j]
			}
			if len(gradient) > 0 {
				gradient[i] = qx + qc.ObjVec[i]
			}
			val += x[i] * (0.5*qx + qc.ObjVec[i])
		}
		return val
	}

	err = multierr.Combine(
		opt.SetMinObjective(objective),
		opt.SetLowerBounds(qc.XMin),
		opt.SetUpperBounds(qc.XMax),
		opt.SetFtolAbs(s.cfg.FtolAbs),
		opt.SetMaxEval(s.cfg.MaxEvaluations),
	)
	if err != nil {
		return nil, err
	}

	if ineqDim > 0 {
		tol := make([]float64, ineqDim)
		for i := range tol {
			tol[i] = constraintTolerance
		}
		constraint := func(result, x, gradient []float64) {
			for i := 0; i < ineqDim; i++ {
				v := -qc.IneqVec[i]
				for j := 0; j < dim; j++ {
					g := qc.IneqMat.At(i, j)
					v += g * x[j]
					if len(gradient) > 0 {
						gradient[i*dim+j] = g
					}
				}
				result[i] = v
			}
		}
		if err := opt.AddInequalityMConstraint(constraint, tol); err != nil {
			return nil, err
		}
	}

	// Start from zero clipped into the bounds.
	seed := make([]float64, dim)
	for i := range seed {
		seed[i] = math.Min(math.Max(0, qc.XMin[i]), qc.XMax[i])
	}
	solution, _, nloptErr := opt.Optimize(seed)
	if nloptErr != nil {
		return nil, errors.Wrap(ErrSolveFailed, nloptErr.Error())
	}
	return solution, nil
}
