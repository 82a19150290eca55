//go:build windows || no_cgo

package qpsolver

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/logging"
)

// SLSQPConfig configures an SLSQPSolver. Zero values select defaults.
type SLSQPConfig struct {
	FtolAbs        float64
	MaxEvaluations int
}

// SLSQPSolver mimics the type in the cgo compiled code.
type SLSQPSolver struct{}

// NewSLSQPSolver is not supported on no_cgo builds.
func NewSLSQPSolver(cfg SLSQPConfig, logger logging.Logger) (*SLSQPSolver, error) {
	return nil, errors.New("nlopt is not supported on this build")
}

// Solve refuses to solve problems without cgo.
func (s *SLSQPSolver) Solve(ctx context.Context, qc *Coefficients) ([]float64, error) {
	return nil, errors.New("nlopt is not supported on this build")
}
