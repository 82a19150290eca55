//go:build windows || no_cgo

package kinematics

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

// NloptIK mimics the type in the cgo compiled code.
type NloptIK struct{}

// NewNloptIK is not supported on no_cgo builds.
func NewNloptIK(frame Frame, cfg IKConfig, logger logging.Logger) (*NloptIK, error) {
	return nil, errors.New("nlopt is not supported on this build")
}

// Solve refuses to solve problems without cgo.
func (ik *NloptIK) Solve(ctx context.Context, goal spatialmath.Pose, seed []float64) ([]float64, float64, error) {
	return nil, 0, errors.New("nlopt is not supported on this build")
}
