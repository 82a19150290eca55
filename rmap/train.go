package rmap

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/sampleset"
	"github.com/mmurooka/differentiable-rmap/sampling"
)

// Training errors.
var (
	ErrNoSamples   = errors.New("cannot train on an empty sample set")
	ErrSingleClass = errors.New("cannot train on a single-class sample set")
)

const (
	defaultCost          = 1000.
	defaultTolerance     = 1e-3
	defaultMaxIterations = 100000
	// alphas below this are treated as zero when extracting support vectors
	supportVectorEps = 1e-12
)

// TrainConfig holds the kernel and optimizer parameters for training.
type TrainConfig struct {
	// Gamma is the RBF kernel width. Zero selects 1/inputDim.
	Gamma float64 `json:"gamma"`
	// Cost is the soft margin penalty.
	Cost float64 `json:"cost"`
	// Tolerance is the KKT violation the optimizer drives the pair gap below.
	Tolerance float64 `json:"tolerance"`
	// MaxIterations bounds the optimizer; training proceeds with the current
	// state if it is reached.
	MaxIterations int `json:"max_iterations"`
}

func (cfg TrainConfig) withDefaults(inputDim int) TrainConfig {
	if cfg.Gamma <= 0 {
		cfg.Gamma = 1 / float64(inputDim)
	}
	if cfg.Cost <= 0 {
		cfg.Cost = defaultCost
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaultTolerance
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	return cfg
}

// Train fits a reachability classifier to a labeled sample set. The set must
// contain both reachable and unreachable samples.
func Train(ctx context.Context, set *sampleset.Set, cfg TrainConfig, logger logging.Logger) (*Classifier, error) {
	if set.Len() == 0 {
		return nil, ErrNoSamples
	}
	if set.NumReachable() == 0 || set.NumUnreachable() == 0 {
		return nil, ErrSingleClass
	}
	space := set.Space()
	cfg = cfg.withDefaults(space.InputDim())

	samples, labels := set.Ordered()
	inputs := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		inputs[i] = space.SampleToInput(s)
		if labels[i] {
			y[i] = 1
		} else {
			y[i] = -1
		}
	}

	logger.Debugw("training reachability classifier",
		"space", space.Kind().String(),
		"samples", len(samples),
		"reachable", set.NumReachable(),
		"gamma", cfg.Gamma,
		"cost", cfg.Cost,
	)

	alpha, rho, err := solveSMO(ctx, inputs, y, cfg, logger)
	if err != nil {
		return nil, err
	}

	model := &Model{Kind: space.Kind(), Gamma: cfg.Gamma, Rho: rho}
	for i, a := range alpha {
		if a > supportVectorEps {
			model.SupportVectors = append(model.SupportVectors, inputs[i])
			model.Coefficients = append(model.Coefficients, a*y[i])
		}
	}
	logger.Debugf("trained with %d support vectors of %d samples", len(model.SupportVectors), len(samples))

	return NewClassifier(model)
}
