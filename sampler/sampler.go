// Package sampler generates labeled sample sets for reachability maps.
package sampler

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/sampleset"
)

// Sampler generates a labeled sample set.
type Sampler interface {
	Run(ctx context.Context) (*sampleset.Set, error)
}

// Publisher receives the partial set while generation is in progress.
// Implementations must not mutate the set.
type Publisher interface {
	Publish(set *sampleset.Set)
}

// Config holds the settings shared by all samplers. Zero values are invalid
// except where noted.
type Config struct {
	// NumSamples is the total number of samples to generate.
	NumSamples int
	// PublishInterval is the number of samples between progress
	// publications. Zero disables publishing.
	PublishInterval int
	// Publisher receives the partial set every PublishInterval samples.
	// May be nil.
	Publisher Publisher
	// Seed seeds the sample generator.
	Seed int64
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	if cfg.NumSamples <= 0 {
		return errors.New("num_samples must be positive")
	}
	if cfg.PublishInterval < 0 {
		return errors.New("publish_interval cannot be negative")
	}
	return nil
}

func (cfg Config) publishProgress(set *sampleset.Set, idx int) {
	if cfg.Publisher == nil || cfg.PublishInterval <= 0 {
		return
	}
	if idx%cfg.PublishInterval == 0 {
		cfg.Publisher.Publish(set)
	}
}
