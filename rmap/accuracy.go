package rmap

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/mmurooka/differentiable-rmap/sampleset"
)

// Accuracy counts classification outcomes of a model against a labeled set at
// one decision threshold.
type Accuracy struct {
	TrueReachable    int
	TrueUnreachable  int
	FalseReachable   int
	FalseUnreachable int
}

// Total returns the number of evaluated samples.
func (a Accuracy) Total() int {
	return a.TrueReachable + a.TrueUnreachable + a.FalseReachable + a.FalseUnreachable
}

// Rate returns the fraction of correctly classified samples.
func (a Accuracy) Rate() float64 {
	total := a.Total()
	if total == 0 {
		return 0
	}
	return float64(a.TrueReachable+a.TrueUnreachable) / float64(total)
}

// Precision returns the fraction of predicted-reachable samples that are
// labeled reachable.
func (a Accuracy) Precision() float64 {
	denom := a.TrueReachable + a.FalseReachable
	if denom == 0 {
		return 0
	}
	return float64(a.TrueReachable) / float64(denom)
}

// Recall returns the fraction of labeled-reachable samples predicted
// reachable.
func (a Accuracy) Recall() float64 {
	denom := a.TrueReachable + a.FalseUnreachable
	if denom == 0 {
		return 0
	}
	return float64(a.TrueReachable) / float64(denom)
}

// Evaluate classifies every sample of the set at the given threshold.
func Evaluate(clf *Classifier, set *sampleset.Set, threshold float64) (Accuracy, error) {
	var acc Accuracy
	if set.Kind() != clf.Space().Kind() {
		return acc, errors.Errorf("classifier space %s does not match set space %s",
			clf.Space().Kind(), set.Kind())
	}
	for i := 0; i < set.Len(); i++ {
		sample, reachable := set.At(i)
		predicted := clf.Reachable(sample, threshold)
		switch {
		case reachable && predicted:
			acc.TrueReachable++
		case reachable && !predicted:
			acc.FalseUnreachable++
		case !reachable && predicted:
			acc.FalseReachable++
		default:
			acc.TrueUnreachable++
		}
	}
	return acc, nil
}

// ValueStats summarizes the decision value distribution of one label class.
type ValueStats struct {
	Mean   float64
	Stddev float64
	Min    float64
	Max    float64
	Median float64
}

// SweepPoint is the accuracy at one threshold of a sweep.
type SweepPoint struct {
	Threshold float64
	Accuracy  Accuracy
}

// SweepResult is the outcome of evaluating a classifier over a threshold
// range.
type SweepResult struct {
	Points            []SweepPoint
	ReachableValues   ValueStats
	UnreachableValues ValueStats
}

// Best returns the sweep point with the highest accuracy rate.
func (r *SweepResult) Best() SweepPoint {
	best := r.Points[0]
	for _, p := range r.Points[1:] {
		if p.Accuracy.Rate() > best.Accuracy.Rate() {
			best = p
		}
	}
	return best
}

// EvaluateSweep computes accuracies across thresholds along with per-class
// decision value statistics.
func EvaluateSweep(clf *Classifier, set *sampleset.Set, thresholds []float64) (*SweepResult, error) {
	if len(thresholds) == 0 {
		return nil, errors.New("at least one threshold is required")
	}
	if set.Kind() != clf.Space().Kind() {
		return nil, errors.Errorf("classifier space %s does not match set space %s",
			clf.Space().Kind(), set.Kind())
	}

	values := make([]float64, set.Len())
	var reachableVals, unreachableVals []float64
	labels := make([]bool, set.Len())
	for i := 0; i < set.Len(); i++ {
		sample, reachable := set.At(i)
		values[i] = clf.Value(sample)
		labels[i] = reachable
		if reachable {
			reachableVals = append(reachableVals, values[i])
		} else {
			unreachableVals = append(unreachableVals, values[i])
		}
	}

	result := &SweepResult{}
	for _, threshold := range thresholds {
		var acc Accuracy
		for i, v := range values {
			predicted := v >= threshold
			switch {
			case labels[i] && predicted:
				acc.TrueReachable++
			case labels[i] && !predicted:
				acc.FalseUnreachable++
			case !labels[i] && predicted:
				acc.FalseReachable++
			default:
				acc.TrueUnreachable++
			}
		}
		result.Points = append(result.Points, SweepPoint{Threshold: threshold, Accuracy: acc})
	}

	var err error
	if result.ReachableValues, err = summarize(reachableVals); err != nil {
		return nil, err
	}
	if result.UnreachableValues, err = summarize(unreachableVals); err != nil {
		return nil, err
	}
	return result, nil
}

func summarize(values []float64) (ValueStats, error) {
	if len(values) == 0 {
		return ValueStats{}, nil
	}
	data := stats.Float64Data(values)
	var out ValueStats
	var err error
	if out.Mean, err = stats.Mean(data); err != nil {
		return out, err
	}
	if out.Stddev, err = stats.StandardDeviation(data); err != nil {
		return out, err
	}
	if out.Min, err = stats.Min(data); err != nil {
		return out, err
	}
	if out.Max, err = stats.Max(data); err != nil {
		return out, err
	}
	if out.Median, err = stats.Median(data); err != nil {
		return out, err
	}
	return out, nil
}
