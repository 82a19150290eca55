package rmap

import (
	"context"
	"math"

	"github.com/mmurooka/differentiable-rmap/logging"
)

// solveSMO minimizes the C-SVC dual
//
//	1/2 a^T Q a - e^T a  with  0 <= a_i <= Cost,  y^T a = 0,  Q_ij = y_i y_j K_ij
//
// by sequential minimal optimization on the maximal violating pair. It
// returns the multipliers and the decision bias rho.
func solveSMO(ctx context.Context, inputs [][]float64, y []float64, cfg TrainConfig, logger logging.Logger) ([]float64, float64, error) {
	n := len(inputs)
	kernel := make([]float64, n*n)
	for i := 0; i < n; i++ {
		kernel[i*n+i] = 1
		for j := i + 1; j < n; j++ {
			k := rbf(cfg.Gamma, inputs[i], inputs[j])
			kernel[i*n+j] = k
			kernel[j*n+i] = k
		}
	}

	alpha := make([]float64, n)
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}

	const tau = 1e-12
	iter := 0
	for ; iter < cfg.MaxIterations; iter++ {
		if iter%256 == 0 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			default:
			}
		}

		i, j, gap := selectViolatingPair(alpha, grad, y, cfg.Cost)
		if i < 0 || gap < cfg.Tolerance {
			break
		}

		kii := kernel[i*n+i]
		kjj := kernel[j*n+j]
		kij := kernel[i*n+j]
		quad := kii + kjj - 2*kij
		if quad <= 0 {
			quad = tau
		}
		oldAi, oldAj := alpha[i], alpha[j]
		c := cfg.Cost

		if y[i] != y[j] {
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
				if alpha[i] > c {
					alpha[i] = c
					alpha[j] = c - diff
				}
			} else {
				if alpha[i] < 0 {
					alpha[i] = 0
					alpha[j] = -diff
				}
				if alpha[j] > c {
					alpha[j] = c
					alpha[i] = c + diff
				}
			}
		} else {
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > c {
				if alpha[i] > c {
					alpha[i] = c
					alpha[j] = sum - c
				}
				if alpha[j] > c {
					alpha[j] = c
					alpha[i] = sum - c
				}
			} else {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = sum
				}
				if alpha[i] < 0 {
					alpha[i] = 0
					alpha[j] = sum
				}
			}
		}

		dAi := alpha[i] - oldAi
		dAj := alpha[j] - oldAj
		for t := 0; t < n; t++ {
			grad[t] += y[t] * (y[i]*kernel[i*n+t]*dAi + y[j]*kernel[j*n+t]*dAj)
		}
	}
	if iter >= cfg.MaxIterations {
		logger.Warnf("optimizer hit the iteration limit (%d), using current multipliers", cfg.MaxIterations)
	} else {
		logger.Debugf("optimizer converged after %d iterations", iter)
	}

	return alpha, calculateRho(alpha, grad, y, cfg.Cost), nil
}

// selectViolatingPair picks the maximal violating pair (i from the up set, j
// from the low set) and the KKT gap between them. i is -1 when either set is
// empty.
func selectViolatingPair(alpha, grad, y []float64, c float64) (int, int, float64) {
	i, j := -1, -1
	m, bigM := math.Inf(-1), math.Inf(1)
	for t := range y {
		v := -y[t] * grad[t]
		if (y[t] > 0 && alpha[t] < c) || (y[t] < 0 && alpha[t] > 0) {
			if v > m {
				m = v
				i = t
			}
		}
		if (y[t] > 0 && alpha[t] > 0) || (y[t] < 0 && alpha[t] < c) {
			if v < bigM {
				bigM = v
				j = t
			}
		}
	}
	if i < 0 || j < 0 {
		return -1, -1, 0
	}
	return i, j, m - bigM
}

// calculateRho averages y_i*grad_i over the free support vectors, falling
// back to the midpoint of the bound multipliers' interval.
func calculateRho(alpha, grad, y []float64, c float64) float64 {
	upper, lower := math.Inf(1), math.Inf(-1)
	var sumFree float64
	var numFree int
	for t := range y {
		yg := y[t] * grad[t]
		switch {
		case alpha[t] >= c:
			if y[t] < 0 {
				upper = math.Min(upper, yg)
			} else {
				lower = math.Max(lower, yg)
			}
		case alpha[t] <= 0:
			if y[t] > 0 {
				upper = math.Min(upper, yg)
			} else {
				lower = math.Max(lower, yg)
			}
		default:
			numFree++
			sumFree += yg
		}
	}
	if numFree > 0 {
		return sumFree / float64(numFree)
	}
	return (upper + lower) / 2
}
