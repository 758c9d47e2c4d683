// Package solver implements the Bregman-divergence projection used by
// the combinatorial strategy: a Frank-Wolfe loop over a linear
// oracle solving an integer program on the cluster's marginal
// polytope.
package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// epsilon guards log(0)/div-by-0 when clamping prices into (0, 1).
const epsilon = 1e-9

// clamp restricts x to [epsilon, 1-epsilon].
func clamp(x float64) float64 {
	if x < epsilon {
		return epsilon
	}
	if x > 1-epsilon {
		return 1 - epsilon
	}
	return x
}

// Divergence computes the KL-style Bregman divergence
// D(mu||theta) = sum mu_i*ln(mu_i/theta_i) - mu_i + theta_i.
func Divergence(mu, theta []float64) float64 {
	var d float64
	for i := range mu {
		m := clamp(mu[i])
		t := clamp(theta[i])
		d += m*math.Log(m/t) - m + t
	}
	return d
}

// Gradient computes grad D(mu) = ln(mu/theta), elementwise.
func Gradient(mu, theta []float64) []float64 {
	g := make([]float64, len(mu))
	for i := range mu {
		m := clamp(mu[i])
		t := clamp(theta[i])
		g[i] = math.Log(m / t)
	}
	return g
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}
