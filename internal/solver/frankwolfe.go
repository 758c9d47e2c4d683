package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Result is the outcome of a Frank-Wolfe projection: the final
// iterate, the duality gap at termination, and whether it converged
// within tolerance (false means it stopped at MaxIterations).
type Result struct {
	Mu        []float64
	Gap       float64
	Converged bool
	Iters     int
}

// FrankWolfe projects theta onto the polytope defined by constraints
// under the KL-style Bregman divergence, starting from warmStart if
// given and non-empty, else from theta itself (or the oracle's first
// feasible vertex if theta is infeasible).
func FrankWolfe(theta []float64, constraints []Constraint, warmStart []float64, maxIterations int, tolerance float64) (Result, error) {
	k := len(theta)
	mu := make([]float64, k)

	switch {
	case len(warmStart) == k:
		copy(mu, warmStart)
	case feasible(theta, constraints):
		copy(mu, theta)
	default:
		zero := make([]float64, k)
		v, err := LinearOracle(zero, constraints)
		if err != nil {
			return Result{}, fmt.Errorf("initial feasibility: %w", err)
		}
		copy(mu, v)
	}

	var gap float64
	for iter := 0; iter < maxIterations; iter++ {
		g := Gradient(mu, theta)
		v, err := LinearOracle(g, constraints)
		if err != nil {
			return Result{Mu: mu, Gap: gap, Iters: iter}, err
		}

		diff := make([]float64, k)
		floats.SubTo(diff, mu, v)
		gap = dot(g, diff)
		if gap < tolerance {
			return Result{Mu: mu, Gap: gap, Converged: true, Iters: iter}, nil
		}

		alpha := lineSearch(mu, v, theta)
		for i := range mu {
			mu[i] = mu[i] + alpha*(v[i]-mu[i])
		}
	}

	return Result{Mu: mu, Gap: gap, Converged: false, Iters: maxIterations}, nil
}

// lineSearch picks alpha in [0,1] minimizing D(mu+alpha(v-mu) || theta)
// by golden-section search; the divergence is convex in alpha along
// this segment so this converges quickly without a closed form.
func lineSearch(mu, v, theta []float64) float64 {
	const phi = 0.6180339887498949
	a, b := 0.0, 1.0
	k := len(mu)
	point := func(alpha float64) []float64 {
		p := make([]float64, k)
		for i := 0; i < k; i++ {
			p[i] = mu[i] + alpha*(v[i]-mu[i])
		}
		return p
	}
	objective := func(alpha float64) float64 {
		return Divergence(point(alpha), theta)
	}

	c := b - phi*(b-a)
	d := a + phi*(b-a)
	fc := objective(c)
	fd := objective(d)

	for i := 0; i < 40 && math.Abs(b-a) > 1e-6; i++ {
		if fc < fd {
			b = d
			d = c
			fd = fc
			c = b - phi*(b-a)
			fc = objective(c)
		} else {
			a = c
			c = d
			fc = fd
			d = a + phi*(b-a)
			fd = objective(d)
		}
	}
	return (a + b) / 2
}
