package solver

import (
	"math"
	"testing"
)

func TestDivergenceZeroAtTheta(t *testing.T) {
	theta := []float64{0.3, 0.4, 0.3}
	d := Divergence(theta, theta)
	if math.Abs(d) > 1e-9 {
		t.Errorf("expected D(theta||theta) ~ 0, got %f", d)
	}
}

func TestLinearOracleExactlyOneTrue(t *testing.T) {
	// Mutually-exclusive 3-outcome market: constraint sum(x) <= 1.
	constraints := []Constraint{{Coeffs: []float64{1, 1, 1}, Bound: 1}}

	g := []float64{-1, 0.5, 0.2}
	v, err := LinearOracle(g, constraints)
	if err != nil {
		t.Fatalf("oracle: %v", err)
	}
	if v[0] != 1 || v[1] != 0 || v[2] != 0 {
		t.Errorf("expected vertex picking the most negative coefficient, got %v", v)
	}
}

func TestLinearOracleInfeasible(t *testing.T) {
	constraints := []Constraint{{Coeffs: []float64{1, 1}, Bound: -1}}
	_, err := LinearOracle([]float64{1, 1}, constraints)
	if err == nil {
		t.Fatal("expected infeasible error")
	}
}

func TestFrankWolfeConvergesOnMutuallyExclusive(t *testing.T) {
	theta := []float64{0.5, 0.3, 0.1}
	constraints := []Constraint{{Coeffs: []float64{1, 1, 1}, Bound: 1}}

	res, err := FrankWolfe(theta, constraints, nil, 50, 1e-6)
	if err != nil {
		t.Fatalf("frank-wolfe: %v", err)
	}
	sum := res.Mu[0] + res.Mu[1] + res.Mu[2]
	if sum > 1+1e-3 {
		t.Errorf("expected projected mu to respect sum<=1, got sum=%f", sum)
	}
}

func TestFrankWolfeWarmStartReusesPriorSolution(t *testing.T) {
	theta := []float64{0.4, 0.4, 0.4}
	constraints := []Constraint{{Coeffs: []float64{1, 1, 1}, Bound: 1}}

	first, err := FrankWolfe(theta, constraints, nil, 50, 1e-6)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	second, err := FrankWolfe(theta, constraints, first.Mu, 50, 1e-6)
	if err != nil {
		t.Fatalf("warm-started run: %v", err)
	}
	if second.Iters > first.Iters {
		t.Errorf("expected warm start to converge no slower, first=%d second=%d", first.Iters, second.Iters)
	}
}
