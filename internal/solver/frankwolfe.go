package solver

import "fmt"

// FWProblem describes one Frank-Wolfe combinatorial-arbitrage search: find
// the distribution mu in the simplex, subject to the cluster's linear
// constraints, that minimizes the Bregman divergence to the observed
// market prices theta.
type FWProblem struct {
	Theta         []float64
	EqConstraints [][]float64
	EqRHS         []float64
	LeConstraints [][]float64
	LeRHS         []float64
	GeConstraints [][]float64
	GeRHS         []float64
	// WarmStart seeds mu from the previous detection round's solution, if
	// its length matches len(Theta); otherwise the uniform distribution is
	// used.
	WarmStart []float64
}

// FWConfig tunes the optimizer's stopping criteria.
type FWConfig struct {
	MaxIters  int
	Tolerance float64
}

// DefaultFWConfig is a reasonable default for small (tens of variables)
// clusters.
func DefaultFWConfig() FWConfig {
	return FWConfig{MaxIters: 100, Tolerance: 1e-6}
}

// FWResult is the optimizer's output: the distribution found, the
// resulting Bregman divergence (the maximum arbitrage profit per the
// solver's duality), and how many iterations it took.
type FWResult struct {
	Mu         []float64
	Gap        float64
	Iterations int
}

// FrankWolfe runs the conditional-gradient method to (approximately)
// minimize D(mu||theta) over the simplex intersected with p's linear
// constraints. At each step it calls SolveLP to find the vertex s
// minimizing the linearized objective (the gradient), then moves mu
// toward s by the standard 2/(k+2) step size.
func FrankWolfe(p FWProblem, cfg FWConfig) (FWResult, error) {
	n := len(p.Theta)
	if n == 0 {
		return FWResult{}, fmt.Errorf("solver: FrankWolfe requires a non-empty theta")
	}
	if cfg.MaxIters <= 0 {
		cfg.MaxIters = DefaultFWConfig().MaxIters
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultFWConfig().Tolerance
	}

	mu := make([]float64, n)
	if len(p.WarmStart) == n {
		copy(mu, p.WarmStart)
		projectToSimplex(mu)
	} else {
		for i := range mu {
			mu[i] = 1.0 / float64(n)
		}
	}

	eqCoeffs := append(cloneRows(p.EqConstraints), simplexRow(n))
	eqRHS := append(append([]float64(nil), p.EqRHS...), 1.0)

	iterations := 0
	for k := 0; k < cfg.MaxIters; k++ {
		iterations = k + 1
		grad := BregmanGradient(mu, p.Theta)

		lpResult, err := SolveLP(LPProblem{
			NumVars:       n,
			Objective:     grad,
			EqConstraints: eqCoeffs,
			EqRHS:         eqRHS,
			LeConstraints: p.LeConstraints,
			LeRHS:         p.LeRHS,
			GeConstraints: p.GeConstraints,
			GeRHS:         p.GeRHS,
		})
		if err != nil {
			return FWResult{}, err
		}
		if lpResult.Status != LPOptimal {
			return FWResult{}, fmt.Errorf("solver: cluster constraints are %s", lpResult.Status)
		}
		s := lpResult.Values

		gap := 0.0
		for i := range mu {
			gap += grad[i] * (mu[i] - s[i])
		}
		if gap < cfg.Tolerance {
			break
		}

		gamma := 2.0 / float64(k+2)
		for i := range mu {
			mu[i] += gamma * (s[i] - mu[i])
		}
	}

	return FWResult{
		Mu:         mu,
		Gap:        BregmanDivergence(mu, p.Theta),
		Iterations: iterations,
	}, nil
}

func simplexRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = 1
	}
	return row
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

// projectToSimplex clamps negative entries to zero and renormalizes so
// the vector sums to 1, used to sanitize an externally supplied warm
// start before it's used as mu's initial value.
func projectToSimplex(v []float64) {
	sum := 0.0
	for i, x := range v {
		if x < 0 {
			v[i] = 0
			x = 0
		}
		sum += x
	}
	if sum <= 0 {
		uniform := 1.0 / float64(len(v))
		for i := range v {
			v[i] = uniform
		}
		return
	}
	for i := range v {
		v[i] /= sum
	}
}
