package strategy

import (
	"github.com/edgelord/edgelord/internal/domain"
	"github.com/edgelord/edgelord/internal/solver"
	"github.com/edgelord/edgelord/pkg/ids"
	"github.com/edgelord/edgelord/pkg/money"
)

// legInclusionThreshold is how far mu*_i must exceed theta_i for market i to
// be treated as a leg of the resulting opportunity, guarding against
// emitting legs the solver only nudged by floating-point noise.
const legInclusionThreshold = 1e-6

// CombinatorialConfig tunes the cluster-level detector.
type CombinatorialConfig struct {
	MinGap float64
}

// ClusterMarket is one market's current pricing input to the combinatorial
// solver: its representative ("Yes"-shaped) token, and that token's best
// ask and its volume. Its position in the markets slice is its index within
// the cluster's constraint vectors.
type ClusterMarket struct {
	MarketID ids.MarketId
	TokenID  ids.TokenId
	AskPrice domain.Money
	AskVol   domain.Volume
}

// ClusterDetectionResult is the combinatorial detector's output for one
// cluster evaluation.
type ClusterDetectionResult struct {
	Gap         float64
	Mu          []float64
	Theta       []float64
	Opportunity domain.Opportunity
	SolverState []float64 // warm-start input for the next evaluation
}

// Combinatorial finds, via Frank-Wolfe on the Bregman/KL divergence, the
// target distribution mu* closest to the cluster's observed ask prices
// theta subject to its precompiled linear constraints, and reports the
// gap as an arbitrage opportunity when it clears MinGap.
type Combinatorial struct {
	cfg   CombinatorialConfig
	fwCfg solver.FWConfig
}

// NewCombinatorial constructs the cluster-level detector.
func NewCombinatorial(cfg CombinatorialConfig) *Combinatorial {
	return &Combinatorial{cfg: cfg, fwCfg: solver.DefaultFWConfig()}
}

func (c *Combinatorial) Name() string { return "combinatorial" }

// DetectCluster runs one Frank-Wolfe solve over markets (already sorted to
// match the cluster's constraint index order) and constraints, returning a
// result whenever the divergence gap clears MinGap.
func (c *Combinatorial) DetectCluster(
	question string,
	clusterID ids.ClusterId,
	markets []ClusterMarket,
	constraints []domain.Constraint,
	warmStart []float64,
) (ClusterDetectionResult, bool) {
	n := len(markets)
	if n == 0 {
		return ClusterDetectionResult{}, false
	}

	theta := make([]float64, n)
	sum := 0.0
	for i, m := range markets {
		p, _ := m.AskPrice.Float64()
		theta[i] = p
		sum += p
	}
	if sum <= 0 {
		return ClusterDetectionResult{}, false
	}
	for i := range theta {
		theta[i] /= sum
	}

	problem := solver.FWProblem{Theta: theta, WarmStart: warmStart}
	for _, con := range constraints {
		switch con.Sense {
		case domain.SenseLessEqual:
			problem.LeConstraints = append(problem.LeConstraints, con.Coefficients)
			problem.LeRHS = append(problem.LeRHS, con.RHS)
		case domain.SenseGreaterEqual:
			problem.GeConstraints = append(problem.GeConstraints, con.Coefficients)
			problem.GeRHS = append(problem.GeRHS, con.RHS)
		case domain.SenseEqual:
			problem.EqConstraints = append(problem.EqConstraints, con.Coefficients)
			problem.EqRHS = append(problem.EqRHS, con.RHS)
		}
	}

	result, err := solver.FrankWolfe(problem, c.fwCfg)
	if err != nil {
		return ClusterDetectionResult{}, false
	}
	if result.Gap < c.cfg.MinGap {
		return ClusterDetectionResult{Gap: result.Gap, Mu: result.Mu, Theta: theta, SolverState: result.Mu}, false
	}

	var legs []domain.OpportunityLeg
	totalCost := domain.Zero()
	var volume domain.Volume
	first := true
	for i, m := range markets {
		if result.Mu[i]-theta[i] <= legInclusionThreshold {
			continue
		}
		legs = append(legs, domain.OpportunityLeg{TokenID: m.TokenID, AskPrice: m.AskPrice})
		totalCost = totalCost.Add(m.AskPrice)
		if first || m.AskVol.LessThan(volume) {
			volume = m.AskVol
			first = false
		}
	}
	if len(legs) == 0 {
		return ClusterDetectionResult{Gap: result.Gap, Mu: result.Mu, Theta: theta, SolverState: result.Mu}, false
	}

	// The gap is the divergence's guaranteed per-unit profit: payout is
	// defined as cost plus gap so Opportunity's invariant (payout > cost)
	// holds by construction whenever gap clears MinGap.
	payout := totalCost.Add(money.FromFloat(result.Gap))
	opp, err := domain.NewOpportunity(ids.MarketId(clusterID), question, legs, volume, payout, c.Name())
	// The opportunity's MarketID field carries the cluster ID here; a
	// cluster-level opportunity isn't anchored to one market.
	if err != nil {
		return ClusterDetectionResult{Gap: result.Gap, Mu: result.Mu, Theta: theta, SolverState: result.Mu}, false
	}

	return ClusterDetectionResult{
		Gap:         result.Gap,
		Mu:          result.Mu,
		Theta:       theta,
		Opportunity: opp,
		SolverState: result.Mu,
	}, true
}
