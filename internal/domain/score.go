package domain

import "github.com/edgelord/edgelord/pkg/ids"

// ScoreFactors are the five normalized [0,1] inputs to a market's priority
// score: how liquid it is, how tight its spread is, how often it has
// produced opportunities historically, how many outcomes it has, and how
// recently active it's been.
type ScoreFactors struct {
	Liquidity    float64
	Spread       float64
	Opportunity  float64
	OutcomeCount float64
	Activity     float64
}

// ScoreWeights weights each factor when combining into a composite score.
type ScoreWeights struct {
	Liquidity    float64
	Spread       float64
	Opportunity  float64
	OutcomeCount float64
	Activity     float64
}

// DefaultScoreWeights weights every factor equally.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Liquidity: 1, Spread: 1, Opportunity: 1, OutcomeCount: 1, Activity: 1}
}

// Composite computes the weighted average of the factors under w.
func (f ScoreFactors) Composite(w ScoreWeights) float64 {
	weightedSum := f.Liquidity*w.Liquidity + f.Spread*w.Spread + f.Opportunity*w.Opportunity +
		f.OutcomeCount*w.OutcomeCount + f.Activity*w.Activity
	weightSum := w.Liquidity + w.Spread + w.Opportunity + w.OutcomeCount + w.Activity
	if weightSum == 0 {
		return 0
	}
	return weightedSum / weightSum
}

// MarketScore is a market's computed priority score and its contributing
// factors, used to order the subscription manager's pending queue.
type MarketScore struct {
	MarketID  ids.MarketId
	Factors   ScoreFactors
	Composite float64
}

// NewMarketScore computes the composite from factors and weights.
func NewMarketScore(marketID ids.MarketId, factors ScoreFactors, weights ScoreWeights) MarketScore {
	return MarketScore{MarketID: marketID, Factors: factors, Composite: factors.Composite(weights)}
}
