package sim

import (
	"fmt"
	"sort"
)

// ScoreFunc combines a state's raw values and its constraint penalty into
// one comparable score. Higher is better.
type ScoreFunc func(s State, penalty float64) float64

// Scorer is a named scoring strategy. The name is stored on every run so
// replays and explanations refer to the formula that produced them.
type Scorer struct {
	Name string
	Fn   ScoreFunc
}

const (
	ScoringSumMinusPenalty = "sum_minus_penalty"
	ScoringWeightedPenalty = "weighted_penalty"
)

// PenaltyWeight is the multiplier applied by the weighted_penalty scorer.
const PenaltyWeight = 10.0

// DefaultScorer is sum(values) - penalty.
var DefaultScorer = Scorer{
	Name: ScoringSumMinusPenalty,
	Fn: func(s State, penalty float64) float64 {
		return s.Sum() - penalty
	},
}

var scorers = map[string]Scorer{
	ScoringSumMinusPenalty: DefaultScorer,
	ScoringWeightedPenalty: {
		Name: ScoringWeightedPenalty,
		Fn: func(s State, penalty float64) float64 {
			return s.Sum() - PenaltyWeight*penalty
		},
	},
}

// LookupScorer resolves a scorer by name. The empty name selects the default.
func LookupScorer(name string) (Scorer, error) {
	if name == "" {
		return DefaultScorer, nil
	}
	sc, ok := scorers[name]
	if !ok {
		return Scorer{}, fmt.Errorf("%w: unknown scoring function %q (available: %v)", ErrInvalidParams, name, ScorerNames())
	}
	return sc, nil
}

// ScorerNames lists the registered scoring functions in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for n := range scorers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
