package sim

import (
	"fmt"
	"math"
	"strings"
)

// Constraints maps constraint keys (max_<attr> / min_<attr>) to bounds.
type Constraints map[string]float64

// ConstraintKind is the bound direction encoded in a constraint key prefix.
type ConstraintKind string

const (
	ConstraintMax ConstraintKind = "max"
	ConstraintMin ConstraintKind = "min"
)

// Constraint is a parsed, validated bound check on one attribute.
type Constraint struct {
	Key   string
	Kind  ConstraintKind
	Attr  string
	Bound float64
}

// Violation returns how far value lies outside the bound, or 0.
func (c Constraint) Violation(value float64) float64 {
	switch c.Kind {
	case ConstraintMax:
		return math.Max(0, value-c.Bound)
	case ConstraintMin:
		return math.Max(0, c.Bound-value)
	}
	return 0
}

// ParseConstraints validates every key against the initial state and
// returns the constraints in key order.
func ParseConstraints(cs Constraints, initial State) ([]Constraint, error) {
	out := make([]Constraint, 0, len(cs))
	for _, key := range sortedKeys(cs) {
		bound := cs[key]

		var kind ConstraintKind
		var attr string
		switch {
		case strings.HasPrefix(key, "max_"):
			kind, attr = ConstraintMax, strings.TrimPrefix(key, "max_")
		case strings.HasPrefix(key, "min_"):
			kind, attr = ConstraintMin, strings.TrimPrefix(key, "min_")
		default:
			return nil, fmt.Errorf("%w: constraint %q must start with max_ or min_", ErrInvalidParams, key)
		}

		if attr == "" {
			return nil, fmt.Errorf("%w: constraint %q names no attribute", ErrInvalidParams, key)
		}
		if _, ok := initial[attr]; !ok {
			return nil, fmt.Errorf("%w: constraint %q references unknown attribute %q", ErrInvalidParams, key, attr)
		}
		if !isFinite(bound) {
			return nil, fmt.Errorf("%w: constraint %q has a non-finite bound", ErrInvalidParams, key)
		}

		out = append(out, Constraint{Key: key, Kind: kind, Attr: attr, Bound: bound})
	}
	return out, nil
}

// Penalty sums the violations of every constraint. It is never negative.
func Penalty(s State, constraints []Constraint) float64 {
	var total float64
	for _, c := range constraints {
		total += c.Violation(s[c.Attr])
	}
	return total
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
