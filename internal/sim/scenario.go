package sim

import (
	"fmt"
	"strconv"
	"strings"
)

// DecodeScenario converts a loosely typed scenario object (decoded from
// JSON tool arguments or a YAML file) into a validated Scenario.
//
// Custom actions accept two shapes:
//
//	{"name": "boost", "delta": {"x": 2, "y": -1}, "set": {"z": 0}}
//	{"type": "increment", "field": "x", "delta": 2}
//
// The second form also allows "decrement" and "set" (with "value").
func DecodeScenario(raw any) (Scenario, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Scenario{}, fmt.Errorf("%w: scenario must be an object", ErrInvalidParams)
	}

	rawState, ok := obj["initial_state"]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: scenario must contain 'initial_state'", ErrInvalidParams)
	}
	initial, err := decodeNumberMap(rawState, "initial_state")
	if err != nil {
		return Scenario{}, err
	}

	sc := Scenario{InitialState: initial, Step: DefaultStep}

	if rawStep, ok := obj["step"]; ok {
		step, ok := toFloat(rawStep)
		if !ok || !isFinite(step) || step <= 0 {
			return Scenario{}, fmt.Errorf("%w: scenario 'step' must be a positive number", ErrInvalidParams)
		}
		sc.Step = step
	}

	if rawActions, ok := obj["actions"]; ok && rawActions != nil {
		list, ok := rawActions.([]any)
		if !ok {
			return Scenario{}, fmt.Errorf("%w: scenario 'actions' must be an array", ErrInvalidParams)
		}
		for i, item := range list {
			a, err := decodeAction(item, i)
			if err != nil {
				return Scenario{}, err
			}
			sc.Actions = append(sc.Actions, a)
		}
	}

	if err := ValidateScenario(sc); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// DecodeConstraints converts a loosely typed constraint object. A nil
// input yields an empty set.
func DecodeConstraints(raw any) (Constraints, error) {
	if raw == nil {
		return Constraints{}, nil
	}
	m, err := decodeNumberMap(raw, "constraints")
	if err != nil {
		return nil, err
	}
	return Constraints(m), nil
}

// ValidateScenario checks the invariants the engine relies on: a
// non-empty finite initial state and custom actions that only touch
// known attributes under unique labels.
func ValidateScenario(sc Scenario) error {
	if len(sc.InitialState) == 0 {
		return fmt.Errorf("%w: 'initial_state' must contain at least one attribute", ErrInvalidParams)
	}
	for _, k := range sc.InitialState.Keys() {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: 'initial_state' has an empty attribute name", ErrInvalidParams)
		}
		if !isFinite(sc.InitialState[k]) {
			return fmt.Errorf("%w: 'initial_state.%s' is not finite", ErrInvalidParams, k)
		}
	}
	if sc.Step < 0 || !isFinite(sc.Step) {
		return fmt.Errorf("%w: step must be a positive number", ErrInvalidParams)
	}

	labels := map[string]bool{InitialAction: true}
	for _, a := range DefaultActions(sc.InitialState, 1) {
		labels[a.Label()] = true
	}
	for _, a := range sc.Actions {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("%w: custom action has no name", ErrInvalidParams)
		}
		if labels[a.Name] {
			return fmt.Errorf("%w: action name %q is already in use", ErrInvalidParams, a.Name)
		}
		labels[a.Name] = true

		if len(a.Deltas) == 0 && len(a.Sets) == 0 {
			return fmt.Errorf("%w: action %q changes no attribute", ErrInvalidParams, a.Name)
		}
		for _, m := range []map[string]float64{a.Deltas, a.Sets} {
			for _, attr := range sortedKeys(m) {
				if _, ok := sc.InitialState[attr]; !ok {
					return fmt.Errorf("%w: action %q references unknown attribute %q", ErrInvalidParams, a.Name, attr)
				}
				if !isFinite(m[attr]) {
					return fmt.Errorf("%w: action %q has a non-finite value for %q", ErrInvalidParams, a.Name, attr)
				}
			}
		}
	}
	return nil
}

func decodeAction(raw any, idx int) (Action, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Action{}, fmt.Errorf("%w: actions[%d] must be an object", ErrInvalidParams, idx)
	}
	name, _ := obj["name"].(string)

	// {"type": ..., "field": ...} shorthand.
	if typ, ok := obj["type"].(string); ok {
		field, _ := obj["field"].(string)
		if field == "" {
			return Action{}, fmt.Errorf("%w: actions[%d] needs a 'field'", ErrInvalidParams, idx)
		}
		// Unnamed shorthands are labelled with their operand so they never
		// collide with the default increment(x)/decrement(x) pair.
		a := Action{Kind: KindCustom}
		var label string
		switch typ {
		case "increment", "decrement":
			delta := 1.0
			if rd, ok := obj["delta"]; ok {
				if delta, ok = toFloat(rd); !ok {
					return Action{}, fmt.Errorf("%w: actions[%d].delta must be a number", ErrInvalidParams, idx)
				}
			}
			label = fmt.Sprintf("%s(%s,%s)", typ, field, formatNumber(delta))
			if typ == "decrement" {
				delta = -delta
			}
			a.Deltas = map[string]float64{field: delta}
		case "set":
			value, ok := toFloat(obj["value"])
			if !ok {
				return Action{}, fmt.Errorf("%w: actions[%d].value must be a number", ErrInvalidParams, idx)
			}
			label = fmt.Sprintf("set(%s,%s)", field, formatNumber(value))
			a.Sets = map[string]float64{field: value}
		default:
			return Action{}, fmt.Errorf("%w: actions[%d] has unknown type %q", ErrInvalidParams, idx, typ)
		}
		a.Name = name
		if a.Name == "" {
			a.Name = label
		}
		return a, nil
	}

	if name == "" {
		return Action{}, fmt.Errorf("%w: actions[%d] needs a 'name'", ErrInvalidParams, idx)
	}
	a := Action{Name: name, Kind: KindCustom}
	if rd, ok := obj["delta"]; ok {
		m, err := decodeNumberMap(rd, fmt.Sprintf("actions[%d].delta", idx))
		if err != nil {
			return Action{}, err
		}
		a.Deltas = m
	}
	if rs, ok := obj["set"]; ok {
		m, err := decodeNumberMap(rs, fmt.Sprintf("actions[%d].set", idx))
		if err != nil {
			return Action{}, err
		}
		a.Sets = m
	}
	return a, nil
}

func decodeNumberMap(raw any, field string) (map[string]float64, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: '%s' must be an object", ErrInvalidParams, field)
	}
	out := make(map[string]float64, len(obj))
	for k, v := range obj {
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: '%s.%s' must be a number, got %T", ErrInvalidParams, field, k, v)
		}
		out[k] = f
	}
	return out, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toFloat accepts the numeric types produced by encoding/json and yaml.v3.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}
