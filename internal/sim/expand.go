package sim

import "fmt"

// Child is one (action, resulting state) pair produced by Expand.
type Child struct {
	Action Action
	State  State
}

// DefaultActions returns the increment/decrement pair for every attribute
// of s, attributes in key order, increment before decrement.
func DefaultActions(s State, step float64) []Action {
	actions := make([]Action, 0, 2*len(s))
	for _, k := range s.Keys() {
		actions = append(actions,
			Action{
				Name:   fmt.Sprintf("%s(%s)", KindIncrement, k),
				Kind:   KindIncrement,
				Deltas: map[string]float64{k: step},
			},
			Action{
				Name:   fmt.Sprintf("%s(%s)", KindDecrement, k),
				Kind:   KindDecrement,
				Deltas: map[string]float64{k: -step},
			},
		)
	}
	return actions
}

// ActionSpace is the full, ordered action vocabulary of a scenario.
func ActionSpace(sc Scenario) []Action {
	step := sc.Step
	if step == 0 {
		step = DefaultStep
	}
	actions := DefaultActions(sc.InitialState, step)
	return append(actions, sc.Actions...)
}

// Expand applies every action of the vocabulary to s. The order is fixed;
// randomness only enters at selection time.
func Expand(actions []Action, s State) []Child {
	children := make([]Child, len(actions))
	for i, a := range actions {
		children[i] = Child{Action: a, State: a.Apply(s)}
	}
	return children
}
