package sim

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// runNamespace scopes the name-based UUIDs generated for runs.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("simulations://"))

// runIdentity is the canonical form of everything that determines a run's
// outcome. encoding/json sorts map keys, so the encoding is stable.
type runIdentity struct {
	Scenario    Scenario    `json:"scenario"`
	Constraints Constraints `json:"constraints"`
	BeamWidth   int         `json:"beam_width"`
	MaxSteps    int         `json:"max_steps"`
	Seed        int64       `json:"seed"`
	Scoring     string      `json:"scoring"`
}

// RunID derives the run id from the inputs. Identical inputs always name
// the same run, so a repeated request resolves to the stored result.
func RunID(req Request, scoring string) (string, error) {
	if req.Scenario.Step == 0 {
		req.Scenario.Step = DefaultStep
	}
	if req.Constraints == nil {
		req.Constraints = Constraints{}
	}
	data, err := json.Marshal(runIdentity{
		Scenario:    req.Scenario,
		Constraints: req.Constraints,
		BeamWidth:   req.BeamWidth,
		MaxSteps:    req.MaxSteps,
		Seed:        req.Seed,
		Scoring:     scoring,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding run identity: %v", ErrInternal, err)
	}
	return uuid.NewSHA1(runNamespace, data).String(), nil
}
