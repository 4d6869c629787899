package prompts

import (
	"encoding/json"
	"slices"
)

// Stage identifies the pipeline step a prompt is composed for.
type Stage string

// Stages that call the text-generation service.
const (
	StagePlanning  Stage = "planning"
	StageReporting Stage = "reporting"
)

var stages = []Stage{
	StagePlanning,
	StageReporting,
}

// Stages returns the list of valid prompt stages.
func Stages() []Stage {
	return slices.Clone(stages)
}

// UnmarshalJSON validates that the decoded string is a known stage value.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStage validates a string as a known prompt stage.
// Returns ErrInvalidStage if the value is not recognized.
func ParseStage(s string) (Stage, error) {
	v := Stage(s)
	if !slices.Contains(stages, v) {
		return "", ErrInvalidStage
	}
	return v, nil
}
