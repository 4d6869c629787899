package steps

import (
	"context"
	"fmt"

	"github.com/JaimeStill/plugpep/workflow"
)

// Retrieval returns the step that downloads the predicted structure for the
// planned accession into retrieval/.
func Retrieval(rt *Runtime) workflow.StepFunc {
	return func(ctx context.Context, s *workflow.State) (*workflow.State, error) {
		plan, err := upstream[Plan](s, workflow.StepPlanning)
		if err != nil {
			rt.log().ErrorContext(ctx, "retrieval failed", "error", err)
			return s, workflow.RecordFailure(s, workflow.StepRetrieval, err, workflow.StepResult{})
		}

		dir := s.StepDir(workflow.StepRetrieval)
		arts, err := rt.Structures.Fetch(ctx, plan.Accession, dir)
		if err != nil {
			rt.log().ErrorContext(ctx, "retrieval failed", "accession", plan.Accession, "error", err)
			return s, workflow.RecordFailure(s, workflow.StepRetrieval, err, workflow.StepResult{})
		}

		rt.log().InfoContext(
			ctx, "retrieval complete",
			"accession", arts.Accession,
			"confidence", arts.Confidence,
		)

		return s, workflow.RecordSuccess(s, workflow.StepRetrieval, workflow.StepResult{
			OutputPath: arts.PDBPath,
			Output:     arts,
		})
	}
}

// upstream decodes the payload of a completed upstream step.
func upstream[T any](s *workflow.State, name workflow.StepName) (T, error) {
	v, ok, err := workflow.DecodeOutput[T](s, name)
	if err != nil {
		return v, fmt.Errorf("%w: %w", ErrMissingUpstream, err)
	}
	if !ok {
		return v, fmt.Errorf("%w: %s has not completed", ErrMissingUpstream, name)
	}
	return v, nil
}
