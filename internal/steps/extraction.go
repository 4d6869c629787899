package steps

import (
	"context"
	"path/filepath"

	"github.com/JaimeStill/plugpep/pkg/alphafold"
	"github.com/JaimeStill/plugpep/pkg/backbone"
	"github.com/JaimeStill/plugpep/workflow"
)

// Extraction returns the step that reduces the retrieved coordinate file to
// its backbone at extraction/backbone.pdb.
func Extraction(rt *Runtime) workflow.StepFunc {
	return func(ctx context.Context, s *workflow.State) (*workflow.State, error) {
		arts, err := upstream[alphafold.Artifacts](s, workflow.StepRetrieval)
		if err != nil {
			rt.log().ErrorContext(ctx, "extraction failed", "error", err)
			return s, workflow.RecordFailure(s, workflow.StepExtraction, err, workflow.StepResult{})
		}

		output := filepath.Join(s.StepDir(workflow.StepExtraction), BackboneFile)
		res, err := backbone.Extract(arts.PDBPath, output)
		if err != nil {
			rt.log().ErrorContext(ctx, "extraction failed", "input", arts.PDBPath, "error", err)
			return s, workflow.RecordFailure(s, workflow.StepExtraction, err, workflow.StepResult{
				InputPath: arts.PDBPath,
			})
		}

		rt.log().InfoContext(
			ctx, "extraction complete",
			"atoms", res.Atoms,
			"headers", res.Headers,
		)

		return s, workflow.RecordSuccess(s, workflow.StepExtraction, workflow.StepResult{
			InputPath:  res.InputPath,
			OutputPath: res.OutputPath,
			Output:     res,
		})
	}
}
