// Package steps implements the four pipeline steps: planning identifies the
// target protein, retrieval downloads its predicted structure, extraction
// reduces the structure to its backbone, and reporting summarizes the run.
package steps

import (
	"fmt"

	"github.com/JaimeStill/plugpep/workflow"
)

// Registry builds the step registry in the canonical pipeline order.
func Registry(rt *Runtime) (*workflow.Registry, error) {
	if rt == nil || rt.Structures == nil {
		return nil, fmt.Errorf("steps: runtime requires a structure client")
	}

	return workflow.NewRegistry(
		workflow.Step{Name: workflow.StepPlanning, Func: Planning(rt)},
		workflow.Step{Name: workflow.StepRetrieval, Func: Retrieval(rt)},
		workflow.Step{Name: workflow.StepExtraction, Func: Extraction(rt)},
		workflow.Step{Name: workflow.StepReporting, Func: Reporting(rt)},
	)
}
