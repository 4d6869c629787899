package steps

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/plugpep/internal/prompts"
	"github.com/JaimeStill/plugpep/pkg/alphafold"
	"github.com/JaimeStill/plugpep/pkg/backbone"
	"github.com/JaimeStill/plugpep/workflow"
)

const unknown = "Unknown"

// Report summarizes a run from the outputs of the steps before it.
type Report struct {
	Summary         Summary         `json:"summary"`
	Analysis        Analysis        `json:"analysis"`
	Recommendations Recommendations `json:"recommendations"`
	Assessment      Assessment      `json:"assessment"`
	Narrative       *string         `json:"narrative,omitempty"`
}

type Summary struct {
	TargetProtein TargetProtein `json:"target_protein"`
	WorkflowSteps WorkflowSteps `json:"workflow_steps"`
}

type TargetProtein struct {
	Accession   string `json:"accession_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Organism    string `json:"organism"`
}

type WorkflowSteps struct {
	Completed []workflow.StepName `json:"completed"`
	Failed    []workflow.StepName `json:"failed"`
}

type Analysis struct {
	StructureRetrieval StructureRetrieval `json:"structure_retrieval"`
	BackboneExtraction BackboneExtraction `json:"backbone_extraction"`
}

type StructureRetrieval struct {
	Source          string            `json:"source"`
	FilesGenerated  map[string]string `json:"files_generated"`
	ConfidenceScore float64           `json:"confidence_score"`
}

type BackboneExtraction struct {
	InputFile  string `json:"input_file"`
	OutputFile string `json:"output_file"`
	Status     string `json:"status"`
	Atoms      int    `json:"atoms"`
}

type Recommendations struct {
	NextSteps    []string `json:"next_steps"`
	Improvements []string `json:"improvements"`
}

type Assessment struct {
	Success           bool            `json:"success"`
	CompletionStatus  workflow.Status `json:"completion_status"`
	ErrorsEncountered []string        `json:"errors_encountered"`
}

// ReportOutput is the payload recorded for the reporting step.
type ReportOutput struct {
	Report     Report `json:"report"`
	ReportPath string `json:"report_path"`
}

// Reporting returns the step that assembles the run report and writes it to
// reporting/report.json. Upstream outputs are read, never modified. A failed
// narrative is recorded as a warning.
func Reporting(rt *Runtime) workflow.StepFunc {
	return func(ctx context.Context, s *workflow.State) (*workflow.State, error) {
		report := BuildReport(s)

		if rt.Narrative && rt.Generator != nil {
			text, err := narrate(ctx, rt, report)
			if err != nil {
				rt.log().WarnContext(ctx, "report narrative skipped", "error", err)
				s.Logs.Warnings = append(s.Logs.Warnings, fmt.Sprintf("%s warning: narrative: %s", workflow.StepReporting, err))
			} else {
				report.Narrative = &text
			}
		}

		output := filepath.Join(s.StepDir(workflow.StepReporting), ReportFile)
		if err := writeJSON(output, report); err != nil {
			rt.log().ErrorContext(ctx, "reporting failed", "error", err)
			return s, workflow.RecordFailure(s, workflow.StepReporting, err, workflow.StepResult{})
		}

		rt.log().InfoContext(
			ctx, "reporting complete",
			"success", report.Assessment.Success,
			"path", output,
		)

		return s, workflow.RecordSuccess(s, workflow.StepReporting, workflow.StepResult{
			OutputPath: output,
			Output:     ReportOutput{Report: report, ReportPath: output},
		})
	}
}

// BuildReport derives the report from s without side effects.
func BuildReport(s *workflow.State) Report {
	plan, hasPlan, _ := workflow.DecodeOutput[Plan](s, workflow.StepPlanning)
	arts, _, _ := workflow.DecodeOutput[alphafold.Artifacts](s, workflow.StepRetrieval)
	bb, _, _ := workflow.DecodeOutput[backbone.Result](s, workflow.StepExtraction)

	target := TargetProtein{
		Accession:   unknown,
		Name:        unknown,
		Description: "No description available",
		Organism:    unknown,
	}
	if hasPlan {
		target = TargetProtein{
			Accession:   plan.Accession,
			Name:        plan.TargetName,
			Description: plan.Description,
			Organism:    plan.Organism,
		}
	}

	steps := WorkflowSteps{
		Completed: []workflow.StepName{},
		Failed:    []workflow.StepName{},
	}
	errs := []string{}
	for _, name := range slices.Sorted(maps.Keys(s.Steps)) {
		st := s.Steps[name]
		switch {
		case st.Success:
			steps.Completed = append(steps.Completed, name)
		case st.Error != nil:
			steps.Failed = append(steps.Failed, name)
			errs = append(errs, fmt.Sprintf("%s: %s", name, *st.Error))
		}
	}

	source := arts.Source
	if source == "" {
		source = unknown
	}

	extraction := BackboneExtraction{
		Status: unknown,
		Atoms:  bb.Atoms,
	}
	if st, ok := s.Step(workflow.StepExtraction); ok {
		extraction.Status = string(st.Status)
		extraction.InputFile = base(st.InputPath)
		extraction.OutputFile = base(st.OutputPath)
	}

	success := true
	for _, name := range []workflow.StepName{workflow.StepPlanning, workflow.StepRetrieval, workflow.StepExtraction} {
		if st, ok := s.Step(name); !ok || !st.Success {
			success = false
		}
	}

	return Report{
		Summary: Summary{
			TargetProtein: target,
			WorkflowSteps: steps,
		},
		Analysis: Analysis{
			StructureRetrieval: StructureRetrieval{
				Source: source,
				FilesGenerated: map[string]string{
					"pdb": basename(arts.PDBPath),
					"cif": basename(arts.CIFPath),
					"pae": basename(arts.PAEPath),
				},
				ConfidenceScore: arts.Confidence,
			},
			BackboneExtraction: extraction,
		},
		Recommendations: Recommendations{
			NextSteps: []string{
				"Validate the extracted backbone structure",
				"Consider using experimental structures if available",
				"Proceed with binder design using the prepared backbone",
			},
			Improvements: []string{
				"Add structure quality assessment",
				"Include binding site prediction",
				"Consider multiple conformations",
			},
		},
		Assessment: Assessment{
			Success:           success,
			CompletionStatus:  s.Orchestrator.WorkflowStatus,
			ErrorsEncountered: errs,
		},
	}
}

func narrate(ctx context.Context, rt *Runtime, report Report) (string, error) {
	prompt, err := prompts.Compose(ctx, rt.promptSystem(), prompts.StageReporting, "Report", report)
	if err != nil {
		return "", err
	}

	text, err := rt.Generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func base(p *string) string {
	if p == nil {
		return ""
	}
	return basename(*p)
}

func basename(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Base(p)
}
