package steps

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/JaimeStill/plugpep/internal/prompts"
	"github.com/JaimeStill/plugpep/pkg/alphafold"
	"github.com/JaimeStill/plugpep/pkg/formatting"
	"github.com/JaimeStill/plugpep/workflow"
)

// Sources of a plan's identification.
const (
	SourceCatalogue  = "catalogue"
	SourceGeneration = "generation"
	SourceUniProt    = "uniprot"
)

// Plan is the identified target protein and how to validate it.
type Plan struct {
	Accession       string   `json:"accession_id"`
	TargetName      string   `json:"target_name"`
	Description     string   `json:"description"`
	Organism        string   `json:"organism"`
	Confidence      float64  `json:"confidence_score"`
	ValidationSteps []string `json:"validation_steps"`
	Source          string   `json:"source"`
}

type catalogueEntry struct {
	keywords []string
	plan     Plan
}

var catalogue = []catalogueEntry{
	{
		keywords: []string{"bcl-2", "bcl2", "b-cell lymphoma 2", "bcl 2"},
		plan: Plan{
			Accession:   "P10415",
			TargetName:  "B-cell lymphoma 2",
			Description: "BCL-2 is a key regulator of apoptosis that inhibits cell death",
			Organism:    "Homo sapiens",
			Confidence:  1.0,
			ValidationSteps: []string{
				"Check sequence identity",
				"Verify structure quality",
				"Assess binding interface",
			},
		},
	},
	{
		keywords: []string{"prothrombin", "thrombin", "blood clotting", "coagulation"},
		plan: Plan{
			Accession:   "P00742",
			TargetName:  "Coagulation factor X",
			Description: "Vitamin K-dependent serine protease that converts prothrombin to thrombin, initiating the common pathway of the coagulation cascade",
			Organism:    "Homo sapiens",
			Confidence:  0.95,
			ValidationSteps: []string{
				"Verify serine protease domain",
				"Confirm vitamin K-dependent gamma-carboxylation sites",
				"Check interaction sites with factor Va and prothrombin",
			},
		},
	},
	{
		keywords: []string{"lysozyme", "bacterial cell wall", "peptidoglycan"},
		plan: Plan{
			Accession:   "P61626",
			TargetName:  "Lysozyme C",
			Description: "Hydrolyzes the peptidoglycan of bacterial cell walls, contributing to innate antibacterial defense",
			Organism:    "Homo sapiens",
			Confidence:  0.95,
			ValidationSteps: []string{
				"Verify glycoside hydrolase catalytic residues",
				"Check substrate binding cleft",
				"Confirm disulfide bond pattern",
			},
		},
	},
}

// lookupCatalogue returns the known target whose keywords appear in text.
func lookupCatalogue(text string) (Plan, bool) {
	lower := strings.ToLower(text)
	for _, entry := range catalogue {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				p := entry.plan
				p.ValidationSteps = append([]string(nil), entry.plan.ValidationSteps...)
				p.Source = SourceCatalogue
				return p, true
			}
		}
	}
	return Plan{}, false
}

type planResponse struct {
	Accession       *string  `json:"accession_id"`
	TargetName      *string  `json:"target_name"`
	Description     *string  `json:"description"`
	Organism        *string  `json:"organism"`
	Confidence      *float64 `json:"confidence_score"`
	ValidationSteps []string `json:"validation_steps"`
}

type planningContext struct {
	Query      string  `json:"query"`
	TargetName *string `json:"target_name,omitempty"`
}

// Planning returns the step that identifies the target protein for the
// run's query and writes the plan to planning/plan.json.
func Planning(rt *Runtime) workflow.StepFunc {
	return func(ctx context.Context, s *workflow.State) (*workflow.State, error) {
		output := filepath.Join(s.StepDir(workflow.StepPlanning), PlanFile)

		plan, err := identify(ctx, rt, s.Input)
		if err == nil {
			err = writeJSON(output, plan)
		}
		if err != nil {
			rt.log().ErrorContext(ctx, "planning failed", "error", err)
			return s, workflow.RecordFailure(s, workflow.StepPlanning, err, workflow.StepResult{})
		}

		rt.log().InfoContext(
			ctx, "planning complete",
			"accession", plan.Accession,
			"target", plan.TargetName,
			"source", plan.Source,
		)

		return s, workflow.RecordSuccess(s, workflow.StepPlanning, workflow.StepResult{
			OutputPath: output,
			Output:     plan,
		})
	}
}

func identify(ctx context.Context, rt *Runtime, in workflow.Input) (*Plan, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, ErrNoQuery
	}

	lookup := query
	if in.TargetName != nil {
		lookup += " " + *in.TargetName
	}
	if p, ok := lookupCatalogue(lookup); ok {
		return &p, nil
	}

	if rt.Generator == nil {
		return nil, fmt.Errorf("%w: query %q is not in the catalogue", ErrNoGenerator, query)
	}

	prompt, err := prompts.Compose(
		ctx, rt.promptSystem(), prompts.StagePlanning,
		"Query", planningContext{Query: query, TargetName: in.TargetName},
	)
	if err != nil {
		return nil, err
	}

	text, err := rt.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	resp, err := formatting.Parse[planResponse](text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	plan, err := resp.plan()
	if err != nil {
		return nil, err
	}

	if err := alphafold.ValidateAccession(plan.Accession); err != nil {
		return resolve(ctx, rt, plan, in, err)
	}
	return plan, nil
}

// plan checks that every field is present and normalizes the result.
func (r planResponse) plan() (*Plan, error) {
	var missing []string
	text := func(name string, v *string) string {
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
			return ""
		}
		return strings.TrimSpace(*v)
	}

	p := &Plan{
		Accession:   alphafold.NormalizeAccession(text("accession_id", r.Accession)),
		TargetName:  text("target_name", r.TargetName),
		Description: text("description", r.Description),
		Organism:    text("organism", r.Organism),
		Source:      SourceGeneration,
	}
	if r.Confidence == nil {
		missing = append(missing, "confidence_score")
	}
	for _, step := range r.ValidationSteps {
		if step = strings.TrimSpace(step); step != "" {
			p.ValidationSteps = append(p.ValidationSteps, step)
		}
	}
	if len(p.ValidationSteps) == 0 {
		missing = append(missing, "validation_steps")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidPlan, strings.Join(missing, ", "))
	}

	c := *r.Confidence
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return nil, fmt.Errorf("%w: confidence_score must be a number", ErrInvalidPlan)
	}
	p.Confidence = min(max(c, 0), 1)

	return p, nil
}

// resolve replaces a malformed accession with the UniProt match for the
// target name.
func resolve(ctx context.Context, rt *Runtime, p *Plan, in workflow.Input, cause error) (*Plan, error) {
	if rt.Resolver == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, cause)
	}

	name := p.TargetName
	if in.TargetName != nil && strings.TrimSpace(*in.TargetName) != "" {
		name = *in.TargetName
	}

	entry, err := rt.Resolver.Search(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: resolve %q: %w", ErrInvalidPlan, cause, name, err)
	}

	resolved := alphafold.NormalizeAccession(entry.Accession)
	if err := alphafold.ValidateAccession(resolved); err != nil {
		return nil, fmt.Errorf("%w: resolved accession: %w", ErrInvalidPlan, err)
	}

	rt.log().WarnContext(
		ctx, "planning accession resolved through uniprot",
		"generated", p.Accession,
		"resolved", resolved,
	)

	p.Accession = resolved
	if entry.Organism != "" {
		p.Organism = entry.Organism
	}
	p.Source = SourceUniProt
	return p, nil
}
