package prompts_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/JaimeStill/plugpep/internal/prompts"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		input   string
		want    prompts.Stage
		wantErr bool
	}{
		{"planning", prompts.StagePlanning, false},
		{"reporting", prompts.StageReporting, false},
		{"retrieval", "", true},
		{"", "", true},
		{"Planning", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := prompts.ParseStage(tt.input)
			if tt.wantErr {
				if !errors.Is(err, prompts.ErrInvalidStage) {
					t.Errorf("error = %v, want ErrInvalidStage", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseStage() = %q, %v", got, err)
			}
		})
	}
}

func TestStageUnmarshalJSON(t *testing.T) {
	var s prompts.Stage
	if err := json.Unmarshal([]byte(`"reporting"`), &s); err != nil || s != prompts.StageReporting {
		t.Errorf("Unmarshal() = %q, %v", s, err)
	}
	if err := json.Unmarshal([]byte(`"bogus"`), &s); !errors.Is(err, prompts.ErrInvalidStage) {
		t.Errorf("error = %v, want ErrInvalidStage", err)
	}
}

func TestStagesReturnsCopy(t *testing.T) {
	got := prompts.Stages()
	got[0] = "mutated"
	if prompts.Stages()[0] != prompts.StagePlanning {
		t.Error("Stages() exposed internal slice")
	}
}

func TestDefaults(t *testing.T) {
	sys := prompts.Defaults()
	ctx := context.Background()

	for _, stage := range prompts.Stages() {
		t.Run(string(stage), func(t *testing.T) {
			instr, err := sys.Instructions(ctx, stage)
			if err != nil || instr == "" {
				t.Errorf("Instructions() = %q, %v", instr, err)
			}
			spec, err := sys.Spec(ctx, stage)
			if err != nil || spec == "" {
				t.Errorf("Spec() = %q, %v", spec, err)
			}
		})
	}

	if _, err := sys.Instructions(ctx, "retrieval"); !errors.Is(err, prompts.ErrInvalidStage) {
		t.Errorf("error = %v, want ErrInvalidStage", err)
	}
	if _, err := sys.Spec(ctx, "retrieval"); !errors.Is(err, prompts.ErrInvalidStage) {
		t.Errorf("error = %v, want ErrInvalidStage", err)
	}
}

func TestPlanningSpecNamesFields(t *testing.T) {
	spec, err := prompts.Spec(prompts.StagePlanning)
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"accession_id", "target_name", "description", "organism", "confidence_score", "validation_steps"} {
		if !strings.Contains(spec, `"`+field+`"`) {
			t.Errorf("planning spec missing %s", field)
		}
	}
}

func TestCompose(t *testing.T) {
	ctx := context.Background()
	sys := prompts.Defaults()

	t.Run("without context", func(t *testing.T) {
		got, err := prompts.Compose(ctx, sys, prompts.StagePlanning, "", nil)
		if err != nil {
			t.Fatal(err)
		}
		instr, _ := prompts.Instructions(prompts.StagePlanning)
		spec, _ := prompts.Spec(prompts.StagePlanning)
		if got != instr+"\n\n"+spec {
			t.Error("unexpected composition")
		}
	})

	t.Run("with context", func(t *testing.T) {
		data := map[string]string{"query": "Find BCL-2"}
		got, err := prompts.Compose(ctx, sys, prompts.StagePlanning, "Query", data)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasSuffix(got, "Query:\n\n{\n  \"query\": \"Find BCL-2\"\n}") {
			t.Errorf("context block missing:\n%s", got)
		}
	})

	t.Run("unknown stage", func(t *testing.T) {
		_, err := prompts.Compose(ctx, sys, "unknown", "", nil)
		if !errors.Is(err, prompts.ErrInvalidStage) {
			t.Errorf("error = %v, want ErrInvalidStage", err)
		}
	})
}
