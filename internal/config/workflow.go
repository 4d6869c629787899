package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/plugpep/workflow"
)

const (
	EnvWorkflowRootDir       = "PLUGPEP_WORKFLOW_ROOT_DIR"
	EnvWorkflowFailurePolicy = "PLUGPEP_WORKFLOW_FAILURE_POLICY"
	EnvWorkflowSteps         = "PLUGPEP_WORKFLOW_STEPS"
)

// WorkflowConfig holds run layout and orchestration settings.
type WorkflowConfig struct {
	RootDir       string   `toml:"root_dir"`
	FailurePolicy string   `toml:"failure_policy"`
	Steps         []string `toml:"steps"`
}

// Policy returns FailurePolicy as a workflow.Policy.
func (c *WorkflowConfig) Policy() workflow.Policy {
	p, _ := workflow.ParsePolicy(c.FailurePolicy)
	return p
}

// StepNames returns the configured step order. Names without a registered
// step are kept; the orchestrator records them as skipped.
func (c *WorkflowConfig) StepNames() []workflow.StepName {
	names := make([]workflow.StepName, len(c.Steps))
	for i, s := range c.Steps {
		names[i] = workflow.StepName(s)
	}
	return names
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkflowConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WorkflowConfig) Merge(overlay *WorkflowConfig) {
	if overlay.RootDir != "" {
		c.RootDir = overlay.RootDir
	}
	if overlay.FailurePolicy != "" {
		c.FailurePolicy = overlay.FailurePolicy
	}
	if len(overlay.Steps) > 0 {
		c.Steps = append([]string(nil), overlay.Steps...)
	}
}

func (c *WorkflowConfig) loadDefaults() {
	if c.RootDir == "" {
		c.RootDir = "runs"
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = string(workflow.HaltOnFailure)
	}
	if len(c.Steps) == 0 {
		for _, name := range workflow.DefaultSteps() {
			c.Steps = append(c.Steps, string(name))
		}
	}
}

func (c *WorkflowConfig) loadEnv() {
	if v := os.Getenv(EnvWorkflowRootDir); v != "" {
		c.RootDir = v
	}
	if v := os.Getenv(EnvWorkflowFailurePolicy); v != "" {
		c.FailurePolicy = v
	}
	if v := os.Getenv(EnvWorkflowSteps); v != "" {
		c.Steps = nil
		for s := range strings.SplitSeq(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Steps = append(c.Steps, s)
			}
		}
	}
}

func (c *WorkflowConfig) validate() error {
	if _, err := workflow.ParsePolicy(c.FailurePolicy); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Steps))
	for _, s := range c.Steps {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("steps: empty step name")
		}
		if seen[s] {
			return fmt.Errorf("steps: duplicate step %q", s)
		}
		seen[s] = true
	}
	return nil
}
