package config

import (
	"fmt"
	"os"
	"strconv"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentEnabled      = "PLUGPEP_AGENT_ENABLED"
	EnvAgentName         = "PLUGPEP_AGENT_NAME"
	EnvAgentProviderName = "PLUGPEP_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "PLUGPEP_AGENT_BASE_URL"
	EnvAgentToken        = "PLUGPEP_AGENT_TOKEN"
	EnvAgentDeployment   = "PLUGPEP_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "PLUGPEP_AGENT_API_VERSION"
	EnvAgentAuthType     = "PLUGPEP_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "PLUGPEP_AGENT_MODEL_NAME"
)

// AgentConfig selects the text-generation provider used by planning and
// the report narrative. When disabled, planning relies on the known-target
// catalogue alone.
type AgentConfig struct {
	Enabled    bool   `toml:"enabled"`
	Name       string `toml:"name"`
	Provider   string `toml:"provider"`
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Token      string `toml:"token"`
	Deployment string `toml:"deployment"`
	APIVersion string `toml:"api_version"`
	AuthType   string `toml:"auth_type"`
}

// Merge overwrites non-zero fields from overlay.
func (c *AgentConfig) Merge(overlay *AgentConfig) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Name != "" {
		c.Name = overlay.Name
	}
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
	if overlay.Deployment != "" {
		c.Deployment = overlay.Deployment
	}
	if overlay.APIVersion != "" {
		c.APIVersion = overlay.APIVersion
	}
	if overlay.AuthType != "" {
		c.AuthType = overlay.AuthType
	}
}

// Finalize applies environment variable overrides and, when enabled,
// validates the resulting go-agents configuration.
func (c *AgentConfig) Finalize() error {
	c.loadEnv()
	if !c.Enabled {
		return nil
	}
	_, err := c.Agent()
	return err
}

// Agent renders c as a finalized go-agents AgentConfig.
func (c *AgentConfig) Agent() (gaconfig.AgentConfig, error) {
	ac := gaconfig.AgentConfig{
		Name: c.Name,
		Provider: &gaconfig.ProviderConfig{
			Name:    c.Provider,
			BaseURL: c.BaseURL,
			Options: make(map[string]any),
		},
	}
	if c.Model != "" {
		ac.Model = &gaconfig.ModelConfig{Name: c.Model}
	}

	setOption := func(key, v string) {
		if v != "" {
			ac.Provider.Options[key] = v
		}
	}
	setOption("token", c.Token)
	setOption("deployment", c.Deployment)
	setOption("api_version", c.APIVersion)
	setOption("auth_type", c.AuthType)

	if err := FinalizeAgent(&ac); err != nil {
		return gaconfig.AgentConfig{}, err
	}
	return ac, nil
}

func (c *AgentConfig) loadEnv() {
	if v := os.Getenv(EnvAgentEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}

	set := func(envVar string, field *string) {
		if v := os.Getenv(envVar); v != "" {
			*field = v
		}
	}
	set(EnvAgentName, &c.Name)
	set(EnvAgentProviderName, &c.Provider)
	set(EnvAgentBaseURL, &c.BaseURL)
	set(EnvAgentModelName, &c.Model)
	set(EnvAgentToken, &c.Token)
	set(EnvAgentDeployment, &c.Deployment)
	set(EnvAgentAPIVersion, &c.APIVersion)
	set(EnvAgentAuthType, &c.AuthType)
}

// FinalizeAgent fills a go-agents AgentConfig from DefaultAgentConfig and
// validates it.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults

	if c.Provider != nil && c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	return validateAgent(c)
}

func validateAgent(c *gaconfig.AgentConfig) error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.Provider == nil {
		return fmt.Errorf("provider required")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name required")
	}
	if c.Model == nil {
		return fmt.Errorf("model required")
	}
	return nil
}
