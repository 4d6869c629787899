package config

import (
	"os"
	"strconv"
)

const (
	EnvReportNarrative = "PLUGPEP_REPORT_NARRATIVE"
	EnvMetricsEnabled  = "PLUGPEP_METRICS_ENABLED"
)

// ReportConfig controls the reporting step.
type ReportConfig struct {
	Narrative bool `toml:"narrative"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Merge overwrites non-zero fields from overlay.
func (c *ReportConfig) Merge(overlay *ReportConfig) {
	if overlay.Narrative {
		c.Narrative = true
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *MetricsConfig) Merge(overlay *MetricsConfig) {
	if overlay.Enabled {
		c.Enabled = true
	}
}

func (c *ReportConfig) loadEnv() {
	envBool(EnvReportNarrative, &c.Narrative)
}

func (c *MetricsConfig) loadEnv() {
	envBool(EnvMetricsEnabled, &c.Enabled)
}

func envBool(envVar string, field *bool) {
	if v := os.Getenv(envVar); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*field = b
		}
	}
}
