package guardrail

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/railguard/railguard/pkg/types"
)

const (
	DefaultGuardrailsURL  = "http://localhost:8000"
	DefaultTimeoutSeconds = 30
)

// Config is the guardrail settings surface. Decoded from the host's
// settings map the way plugin configs are.
type Config struct {
	GuardrailsURL   string   `mapstructure:"guardrails_url"`
	ConfigID        string   `mapstructure:"config_id"`
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`
	Stages          []string `mapstructure:"stages"`
	TrackViolations bool     `mapstructure:"track_violations"`
}

// DecodeConfig decodes a settings map into a Config and applies defaults.
func DecodeConfig(settings map[string]interface{}) (Config, error) {
	var cfg Config
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.GuardrailsURL == "" {
		c.GuardrailsURL = DefaultGuardrailsURL
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
}

func (c Config) Validate() error {
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	for _, s := range c.Stages {
		if types.Stage(s) != types.PreCall && types.Stage(s) != types.PostCall {
			return fmt.Errorf("invalid stage: %s", s)
		}
	}
	return nil
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RunsOn reports whether the guardrail is configured to run for the given
// stage. An empty stage list enables both stages.
func (c Config) RunsOn(stage types.Stage) bool {
	if len(c.Stages) == 0 {
		return true
	}
	for _, s := range c.Stages {
		if types.Stage(s) == stage {
			return true
		}
	}
	return false
}
