// Package application loads and validates run configuration: the YAML run
// file describing sections, queries, and dimensions, and the environment
// variables carrying provider credentials.
package application

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/promptlab/internal/domain"
	"github.com/ahrav/promptlab/internal/engine"
)

// DefaultStorePath is where results accumulate when the run file does not
// say otherwise.
const DefaultStorePath = "promptlab.db"

var validate = validator.New(validator.WithRequiredStructEnabled())

// DimensionConfig is the YAML shape of one behavioral dimension.
type DimensionConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Question string `yaml:"question" validate:"required"`
	Kind     string `yaml:"kind" validate:"required,oneof=boolean scale"`
}

// PolicyConfig is the YAML shape of the combination policy.
type PolicyConfig struct {
	// Type selects the enumeration strategy.
	Type string `yaml:"type" validate:"required,oneof=powerset sample explicit"`

	// SampleSize is required for the sample policy.
	SampleSize int `yaml:"sample_size" validate:"gte=0"`

	// Seed makes sampling reproducible. Runs that omit it share seed zero.
	Seed uint64 `yaml:"seed"`

	// Explicit lists combination keys ("0+2+5", "empty") for the explicit
	// policy.
	Explicit []string `yaml:"explicit"`

	// MaxSections overrides the powerset ceiling.
	MaxSections int `yaml:"max_sections" validate:"gte=0"`
}

// RunConfig is the YAML run file: everything a batch evaluation needs except
// credentials, which never live in files.
type RunConfig struct {
	// Sections are the prompt sections in prompt order.
	Sections []string `yaml:"sections" validate:"required,min=1,dive,required"`

	// Queries are the user inputs each candidate prompt is exercised with.
	Queries []string `yaml:"queries" validate:"required,min=1,dive,required"`

	// Dimensions are the judging criteria.
	Dimensions []DimensionConfig `yaml:"dimensions" validate:"required,min=1,dive"`

	// Policy selects which combinations to evaluate.
	Policy PolicyConfig `yaml:"policy" validate:"required"`

	// Concurrency bounds simultaneous in-flight units. Zero uses the
	// scheduler default.
	Concurrency int `yaml:"concurrency" validate:"gte=0,lte=500"`

	// MaxAttempts is the per-unit retry ceiling. Zero uses the scheduler
	// default.
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0,lte=10"`

	// MaxTokens bounds generation replies. Zero uses the provider default.
	MaxTokens int `yaml:"max_tokens" validate:"gte=0"`

	// StorePath is the result database location.
	StorePath string `yaml:"store_path"`
}

// LoadRunConfig reads and validates the YAML run file at path.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config %s: %w", path, err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid run config %s: %w", path, err)
	}
	if cfg.Policy.Type == string(engine.PolicySample) && cfg.Policy.SampleSize < 1 {
		return nil, fmt.Errorf("invalid run config %s: sample policy requires sample_size >= 1", path)
	}
	if cfg.Policy.Type == string(engine.PolicyExplicit) && len(cfg.Policy.Explicit) == 0 {
		return nil, fmt.Errorf("invalid run config %s: explicit policy requires at least one combination key", path)
	}
	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath
	}
	return &cfg, nil
}

// DomainDimensions converts the configured dimensions to domain values.
func (c *RunConfig) DomainDimensions() []domain.Dimension {
	dims := make([]domain.Dimension, len(c.Dimensions))
	for i, d := range c.Dimensions {
		dims[i] = domain.Dimension{
			Name:     d.Name,
			Question: d.Question,
			Kind:     domain.ResultKind(d.Kind),
		}
	}
	return dims
}

// EnginePolicy converts the configured policy to an engine policy, parsing
// any explicit combination keys.
func (c *RunConfig) EnginePolicy() (engine.Policy, error) {
	policy := engine.Policy{
		Type:        engine.PolicyType(c.Policy.Type),
		SampleSize:  c.Policy.SampleSize,
		Seed:        c.Policy.Seed,
		MaxSections: c.Policy.MaxSections,
	}
	for _, key := range c.Policy.Explicit {
		combo, err := domain.ParseCombinationKey(key)
		if err != nil {
			return engine.Policy{}, fmt.Errorf("explicit combination %q: %w", key, err)
		}
		policy.Explicit = append(policy.Explicit, combo)
	}
	return policy, nil
}

// ClientEnv carries provider settings from the environment. The credential
// lives here and nowhere else: it is never written to config files, logs, or
// the result store.
type ClientEnv struct {
	// Provider selects the completion backend.
	Provider string `env:"PROMPTLAB_PROVIDER" envDefault:"openai" validate:"oneof=openai anthropic"`

	// APIKey authenticates against the provider.
	APIKey string `env:"PROMPTLAB_API_KEY" validate:"required"`

	// Model overrides the provider's default model.
	Model string `env:"PROMPTLAB_MODEL"`

	// BaseURL points at an OpenAI-compatible gateway such as OpenRouter.
	// Only meaningful for the openai provider.
	BaseURL string `env:"PROMPTLAB_BASE_URL"`

	// RequestTimeout is the per-call deadline in seconds.
	RequestTimeoutSeconds int `env:"PROMPTLAB_REQUEST_TIMEOUT" envDefault:"120" validate:"gt=0"`

	// RateLimitPerSecond throttles outbound calls. Zero disables throttling.
	RateLimitPerSecond float64 `env:"PROMPTLAB_RATE_LIMIT" validate:"gte=0"`
}

// LoadClientEnv parses and validates provider settings from the environment.
func LoadClientEnv() (*ClientEnv, error) {
	var cfg ClientEnv
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid environment configuration (is PROMPTLAB_API_KEY set?): %w", err)
	}
	return &cfg, nil
}
