package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/opsdeck/opsdeck/pkg/actions"
	"github.com/opsdeck/opsdeck/pkg/depgraph"
	"github.com/opsdeck/opsdeck/pkg/stores"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
	"github.com/opsdeck/opsdeck/pkg/transports/hal"
	"github.com/opsdeck/opsdeck/pkg/workflows"
)

// Environment variables read by ApplyEnv and DefaultPath.
const (
	EnvConfigPath = "OPSDECK_CONFIG"
	EnvAPIURL     = "OPSDECK_API_URL"
	EnvToken      = "OPSDECK_TOKEN"
	EnvNATSURL    = "OPSDECK_NATS_URL"
)

// DefaultFileName is the configuration file looked up in the working
// directory.
const DefaultFileName = "opsdeck.yaml"

// Default returns a configuration with every default applied. Its API base
// URL is empty, so it does not validate on its own.
func Default() *Config {
	workflowDefaults := workflows.DefaultConfig()
	halDefaults := hal.DefaultConfig()

	return &Config{
		API: APIConfig{
			Timeout:   halDefaults.Timeout,
			UserAgent: halDefaults.UserAgent,
		},
		Polling: PollingConfig{
			OperationInterval:   workflowDefaults.OperationPollInterval,
			EnvironmentInterval: 60 * time.Second,
			WaitInterval:        workflowDefaults.WaitInterval,
		},
		Provisioning: ProvisioningConfig{
			MaxParallel: workflowDefaults.MaxParallel,
		},
		Dependencies: DependenciesConfig{
			ProviderDomain: depgraph.DefaultProviderDomain,
		},
		Actions: ActionsConfig{
			BufferSize: actions.DefaultConfig().BufferSize,
		},
		Policy: PolicyConfig{
			Enabled: true,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// DefaultPath returns $OPSDECK_CONFIG, or opsdeck.yaml in the working
// directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultFileName
}

// Load reads, overrides and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults, applies the process environment and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.Journal.Path = expandHome(cfg.Journal.Path)
	for i, path := range cfg.Policy.Paths {
		cfg.Policy.Paths[i] = expandHome(path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.API.Token = v
	}
	if v, ok := lookup(EnvNATSURL); ok && v != "" {
		c.Actions.NATSURL = v
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("invalid configuration: %s", fieldMessage(fieldErrs[0]))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.HAL().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: api: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: telemetry: %w", err)
	}
	return nil
}

// fieldMessage renders a field error with its dotted yaml path, e.g.
// "api.base_url is required".
func fieldMessage(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "url":
		return path + " must be a URL"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", path, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", path, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", path, fe.Param())
	default:
		return path + " is invalid"
	}
}

// Write encodes cfg as YAML to path. The file may hold an API token, so it
// is created readable by the owner only.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// HAL returns the transport settings.
func (c *Config) HAL() hal.Config {
	return hal.Config{
		BaseURL:   c.API.BaseURL,
		Token:     c.API.Token,
		Timeout:   c.API.Timeout,
		UserAgent: c.API.UserAgent,
	}
}

// Workflows returns the orchestrator settings.
func (c *Config) Workflows() workflows.Config {
	return workflows.Config{
		MaxParallel:           c.Provisioning.MaxParallel,
		OperationPollInterval: c.Polling.OperationInterval,
		WaitInterval:          c.Polling.WaitInterval,
	}
}

// Store returns the journal settings, or false when the journal is disabled.
func (c *Config) Store() (stores.Config, bool) {
	if c.Journal.Path == "" {
		return stores.Config{}, false
	}
	return stores.Config{Path: c.Journal.Path}, true
}

// Publisher returns the action publisher settings.
func (c *Config) Publisher() actions.Config {
	return actions.Config{BufferSize: c.Actions.BufferSize}
}

// DependencyOptions returns the options for dependency detection.
func (c *Config) DependencyOptions() []depgraph.Option {
	return []depgraph.Option{depgraph.WithProviderDomain(c.Dependencies.ProviderDomain)}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
