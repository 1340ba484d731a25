package config

import (
	"time"

	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

// Config is the complete opsdeck configuration.
type Config struct {
	// API configures the backend connection.
	API APIConfig `yaml:"api"`

	// Polling sets the refresh intervals of operation pollers.
	Polling PollingConfig `yaml:"polling"`

	// Provisioning tunes the provisioning workflows.
	Provisioning ProvisioningConfig `yaml:"provisioning"`

	// Dependencies configures dependency detection.
	Dependencies DependenciesConfig `yaml:"dependencies"`

	// Journal configures the local SQLite journal.
	Journal JournalConfig `yaml:"journal"`

	// Actions configures action delivery.
	Actions ActionsConfig `yaml:"actions"`

	// Policy configures workflow admission policies.
	Policy PolicyConfig `yaml:"policy"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// APIConfig configures the backend connection.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url" validate:"required,url"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
	UserAgent string        `yaml:"user_agent"`
}

// PollingConfig sets the refresh intervals of operation pollers.
type PollingConfig struct {
	// OperationInterval is the refresh interval of a single operation.
	OperationInterval time.Duration `yaml:"operation_interval" validate:"gt=0"`

	// EnvironmentInterval is the refresh interval of environment-wide sweeps.
	EnvironmentInterval time.Duration `yaml:"environment_interval" validate:"gt=0"`

	// WaitInterval is the refresh interval of blocking waits such as
	// deprovision.
	WaitInterval time.Duration `yaml:"wait_interval" validate:"gt=0"`
}

// ProvisioningConfig tunes the provisioning workflows.
type ProvisioningConfig struct {
	// MaxParallel bounds the concurrent items of a batch.
	MaxParallel int `yaml:"max_parallel" validate:"gte=1,lte=64"`
}

// DependenciesConfig configures dependency detection.
type DependenciesConfig struct {
	// ProviderDomain is the domain database hosts live under.
	ProviderDomain string `yaml:"provider_domain" validate:"required,hostname_rfc1123"`
}

// JournalConfig configures the local SQLite journal. An empty path
// disables the journal.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// ActionsConfig configures action delivery.
type ActionsConfig struct {
	// BufferSize is the publisher queue length.
	BufferSize int `yaml:"buffer_size" validate:"gte=0"`

	// NATSURL forwards actions to a NATS server when set.
	NATSURL string `yaml:"nats_url" validate:"omitempty,url"`
}

// PolicyConfig configures the admission policies checked before every
// workflow.
type PolicyConfig struct {
	// Enabled turns admission checks on. The built-in policies are always
	// loaded when enabled.
	Enabled bool `yaml:"enabled"`

	// Paths lists .rego files or directories of additional policies.
	Paths []string `yaml:"paths" validate:"dive,required"`

	// Disabled names policies to switch off, built-in or loaded.
	Disabled []string `yaml:"disabled"`
}
