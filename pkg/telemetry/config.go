package telemetry

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the logging, tracing and metrics settings of one opsdeck
// process. It is embedded as the telemetry section of the opsdeck config
// file.
type Config struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json

	// Output is stderr, stdout or a file path opened for append.
	Output string `yaml:"output"`

	EnableCaller bool `yaml:"enable_caller"`

	// Sampling thins repetitive lines such as poll ticks: the first
	// SamplingInitial lines per second are kept, then every
	// SamplingThereafter-th.
	EnableSampling     bool `yaml:"enable_sampling"`
	SamplingInitial    int  `yaml:"sampling_initial"`
	SamplingThereafter int  `yaml:"sampling_thereafter"`

	TimeFormat string `yaml:"time_format"` // unix, unixms or rfc3339
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // otlp, stdout or none

	// Endpoint is the OTLP/gRPC collector address, e.g. "localhost:4317".
	Endpoint string            `yaml:"endpoint"`
	Headers  map[string]string `yaml:"headers"`
	Insecure bool              `yaml:"insecure"`

	SamplingRate       float64       `yaml:"sampling_rate"`
	MaxExportBatchSize int           `yaml:"max_export_batch_size"`
	ExportTimeout      time.Duration `yaml:"export_timeout"`
}

// MetricsConfig configures the Prometheus registry and the address
// `opsdeck serve` exposes it on.
type MetricsConfig struct {
	Enabled                 bool      `yaml:"enabled"`
	ListenAddress           string    `yaml:"listen_address"`
	Path                    string    `yaml:"path"`
	Namespace               string    `yaml:"namespace"`
	DefaultHistogramBuckets []float64 `yaml:"default_histogram_buckets"`
}

var (
	logLevels = map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	logFormats    = map[string]bool{"console": true, "json": true}
	traceExporter = map[string]bool{"otlp": true, "stdout": true, "none": true}
)

// DefaultConfig returns console logging at info, tracing off and metrics
// on :9090.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "opsdeck",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stderr",
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:           "none",
			Headers:            map[string]string{},
			Insecure:           true,
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "opsdeck",
			DefaultHistogramBuckets: []float64{
				0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300,
			},
		},
	}
}

// DevelopmentConfig logs at debug with callers and prints spans to stdout.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.EnableCaller = true
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "stdout"
	return cfg
}

// ProductionConfig logs sampled JSON and exports a tenth of traces over
// OTLP. The collector endpoint still has to be set.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.EnableSampling = true
	cfg.Logging.TimeFormat = "unix"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	return cfg
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.ServiceName == "" || c.ServiceVersion == "" {
		return errors.New("service name and version are required")
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if err := c.Tracing.validate(); err != nil {
		return err
	}
	return c.Metrics.validate()
}

func (c LoggingConfig) validate() error {
	if !logLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	if !logFormats[c.Format] {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Format)
	}
	return nil
}

func (c TracingConfig) validate() error {
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0 and 1, got: %g", c.SamplingRate)
	}
	if !c.Enabled {
		return nil
	}
	if !traceExporter[c.Exporter] {
		return fmt.Errorf("invalid trace exporter: %s", c.Exporter)
	}
	if c.Exporter == "otlp" && c.Endpoint == "" {
		return errors.New("otlp exporter requires an endpoint")
	}
	return nil
}

func (c MetricsConfig) validate() error {
	if c.Enabled && c.ListenAddress == "" {
		return errors.New("metrics listen address is required when metrics are enabled")
	}
	return nil
}
