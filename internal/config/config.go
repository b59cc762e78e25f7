// Package config holds the typed configuration for the promptlab CLI and
// the optimizer presets it drives: per-vendor credentials/endpoints, the
// shared rate-limit target, and the composite optimizer's named presets.
package config

// VendorConfig holds the connection details for one inference adapter
// vendor. Which fields are consulted depends on which of
// internal/llmadapter's client constructors is selected for ModelID.
type VendorConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Region  string `yaml:"region,omitempty"` // Bedrock/Nova only
}

// ObsConfig configures the OpenTelemetry exporters.
type ObsConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
	OTLP           string `yaml:"otlp_endpoint"`
}

// RateLimitConfig configures the shared sliding-window limiter applied to
// every outbound model call for one adapter instance.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// RetryConfig configures the adapter's exponential-backoff retry loop.
type RetryConfig struct {
	MaxRetries      int     `yaml:"max_retries"`
	InitialBackoff  float64 `yaml:"initial_backoff_seconds"`
}

// SearchParams mirrors spec §4.7's implementation-level search parameters.
type SearchParams struct {
	NumCandidates         int `yaml:"num_candidates"`
	NumTrials             int `yaml:"num_trials"`
	MaxBootstrappedDemos  int `yaml:"max_bootstrapped_demos"`
	MaxLabeledDemos       int `yaml:"max_labeled_demos"`
	MinibatchSize         int `yaml:"minibatch_size,omitempty"` // 0 = full split
}

// CompositePreset is one named (proposer_model, task_model, search_params)
// triplet selectable via the composite optimizer's `mode` (spec §4.8).
type CompositePreset struct {
	ProposerModel string       `yaml:"proposer_model"`
	TaskModel     string       `yaml:"task_model"`
	Search        SearchParams `yaml:"search"`
}

// Config is the root configuration document, loaded by Load.
type Config struct {
	Vendors   map[string]VendorConfig    `yaml:"vendors"`
	RateLimit RateLimitConfig            `yaml:"rate_limit"`
	Retry     RetryConfig                `yaml:"retry"`
	Presets   map[string]CompositePreset `yaml:"presets"`
	Obs       ObsConfig                  `yaml:"observability"`
	LogLevel  string                     `yaml:"log_level"`
	LogFile   string                     `yaml:"log_file"`
}

// Default returns the built-in fallback configuration used when no
// promptlab.yaml is found and no relevant environment variables are set.
func Default() Config {
	return Config{
		RateLimit: RateLimitConfig{RequestsPerSecond: 2},
		Retry:     RetryConfig{MaxRetries: 5, InitialBackoff: 1},
		LogLevel:  "info",
		Presets: map[string]CompositePreset{
			"fast": {
				Search: SearchParams{NumCandidates: 3, NumTrials: 6, MaxBootstrappedDemos: 2, MaxLabeledDemos: 2},
			},
			"thorough": {
				Search: SearchParams{NumCandidates: 8, NumTrials: 24, MaxBootstrappedDemos: 4, MaxLabeledDemos: 4},
			},
		},
	}
}
