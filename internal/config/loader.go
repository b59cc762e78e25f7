package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// Load reads promptlab.yaml (if present at path) and layers environment
// variable overrides on top, mirroring the teacher's env-first,
// .env-then-YAML convention: .env values take precedence over whatever the
// process environment already had, and environment variables take
// precedence over the YAML file for the fields operators are most likely
// to override per invocation: PROMPTLAB_* variables for log level/file,
// rate limit and OTLP endpoint, and the vendor variables (ANTHROPIC_API_KEY,
// OPENAI_BASE_URL, AWS_REGION, ...) for credentials and endpoints.
func Load(path string) (Config, error) {
	_ = godotenv.Overload()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// no config file; defaults + env only
		default:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PROMPTLAB_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("PROMPTLAB_LOG_FILE")); v != "" {
		cfg.LogFile = v
	}
	if v := strings.TrimSpace(os.Getenv("PROMPTLAB_RATE_LIMIT_RPS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RequestsPerSecond = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("PROMPTLAB_OTLP_ENDPOINT")); v != "" {
		cfg.Obs.OTLP = v
	}

	if cfg.Vendors == nil {
		cfg.Vendors = map[string]VendorConfig{}
	}
	overrideVendor(cfg, "anthropic", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL", "")
	overrideVendor(cfg, "openai", "OPENAI_API_KEY", "OPENAI_BASE_URL", "")
	overrideVendor(cfg, "google", "GOOGLE_API_KEY", "GOOGLE_BASE_URL", "")
	overrideVendor(cfg, "bedrock", "AWS_ACCESS_KEY_ID", "", "AWS_REGION")
}

func overrideVendor(cfg *Config, name, apiKeyEnv, baseURLEnv, regionEnv string) {
	v := cfg.Vendors[name]
	if apiKeyEnv != "" {
		if val := strings.TrimSpace(os.Getenv(apiKeyEnv)); val != "" {
			v.APIKey = val
		}
	}
	if baseURLEnv != "" {
		if val := strings.TrimSpace(os.Getenv(baseURLEnv)); val != "" {
			v.BaseURL = val
		}
	}
	if regionEnv != "" {
		if val := strings.TrimSpace(os.Getenv(regionEnv)); val != "" {
			v.Region = val
		}
	}
	if v != (VendorConfig{}) {
		cfg.Vendors[name] = v
	}
}
