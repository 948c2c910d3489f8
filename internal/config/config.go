// Package config loads the exporter configuration from, in increasing
// precedence: built-in defaults, a YAML config file, CODAIO_* environment
// variables, and CLI flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultConfigFile is the config file name looked up in the working
// directory when --config is not given.
const DefaultConfigFile = "codaio-exporter.yaml"

// envPrefix namespaces the environment variables read by Load.
// Nested keys use a double underscore: CODAIO_RATE_LIMIT__RPS → rate_limit.rps.
const envPrefix = "CODAIO_"

// RateLimit configures the client-side request rate.
type RateLimit struct {
	// RPS is the steady-state requests per second.
	RPS float64 `koanf:"rps"`

	// Burst is the token-bucket burst size.
	Burst int `koanf:"burst"`
}

// Config is the resolved exporter configuration.
type Config struct {
	// APIToken is the Coda API bearer token. Required.
	APIToken string `koanf:"api_token"`

	// Concurrency is the maximum number of tables exported in parallel
	// per document.
	Concurrency int `koanf:"concurrency"`

	// RateLimit paces API requests across all workers.
	RateLimit RateLimit `koanf:"rate_limit"`

	// Retries is the maximum number of retries per API request.
	Retries int `koanf:"retries"`

	// BackoffInterval is how long all API traffic pauses after the server
	// reports a rate limit violation.
	BackoffInterval time.Duration `koanf:"backoff_interval"`
}

// Validate checks the resolved configuration. The API token is validated
// separately via RequireToken so commands can map a missing token to a
// dedicated exit code.
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate_limit.rps must be positive, got %v", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.burst must be positive, got %d", c.RateLimit.Burst)
	}
	if c.Retries <= 0 {
		return fmt.Errorf("retries must be positive, got %d", c.Retries)
	}
	if c.BackoffInterval <= 0 {
		return fmt.Errorf("backoff_interval must be positive, got %v", c.BackoffInterval)
	}
	return nil
}

// RequireToken returns an error when no API token was configured through
// any source.
func (c *Config) RequireToken() error {
	if c.APIToken == "" {
		return fmt.Errorf("no API token configured: set --api-token, CODAIO_API_TOKEN, or api_token in the config file")
	}
	return nil
}

// Load resolves the configuration.
//
// cfgFile is the --config flag value; when empty, DefaultConfigFile is used
// if it exists. flags may be nil; when given, flags that were explicitly set
// override everything else (kebab-case flag names map to snake_case keys).
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"api_token":        "",
		"concurrency":      10,
		"rate_limit.rps":   8.0,
		"rate_limit.burst": 16,
		"retries":          5,
		"backoff_interval": "10s",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// 2. Config file. An explicitly named file must exist; the default
	// file is optional.
	explicit := cfgFile != ""
	if !explicit {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			cfgFile = DefaultConfigFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
			}
		}
	}

	// 3. Environment variables.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// 4. Flags, highest precedence. Only flags the user actually set are
	// loaded, so defaults baked into flag definitions don't shadow the
	// config file.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			Result:           &cfg,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
