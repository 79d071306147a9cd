// Package config provides YAML configuration parsing for the aws-accounts
// CLI.
//
// Example configuration:
//
//	region: eu-west-1
//	role_arn: ${ACCOUNTS_ROLE_ARN:-}
//	product_keyword: AWS Control Tower Account Factory
//	poll_interval: 5s
//	poll_timeout: 2m
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultProductKeyword = "AWS Control Tower Account Factory"
	defaultPollInterval   = 5 * time.Second
	defaultPollTimeout    = 30 * time.Second
)

// Config is the root configuration structure.
type Config struct {
	// Region is the AWS region. Falls back to the ambient SDK region
	// when empty.
	Region string `yaml:"region"`

	// RoleARN is an optional role to assume for all AWS calls.
	RoleARN string `yaml:"role_arn"`

	// ProductKeyword locates the account factory product in the
	// Service Catalog. Defaults to "AWS Control Tower Account Factory".
	ProductKeyword string `yaml:"product_keyword"`

	// PollInterval is the time between status checks on asynchronous
	// AWS operations. Defaults to 5s.
	PollInterval Duration `yaml:"poll_interval"`

	// PollTimeout is the total budget for waiting on an asynchronous
	// AWS operation. Defaults to 30s.
	PollTimeout Duration `yaml:"poll_timeout"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		ProductKeyword: defaultProductKeyword,
		PollInterval:   Duration(defaultPollInterval),
		PollTimeout:    Duration(defaultPollTimeout),
	}
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, expanding ${VAR} and
// ${VAR:-default} references against the environment and applying
// defaults.
func Parse(data []byte) (*Config, error) {
	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.ProductKeyword == "" {
		cfg.ProductKeyword = defaultProductKeyword
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PollInterval.Duration() <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval.Duration())
	}
	if c.PollTimeout.Duration() < 0 {
		return fmt.Errorf("poll_timeout cannot be negative, got %s", c.PollTimeout.Duration())
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment values. A reference without a default to an unset variable
// is an error.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
