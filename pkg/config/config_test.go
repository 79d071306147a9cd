package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("region: eu-west-1\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if cfg.Region != "eu-west-1" {
		t.Fatalf("unexpected region: %q", cfg.Region)
	}
	if cfg.ProductKeyword != "AWS Control Tower Account Factory" {
		t.Fatalf("unexpected product keyword: %q", cfg.ProductKeyword)
	}
	if cfg.PollInterval.Duration() != 5*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval.Duration())
	}
	if cfg.PollTimeout.Duration() != 30*time.Second {
		t.Fatalf("unexpected poll timeout: %s", cfg.PollTimeout.Duration())
	}
}

func TestParseFull(t *testing.T) {
	t.Parallel()

	data := []byte(`
region: us-west-2
role_arn: arn:aws:iam::111111111111:role/AccountAdmin
product_keyword: Account Factory
poll_interval: 2s
poll_timeout: 5m
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if cfg.RoleARN != "arn:aws:iam::111111111111:role/AccountAdmin" {
		t.Fatalf("unexpected role ARN: %q", cfg.RoleARN)
	}
	if cfg.ProductKeyword != "Account Factory" {
		t.Fatalf("unexpected product keyword: %q", cfg.ProductKeyword)
	}
	if cfg.PollInterval.Duration() != 2*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.PollInterval.Duration())
	}
	if cfg.PollTimeout.Duration() != 5*time.Minute {
		t.Fatalf("unexpected poll timeout: %s", cfg.PollTimeout.Duration())
	}
}

func TestParseEnvExpansion(t *testing.T) {
	t.Setenv("TEST_ACCOUNTS_ROLE", "arn:aws:iam::222222222222:role/X")

	cfg, err := Parse([]byte("role_arn: ${TEST_ACCOUNTS_ROLE}\nregion: ${TEST_ACCOUNTS_REGION:-eu-central-1}\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if cfg.RoleARN != "arn:aws:iam::222222222222:role/X" {
		t.Fatalf("unexpected role ARN: %q", cfg.RoleARN)
	}
	if cfg.Region != "eu-central-1" {
		t.Fatalf("expected default region, got %q", cfg.Region)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		data          string
		wantErrSubstr string
	}{
		{
			name:          "unset env var without default",
			data:          "role_arn: ${DEFINITELY_NOT_SET_ANYWHERE}\n",
			wantErrSubstr: "is not set",
		},
		{
			name:          "invalid duration",
			data:          "poll_interval: soon\n",
			wantErrSubstr: `invalid duration "soon"`,
		},
		{
			name:          "negative timeout",
			data:          "poll_timeout: -1s\n",
			wantErrSubstr: "poll_timeout cannot be negative",
		},
		{
			name:          "invalid yaml",
			data:          "region: [\n",
			wantErrSubstr: "failed to parse YAML",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tc.data))
			if err == nil || !strings.Contains(err.Error(), tc.wantErrSubstr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErrSubstr, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "accounts.yaml")
	if err := os.WriteFile(path, []byte("region: eu-west-1\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Region != "eu-west-1" {
		t.Fatalf("unexpected region: %q", cfg.Region)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
