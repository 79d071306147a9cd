// Package awsclient builds and caches credentialed AWS service clients,
// optionally impersonating a role via STS AssumeRole.
package awsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	"github.com/aws/aws-sdk-go-v2/service/servicecatalog"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// roleSessionName is the deterministic session name used for every role
// assumption performed by the factory.
const roleSessionName = "aws-accounts"

// refreshSkew is how long before the STS-reported expiry a cached client's
// temporary credentials are considered stale and re-assumed.
const refreshSkew = 2 * time.Minute

type configLoader interface {
	LoadDefaultConfig(ctx context.Context, optFns ...func(*config.LoadOptions) error) (awsv2.Config, error)
}

type defaultConfigLoader struct{}

func (defaultConfigLoader) LoadDefaultConfig(ctx context.Context, optFns ...func(*config.LoadOptions) error) (awsv2.Config, error) {
	return config.LoadDefaultConfig(ctx, optFns...)
}

type stsAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

type stsClientFactory interface {
	NewFromConfig(cfg awsv2.Config) stsAPI
}

type defaultSTSClientFactory struct{}

func (defaultSTSClientFactory) NewFromConfig(cfg awsv2.Config) stsAPI {
	return sts.NewFromConfig(cfg)
}

// entry is a cached client together with the expiry of the temporary
// credentials it was built with. A zero expiry marks a client on the
// ambient credential chain, which is never refreshed here.
type entry struct {
	client    any
	expiresAt time.Time
}

// Factory builds AWS service clients and caches one instance per
// (service, role ARN) pair. Clients built via role assumption are
// re-created once their temporary credentials approach expiry.
//
// All methods are safe for concurrent use.
type Factory struct {
	region     string
	logger     *slog.Logger
	loader     configLoader
	stsFactory stsClientFactory

	mu      sync.Mutex
	clients map[string]entry
	base    *awsv2.Config
}

// Option configures a [Factory].
type Option func(*Factory)

// WithRegion overrides the ambient default region.
func WithRegion(region string) Option {
	return func(f *Factory) {
		f.region = region
	}
}

// WithLogger sets the logger used for credential events.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// New creates a client factory backed by AWS SDK v2.
func New(opts ...Option) *Factory {
	return newFactory(defaultConfigLoader{}, defaultSTSClientFactory{}, opts...)
}

func newFactory(loader configLoader, stsFactory stsClientFactory, opts ...Option) *Factory {
	f := &Factory{
		logger:     slog.Default(),
		loader:     loader,
		stsFactory: stsFactory,
		clients:    make(map[string]entry),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ServiceCatalog returns a Service Catalog client, impersonating roleARN
// when it is non-empty.
func (f *Factory) ServiceCatalog(ctx context.Context, roleARN string) (*servicecatalog.Client, error) {
	return clientFor(ctx, f, "servicecatalog", roleARN, func(cfg awsv2.Config) *servicecatalog.Client {
		return servicecatalog.NewFromConfig(cfg)
	})
}

// SSOAdmin returns an SSO Admin client, impersonating roleARN when it is
// non-empty.
func (f *Factory) SSOAdmin(ctx context.Context, roleARN string) (*ssoadmin.Client, error) {
	return clientFor(ctx, f, "ssoadmin", roleARN, func(cfg awsv2.Config) *ssoadmin.Client {
		return ssoadmin.NewFromConfig(cfg)
	})
}

// IdentityStore returns an Identity Store client, impersonating roleARN
// when it is non-empty.
func (f *Factory) IdentityStore(ctx context.Context, roleARN string) (*identitystore.Client, error) {
	return clientFor(ctx, f, "identitystore", roleARN, func(cfg awsv2.Config) *identitystore.Client {
		return identitystore.NewFromConfig(cfg)
	})
}

// clientFor is the shared get-or-create path. Creation happens under the
// cache lock, so concurrent calls for the same key perform at most one
// role assumption.
func clientFor[T any](ctx context.Context, f *Factory, service, roleARN string, build func(awsv2.Config) T) (T, error) {
	var zero T

	f.mu.Lock()
	defer f.mu.Unlock()

	key := cacheKey(service, roleARN)
	if e, ok := f.clients[key]; ok {
		if e.expiresAt.IsZero() || time.Now().Before(e.expiresAt.Add(-refreshSkew)) {
			return e.client.(T), nil
		}
		f.logger.Debug("cached credentials near expiry, re-assuming role",
			"service", service, "role_arn", roleARN, "expires_at", e.expiresAt)
		delete(f.clients, key)
	}

	cfg, expiresAt, err := f.clientConfig(ctx, roleARN)
	if err != nil {
		return zero, err
	}

	client := build(cfg)
	f.clients[key] = entry{client: client, expiresAt: expiresAt}
	return client, nil
}

func cacheKey(service, roleARN string) string {
	if roleARN == "" {
		roleARN = "ambient"
	}
	return service + ":" + roleARN
}

// clientConfig resolves the AWS config for a client: the ambient config
// when roleARN is empty, otherwise a copy carrying static temporary
// credentials for the assumed role.
func (f *Factory) clientConfig(ctx context.Context, roleARN string) (awsv2.Config, time.Time, error) {
	base, err := f.ambientConfig(ctx)
	if err != nil {
		return awsv2.Config{}, time.Time{}, err
	}
	if roleARN == "" {
		return base, time.Time{}, nil
	}

	out, err := f.stsFactory.NewFromConfig(base).AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         awsv2.String(roleARN),
		RoleSessionName: awsv2.String(roleSessionName),
	})
	if err != nil {
		return awsv2.Config{}, time.Time{}, &AuthorizationError{RoleARN: roleARN, Err: err}
	}
	if out.Credentials == nil {
		return awsv2.Config{}, time.Time{}, &AuthorizationError{
			RoleARN: roleARN,
			Err:     errors.New("STS AssumeRole returned empty credentials"),
		}
	}

	f.logger.Debug("assumed role", "role_arn", roleARN, "expires_at", awsv2.ToTime(out.Credentials.Expiration))

	cfg := base.Copy()
	cfg.Credentials = awsv2.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		awsv2.ToString(out.Credentials.AccessKeyId),
		awsv2.ToString(out.Credentials.SecretAccessKey),
		awsv2.ToString(out.Credentials.SessionToken),
	))
	return cfg, awsv2.ToTime(out.Credentials.Expiration), nil
}

// ambientConfig loads the default credential chain once and reuses it.
func (f *Factory) ambientConfig(ctx context.Context) (awsv2.Config, error) {
	if f.base != nil {
		return *f.base, nil
	}

	var opts []func(*config.LoadOptions) error
	if f.region != "" {
		opts = append(opts, config.WithRegion(f.region))
	}

	cfg, err := f.loader.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awsv2.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return awsv2.Config{}, errors.New("no AWS region configured: set --region or the AWS_REGION environment variable")
	}

	f.base = &cfg
	return cfg, nil
}
