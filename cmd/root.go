package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eculver/aws-accounts/pkg/accounts"
	"github.com/eculver/aws-accounts/pkg/awsclient"
	"github.com/eculver/aws-accounts/pkg/config"
	"github.com/eculver/aws-accounts/pkg/permissions"
)

// accountService is the subset of the accounts service the CLI uses.
type accountService interface {
	CreateAccount(ctx context.Context, in accounts.CreateAccountInput) (*accounts.Record, error)
	TerminateAccount(ctx context.Context, accountID string) ([]accounts.Record, error)
}

// permissionService is the subset of the permissions service the CLI uses.
type permissionService interface {
	Assign(ctx context.Context, accountID, permissionSetName, groupName string) ([]permissions.Assignment, error)
	Unassign(ctx context.Context, accountID string) ([]permissions.Assignment, error)
	AccountAssignments(ctx context.Context, accountID string) ([]permissions.Assignment, error)
}

type rootOptions struct {
	configPath string
	region     string
	roleARN    string
	verbose    bool
}

type runDeps struct {
	newAccounts    func(ctx context.Context, opts *rootOptions) (accountService, error)
	newPermissions func(ctx context.Context, opts *rootOptions) (permissionService, error)
	stdout         io.Writer
	stderr         io.Writer
}

// NewRootCmd creates the root CLI command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultRunDeps())
}

func newRootCmd(deps runDeps) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "aws-accounts",
		Short: "Manage AWS accounts through Control Tower Account Factory and IAM Identity Center",
		Long: `Provisions and terminates AWS accounts through the Control Tower Account
Factory product in Service Catalog, and manages IAM Identity Center permission
set assignments for those accounts. Long-running operations are polled until
they complete or time out.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(deps.stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.region, "region", "", "AWS region (overrides config file and environment)")
	rootCmd.PersistentFlags().StringVar(&opts.roleARN, "role-arn", "", "IAM role to assume for AWS calls (defaults to ambient credentials)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newCreateAccountCmd(opts, deps),
		newTerminateAccountCmd(opts, deps),
		newAssignCmd(opts, deps),
		newUnassignCmd(opts, deps),
		newAssignmentsCmd(opts, deps),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func defaultRunDeps() runDeps {
	return runDeps{
		newAccounts: func(ctx context.Context, opts *rootOptions) (accountService, error) {
			cfg, err := loadSettings(opts)
			if err != nil {
				return nil, err
			}
			factory := awsclient.New(awsclient.WithRegion(cfg.Region))
			catalog, err := factory.ServiceCatalog(ctx, cfg.RoleARN)
			if err != nil {
				return nil, err
			}
			return accounts.New(catalog,
				accounts.WithProductKeyword(cfg.ProductKeyword),
				accounts.WithPollInterval(cfg.PollInterval.Duration()),
				accounts.WithPollTimeout(cfg.PollTimeout.Duration()),
			), nil
		},
		newPermissions: func(ctx context.Context, opts *rootOptions) (permissionService, error) {
			cfg, err := loadSettings(opts)
			if err != nil {
				return nil, err
			}
			factory := awsclient.New(awsclient.WithRegion(cfg.Region))
			admin, err := factory.SSOAdmin(ctx, cfg.RoleARN)
			if err != nil {
				return nil, err
			}
			identity, err := factory.IdentityStore(ctx, cfg.RoleARN)
			if err != nil {
				return nil, err
			}
			return permissions.New(admin, identity,
				permissions.WithPollInterval(cfg.PollInterval.Duration()),
				permissions.WithPollTimeout(cfg.PollTimeout.Duration()),
			), nil
		},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// loadSettings merges the config file, if any, with flag overrides.
func loadSettings(opts *rootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.region != "" {
		cfg.Region = opts.region
	}
	if opts.roleARN != "" {
		cfg.RoleARN = opts.roleARN
	}
	return cfg, nil
}
