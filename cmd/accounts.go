package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eculver/aws-accounts/pkg/accounts"
)

func newCreateAccountCmd(opts *rootOptions, deps runDeps) *cobra.Command {
	var in accounts.CreateAccountInput

	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Provision a new AWS account through the Account Factory",
		Long: `Provisions a new AWS account by launching the Control Tower Account Factory
product and waits for provisioning to finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := deps.newAccounts(cmd.Context(), opts)
			if err != nil {
				return err
			}

			record, err := svc.CreateAccount(cmd.Context(), in)
			if err != nil {
				return err
			}

			fmt.Fprintf(deps.stdout, "Account %q provisioned (record %s, status %s)\n", in.Name, record.ID, record.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "name for the new account")
	cmd.Flags().StringVar(&in.Email, "email", "", "root email address for the new account")
	cmd.Flags().StringVar(&in.OrgUnit, "ou", "", "organizational unit to place the account in")
	cmd.Flags().StringVar(&in.SSOUserEmail, "sso-email", "", "email of the initial IAM Identity Center user")
	cmd.Flags().StringVar(&in.SSOUserFirstName, "sso-first-name", "", "first name of the initial IAM Identity Center user")
	cmd.Flags().StringVar(&in.SSOUserLastName, "sso-last-name", "", "last name of the initial IAM Identity Center user")
	for _, name := range []string{"name", "email", "ou", "sso-email", "sso-first-name", "sso-last-name"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newTerminateAccountCmd(opts *rootOptions, deps runDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "terminate-account ACCOUNT_ID",
		Short: "Terminate the provisioned products backing an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := deps.newAccounts(cmd.Context(), opts)
			if err != nil {
				return err
			}

			records, err := svc.TerminateAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(deps.stdout, "No provisioned products found for account %s\n", args[0])
				return nil
			}

			for _, record := range records {
				fmt.Fprintf(deps.stdout, "Terminated %s (record %s, status %s)\n", record.ProvisionedProductID, record.ID, record.Status)
			}
			return nil
		},
	}
}
