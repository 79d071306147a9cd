package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAssignCmd(opts *rootOptions, deps runDeps) *cobra.Command {
	var permissionSet, group string

	cmd := &cobra.Command{
		Use:   "assign ACCOUNT_ID",
		Short: "Assign a permission set to a group on an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := deps.newPermissions(cmd.Context(), opts)
			if err != nil {
				return err
			}

			assignments, err := svc.Assign(cmd.Context(), args[0], permissionSet, group)
			if err != nil {
				return err
			}

			for _, a := range assignments {
				fmt.Fprintf(deps.stdout, "Assigned %s to group %q on account %s\n", a.PermissionSetName, group, a.AccountID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&permissionSet, "permission-set", "", "permission set name to assign")
	cmd.Flags().StringVar(&group, "group", "", "Identity Center group to grant the permission set to")
	_ = cmd.MarkFlagRequired("permission-set")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func newUnassignCmd(opts *rootOptions, deps runDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign ACCOUNT_ID",
		Short: "Remove all permission set assignments from an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := deps.newPermissions(cmd.Context(), opts)
			if err != nil {
				return err
			}

			assignments, err := svc.Unassign(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(assignments) == 0 {
				fmt.Fprintf(deps.stdout, "No assignments found for account %s\n", args[0])
				return nil
			}

			for _, a := range assignments {
				fmt.Fprintf(deps.stdout, "Removed %s from account %s\n", a.PermissionSetName, a.AccountID)
			}
			return nil
		},
	}
}

func newAssignmentsCmd(opts *rootOptions, deps runDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "assignments ACCOUNT_ID",
		Short: "List permission set assignments for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := deps.newPermissions(cmd.Context(), opts)
			if err != nil {
				return err
			}

			assignments, err := svc.AccountAssignments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(assignments) == 0 {
				fmt.Fprintf(deps.stdout, "No assignments found for account %s\n", args[0])
				return nil
			}

			for _, a := range assignments {
				fmt.Fprintf(deps.stdout, "%s\t%s\t%s\n", a.PermissionSetName, a.PrincipalType, a.PrincipalID)
			}
			return nil
		},
	}
}
