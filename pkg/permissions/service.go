// Package permissions manages IAM Identity Center permission-set
// assignments for AWS accounts.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/identitystore"
	idtypes "github.com/aws/aws-sdk-go-v2/service/identitystore/types"
	"github.com/aws/aws-sdk-go-v2/service/ssoadmin"
	ssotypes "github.com/aws/aws-sdk-go-v2/service/ssoadmin/types"

	"github.com/eculver/aws-accounts/pkg/poll"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 30 * time.Second
)

// AdminAPI is the subset of the SSO Admin API used by the service.
type AdminAPI interface {
	ListInstances(ctx context.Context, params *ssoadmin.ListInstancesInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.ListInstancesOutput, error)
	ListPermissionSets(ctx context.Context, params *ssoadmin.ListPermissionSetsInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.ListPermissionSetsOutput, error)
	ListPermissionSetsProvisionedToAccount(ctx context.Context, params *ssoadmin.ListPermissionSetsProvisionedToAccountInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.ListPermissionSetsProvisionedToAccountOutput, error)
	DescribePermissionSet(ctx context.Context, params *ssoadmin.DescribePermissionSetInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.DescribePermissionSetOutput, error)
	ListAccountAssignments(ctx context.Context, params *ssoadmin.ListAccountAssignmentsInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.ListAccountAssignmentsOutput, error)
	CreateAccountAssignment(ctx context.Context, params *ssoadmin.CreateAccountAssignmentInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.CreateAccountAssignmentOutput, error)
	DeleteAccountAssignment(ctx context.Context, params *ssoadmin.DeleteAccountAssignmentInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.DeleteAccountAssignmentOutput, error)
	DescribeAccountAssignmentCreationStatus(ctx context.Context, params *ssoadmin.DescribeAccountAssignmentCreationStatusInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.DescribeAccountAssignmentCreationStatusOutput, error)
	DescribeAccountAssignmentDeletionStatus(ctx context.Context, params *ssoadmin.DescribeAccountAssignmentDeletionStatusInput, optFns ...func(*ssoadmin.Options)) (*ssoadmin.DescribeAccountAssignmentDeletionStatusOutput, error)
}

// IdentityAPI is the subset of the Identity Store API used by the service.
type IdentityAPI interface {
	ListGroups(ctx context.Context, params *identitystore.ListGroupsInput, optFns ...func(*identitystore.Options)) (*identitystore.ListGroupsOutput, error)
}

// Service manages permission-set assignments against SSO instances.
type Service struct {
	admin        AdminAPI
	identity     IdentityAPI
	logger       *slog.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// Option configures a [Service].
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPollInterval sets the interval between assignment status checks.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		s.pollInterval = d
	}
}

// WithPollTimeout sets the total budget for waiting on an assignment
// operation to reach a terminal state.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.pollTimeout = d
	}
}

// New creates a permission-set assignment service over the given SSO Admin
// and Identity Store clients.
func New(admin AdminAPI, identity IdentityAPI, opts ...Option) *Service {
	s := &Service{
		admin:        admin,
		identity:     identity,
		logger:       slog.Default(),
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Instances lists all IAM Identity Center instances.
func (s *Service) Instances(ctx context.Context) ([]Instance, error) {
	var instances []Instance
	var nextToken *string
	for {
		out, err := s.admin.ListInstances(ctx, &ssoadmin.ListInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("failed to list SSO instances: %w", err)
		}
		for _, meta := range out.Instances {
			instances = append(instances, Instance{
				ARN:             awsv2.ToString(meta.InstanceArn),
				IdentityStoreID: awsv2.ToString(meta.IdentityStoreId),
			})
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return instances, nil
}

// Assign grants the named group the named permission set on the account,
// waiting for each assignment to reach a terminal state. The permission
// set name is matched by substring against the sets of every instance,
// mirroring how operators refer to sets by partial name.
func (s *Service) Assign(ctx context.Context, accountID, permissionSetName, groupName string) ([]Assignment, error) {
	if accountID == "" {
		return nil, errors.New("account ID is required")
	}

	instances, err := s.Instances(ctx)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, errors.New("no IAM Identity Center instances found")
	}

	var assignments []Assignment
	for _, instance := range instances {
		fullName, psARN, err := s.permissionSetByName(ctx, instance.ARN, permissionSetName)
		if errors.Is(err, ErrPermissionSetNotFound) {
			continue
		}
		if err != nil {
			return assignments, err
		}

		groupID, err := s.groupIDByName(ctx, instance.IdentityStoreID, groupName)
		if err != nil {
			return assignments, err
		}

		out, err := s.admin.CreateAccountAssignment(ctx, &ssoadmin.CreateAccountAssignmentInput{
			InstanceArn:      awsv2.String(instance.ARN),
			TargetId:         awsv2.String(accountID),
			TargetType:       ssotypes.TargetTypeAwsAccount,
			PermissionSetArn: awsv2.String(psARN),
			PrincipalType:    ssotypes.PrincipalTypeGroup,
			PrincipalId:      awsv2.String(groupID),
		})
		if err != nil {
			return assignments, fmt.Errorf("failed to create account assignment for %s: %w", fullName, err)
		}
		if out.AccountAssignmentCreationStatus == nil {
			return assignments, fmt.Errorf("create account assignment for %s returned no status", fullName)
		}

		s.logger.Info("assignment creation requested",
			"permission_set", fullName, "account_id", accountID, "group", groupName,
			"status", out.AccountAssignmentCreationStatus.Status)

		final, err := s.waitForCreation(ctx, instance.ARN, awsv2.ToString(out.AccountAssignmentCreationStatus.RequestId))
		if err != nil {
			return assignments, err
		}
		if final.Status == ssotypes.StatusValuesFailed {
			return assignments, &AssignmentError{
				Operation:         "creation",
				PermissionSetName: fullName,
				Reason:            awsv2.ToString(final.FailureReason),
			}
		}

		assignments = append(assignments, Assignment{
			InstanceARN:       instance.ARN,
			AccountID:         accountID,
			PermissionSetARN:  psARN,
			PermissionSetName: fullName,
			PrincipalType:     ssotypes.PrincipalTypeGroup,
			PrincipalID:       groupID,
		})
	}

	if len(assignments) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrPermissionSetNotFound, permissionSetName)
	}
	return assignments, nil
}

// Unassign removes every permission-set assignment currently provisioned
// to the account, waiting for each deletion to reach a terminal state.
func (s *Service) Unassign(ctx context.Context, accountID string) ([]Assignment, error) {
	assignments, err := s.AccountAssignments(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		s.logger.Info("no permission sets assigned", "account_id", accountID)
		return nil, nil
	}

	removed := make([]Assignment, 0, len(assignments))
	for _, assignment := range assignments {
		out, err := s.admin.DeleteAccountAssignment(ctx, &ssoadmin.DeleteAccountAssignmentInput{
			InstanceArn:      awsv2.String(assignment.InstanceARN),
			TargetId:         awsv2.String(accountID),
			TargetType:       ssotypes.TargetTypeAwsAccount,
			PermissionSetArn: awsv2.String(assignment.PermissionSetARN),
			PrincipalType:    assignment.PrincipalType,
			PrincipalId:      awsv2.String(assignment.PrincipalID),
		})
		if err != nil {
			return removed, fmt.Errorf("failed to delete account assignment for %s: %w", assignment.PermissionSetName, err)
		}
		if out.AccountAssignmentDeletionStatus == nil {
			return removed, fmt.Errorf("delete account assignment for %s returned no status", assignment.PermissionSetName)
		}

		s.logger.Info("assignment deletion requested",
			"permission_set", assignment.PermissionSetName, "account_id", accountID,
			"status", out.AccountAssignmentDeletionStatus.Status)

		final, err := s.waitForDeletion(ctx, assignment.InstanceARN, awsv2.ToString(out.AccountAssignmentDeletionStatus.RequestId))
		if err != nil {
			return removed, err
		}
		if final.Status == ssotypes.StatusValuesFailed {
			return removed, &AssignmentError{
				Operation:         "deletion",
				PermissionSetName: assignment.PermissionSetName,
				Reason:            awsv2.ToString(final.FailureReason),
			}
		}

		removed = append(removed, assignment)
	}

	s.logger.Info("permission sets removed", "account_id", accountID, "count", len(removed))
	return removed, nil
}

// AccountAssignments enumerates the permission-set assignments currently
// provisioned to the account across all instances.
func (s *Service) AccountAssignments(ctx context.Context, accountID string) ([]Assignment, error) {
	if accountID == "" {
		return nil, errors.New("account ID is required")
	}

	instances, err := s.Instances(ctx)
	if err != nil {
		return nil, err
	}

	var assignments []Assignment
	for _, instance := range instances {
		psARNs, err := s.provisionedPermissionSets(ctx, instance.ARN, accountID)
		if err != nil {
			return nil, err
		}

		for _, psARN := range psARNs {
			name, err := s.permissionSetName(ctx, instance.ARN, psARN)
			if err != nil {
				return nil, err
			}

			var nextToken *string
			for {
				out, err := s.admin.ListAccountAssignments(ctx, &ssoadmin.ListAccountAssignmentsInput{
					InstanceArn:      awsv2.String(instance.ARN),
					AccountId:        awsv2.String(accountID),
					PermissionSetArn: awsv2.String(psARN),
					NextToken:        nextToken,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to list account assignments for %s: %w", name, err)
				}

				for _, assignment := range out.AccountAssignments {
					assignments = append(assignments, Assignment{
						InstanceARN:       instance.ARN,
						AccountID:         accountID,
						PermissionSetARN:  psARN,
						PermissionSetName: name,
						PrincipalType:     assignment.PrincipalType,
						PrincipalID:       awsv2.ToString(assignment.PrincipalId),
					})
				}

				if out.NextToken == nil {
					break
				}
				nextToken = out.NextToken
			}
		}
	}
	return assignments, nil
}

func (s *Service) waitForCreation(ctx context.Context, instanceARN, requestID string) (*ssotypes.AccountAssignmentOperationStatus, error) {
	return poll.Until(ctx,
		func(ctx context.Context) (*ssotypes.AccountAssignmentOperationStatus, error) {
			out, err := s.admin.DescribeAccountAssignmentCreationStatus(ctx, &ssoadmin.DescribeAccountAssignmentCreationStatusInput{
				InstanceArn:                        awsv2.String(instanceARN),
				AccountAssignmentCreationRequestId: awsv2.String(requestID),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to describe assignment creation %s: %w", requestID, err)
			}
			if out.AccountAssignmentCreationStatus == nil {
				return nil, fmt.Errorf("describe assignment creation %s returned no status", requestID)
			}
			return out.AccountAssignmentCreationStatus, nil
		},
		assignmentPending,
		poll.WithInterval(s.pollInterval),
		poll.WithTimeout(s.pollTimeout),
		poll.WithLogger(s.logger),
	)
}

func (s *Service) waitForDeletion(ctx context.Context, instanceARN, requestID string) (*ssotypes.AccountAssignmentOperationStatus, error) {
	return poll.Until(ctx,
		func(ctx context.Context) (*ssotypes.AccountAssignmentOperationStatus, error) {
			out, err := s.admin.DescribeAccountAssignmentDeletionStatus(ctx, &ssoadmin.DescribeAccountAssignmentDeletionStatusInput{
				InstanceArn:                        awsv2.String(instanceARN),
				AccountAssignmentDeletionRequestId: awsv2.String(requestID),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to describe assignment deletion %s: %w", requestID, err)
			}
			if out.AccountAssignmentDeletionStatus == nil {
				return nil, fmt.Errorf("describe assignment deletion %s returned no status", requestID)
			}
			return out.AccountAssignmentDeletionStatus, nil
		},
		assignmentPending,
		poll.WithInterval(s.pollInterval),
		poll.WithTimeout(s.pollTimeout),
		poll.WithLogger(s.logger),
	)
}

func assignmentPending(status *ssotypes.AccountAssignmentOperationStatus) bool {
	return status.Status == ssotypes.StatusValuesInProgress
}

// permissionSetByName resolves a permission set on the instance whose name
// contains the given name. The first match wins.
func (s *Service) permissionSetByName(ctx context.Context, instanceARN, name string) (string, string, error) {
	var nextToken *string
	for {
		out, err := s.admin.ListPermissionSets(ctx, &ssoadmin.ListPermissionSetsInput{
			InstanceArn: awsv2.String(instanceARN),
			NextToken:   nextToken,
		})
		if err != nil {
			return "", "", fmt.Errorf("failed to list permission sets: %w", err)
		}

		for _, psARN := range out.PermissionSets {
			fullName, err := s.permissionSetName(ctx, instanceARN, psARN)
			if err != nil {
				return "", "", err
			}
			if strings.Contains(fullName, name) {
				return fullName, psARN, nil
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return "", "", fmt.Errorf("%w: %q", ErrPermissionSetNotFound, name)
}

func (s *Service) permissionSetName(ctx context.Context, instanceARN, psARN string) (string, error) {
	out, err := s.admin.DescribePermissionSet(ctx, &ssoadmin.DescribePermissionSetInput{
		InstanceArn:      awsv2.String(instanceARN),
		PermissionSetArn: awsv2.String(psARN),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe permission set %s: %w", psARN, err)
	}
	if out.PermissionSet == nil {
		return "", fmt.Errorf("describe permission set %s returned no detail", psARN)
	}
	return awsv2.ToString(out.PermissionSet.Name), nil
}

// provisionedPermissionSets lists the permission sets provisioned to the
// account on the instance.
func (s *Service) provisionedPermissionSets(ctx context.Context, instanceARN, accountID string) ([]string, error) {
	var psARNs []string
	var nextToken *string
	for {
		out, err := s.admin.ListPermissionSetsProvisionedToAccount(ctx, &ssoadmin.ListPermissionSetsProvisionedToAccountInput{
			InstanceArn: awsv2.String(instanceARN),
			AccountId:   awsv2.String(accountID),
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list permission sets for account %s: %w", accountID, err)
		}
		psARNs = append(psARNs, out.PermissionSets...)
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return psARNs, nil
}

// groupIDByName resolves a group by exact display name in the identity
// store.
func (s *Service) groupIDByName(ctx context.Context, identityStoreID, name string) (string, error) {
	var nextToken *string
	for {
		out, err := s.identity.ListGroups(ctx, &identitystore.ListGroupsInput{
			IdentityStoreId: awsv2.String(identityStoreID),
			Filters: []idtypes.Filter{
				{
					AttributePath:  awsv2.String("DisplayName"),
					AttributeValue: awsv2.String(name),
				},
			},
			NextToken: nextToken,
		})
		if err != nil {
			return "", fmt.Errorf("failed to list groups: %w", err)
		}

		for _, group := range out.Groups {
			if group.GroupId != nil {
				return awsv2.ToString(group.GroupId), nil
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	return "", fmt.Errorf("%w: %q", ErrGroupNotFound, name)
}
