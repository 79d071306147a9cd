package mocks

import (
	"context"
	"fmt"

	"github.com/eculver/aws-accounts/pkg/permissions"
)

type Service struct {
	AssignFunc             func(ctx context.Context, accountID, permissionSetName, groupName string) ([]permissions.Assignment, error)
	UnassignFunc           func(ctx context.Context, accountID string) ([]permissions.Assignment, error)
	AccountAssignmentsFunc func(ctx context.Context, accountID string) ([]permissions.Assignment, error)

	AssignCalls             int
	UnassignCalls           int
	AccountAssignmentsCalls int
	LastAccountID           string
	LastPermissionSetName   string
	LastGroupName           string
}

func (m *Service) Assign(ctx context.Context, accountID, permissionSetName, groupName string) ([]permissions.Assignment, error) {
	m.AssignCalls++
	m.LastAccountID = accountID
	m.LastPermissionSetName = permissionSetName
	m.LastGroupName = groupName
	if m.AssignFunc == nil {
		return nil, fmt.Errorf("AssignFunc is not set")
	}
	return m.AssignFunc(ctx, accountID, permissionSetName, groupName)
}

func (m *Service) Unassign(ctx context.Context, accountID string) ([]permissions.Assignment, error) {
	m.UnassignCalls++
	m.LastAccountID = accountID
	if m.UnassignFunc == nil {
		return nil, fmt.Errorf("UnassignFunc is not set")
	}
	return m.UnassignFunc(ctx, accountID)
}

func (m *Service) AccountAssignments(ctx context.Context, accountID string) ([]permissions.Assignment, error) {
	m.AccountAssignmentsCalls++
	m.LastAccountID = accountID
	if m.AccountAssignmentsFunc == nil {
		return nil, fmt.Errorf("AccountAssignmentsFunc is not set")
	}
	return m.AccountAssignmentsFunc(ctx, accountID)
}
