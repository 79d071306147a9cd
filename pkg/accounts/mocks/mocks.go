package mocks

import (
	"context"
	"fmt"

	"github.com/eculver/aws-accounts/pkg/accounts"
)

type Service struct {
	CreateAccountFunc    func(ctx context.Context, in accounts.CreateAccountInput) (*accounts.Record, error)
	TerminateAccountFunc func(ctx context.Context, accountID string) ([]accounts.Record, error)

	CreateAccountCalls    int
	TerminateAccountCalls int
	LastCreateInput       accounts.CreateAccountInput
	LastAccountID         string
}

func (m *Service) CreateAccount(ctx context.Context, in accounts.CreateAccountInput) (*accounts.Record, error) {
	m.CreateAccountCalls++
	m.LastCreateInput = in
	if m.CreateAccountFunc == nil {
		return nil, fmt.Errorf("CreateAccountFunc is not set")
	}
	return m.CreateAccountFunc(ctx, in)
}

func (m *Service) TerminateAccount(ctx context.Context, accountID string) ([]accounts.Record, error) {
	m.TerminateAccountCalls++
	m.LastAccountID = accountID
	if m.TerminateAccountFunc == nil {
		return nil, fmt.Errorf("TerminateAccountFunc is not set")
	}
	return m.TerminateAccountFunc(ctx, accountID)
}
