//go:build unit

package handler

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/devtrack-app/devtrack/internal/service"
)

// stubAdapter is a minimal ProviderAdapter for HTTP-level tests.
type stubAdapter struct {
	name service.Provider

	exchangeCalls atomic.Int64
	exchangeFn    func(ctx context.Context, code, codeVerifier, redirectURI string) (*service.TokenResponse, error)
	listFn        func(ctx context.Context, accessToken string) ([]service.ProjectRef, error)
	detailsFn     func(ctx context.Context, accessToken, projectRef string) (*service.ProjectDetails, error)
	subFn         func(ctx context.Context, accessToken, projectRef string, kind service.SubResourceKind) ([]service.ResourceItem, error)
}

func (a *stubAdapter) Name() service.Provider { return a.name }

func (a *stubAdapter) AuthorizeURL(state, codeChallenge, redirectURI string) string {
	return "https://provider.test/authorize?state=" + state + "&code_challenge=" + codeChallenge
}

func (a *stubAdapter) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*service.TokenResponse, error) {
	a.exchangeCalls.Add(1)
	if a.exchangeFn != nil {
		return a.exchangeFn(ctx, code, codeVerifier, redirectURI)
	}
	return &service.TokenResponse{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (a *stubAdapter) Refresh(ctx context.Context, refreshToken string) (*service.TokenResponse, error) {
	return &service.TokenResponse{AccessToken: "rotated-access", RefreshToken: "rotated-refresh"}, nil
}

func (a *stubAdapter) Revoke(ctx context.Context, refreshToken string) error { return nil }

func (a *stubAdapter) ListProjects(ctx context.Context, accessToken string) ([]service.ProjectRef, error) {
	if a.listFn != nil {
		return a.listFn(ctx, accessToken)
	}
	return []service.ProjectRef{{Ref: "p1", Name: "One"}}, nil
}

func (a *stubAdapter) GetProjectDetails(ctx context.Context, accessToken, projectRef string) (*service.ProjectDetails, error) {
	if a.detailsFn != nil {
		return a.detailsFn(ctx, accessToken, projectRef)
	}
	return &service.ProjectDetails{Ref: projectRef, Name: projectRef}, nil
}

func (a *stubAdapter) GetBilling(ctx context.Context, accessToken, projectRef string) (*service.BillingInfo, error) {
	return &service.BillingInfo{Plan: "Pro"}, nil
}

func (a *stubAdapter) ListSubResources(ctx context.Context, accessToken, projectRef string, kind service.SubResourceKind) ([]service.ResourceItem, error) {
	if a.subFn != nil {
		return a.subFn(ctx, accessToken, projectRef, kind)
	}
	return []service.ResourceItem{{ID: projectRef + "-1"}}, nil
}

func (a *stubAdapter) SubResourceKinds() []service.SubResourceKind {
	return []service.SubResourceKind{service.KindDeployments}
}

// stubAccounts is an in-memory AccountStore recording update calls.
type stubAccounts struct {
	byID     map[string]*service.ConnectedAccount
	updates  []service.AccountUpdates
	updateID string
}

func newStubAccounts() *stubAccounts {
	return &stubAccounts{byID: make(map[string]*service.ConnectedAccount)}
}

func (s *stubAccounts) GetByID(ctx context.Context, id string) (*service.ConnectedAccount, error) {
	if acc, ok := s.byID[id]; ok {
		cp := *acc
		return &cp, nil
	}
	return nil, nil
}

func (s *stubAccounts) GetByUserAndProvider(ctx context.Context, userID string, provider service.Provider) (*service.ConnectedAccount, error) {
	for _, acc := range s.byID {
		if acc.UserID == userID && acc.Provider == provider {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubAccounts) Upsert(ctx context.Context, account *service.ConnectedAccount) error {
	cp := *account
	s.byID[account.ID] = &cp
	return nil
}

func (s *stubAccounts) UpdateByID(ctx context.Context, id string, updates service.AccountUpdates) error {
	if _, ok := s.byID[id]; !ok {
		return sql.ErrNoRows
	}
	s.updateID = id
	s.updates = append(s.updates, updates)
	return nil
}

func (s *stubAccounts) DeleteByID(ctx context.Context, id string) error {
	delete(s.byID, id)
	return nil
}
