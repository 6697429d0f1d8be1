//go:build unit

package service

import (
	"context"
	"sync/atomic"
)

// mockAdapter implements ProviderAdapter with overridable func fields and
// call counters, for asserting lifecycle and aggregation policy.
type mockAdapter struct {
	name Provider

	authorizeURLFn  func(state, codeChallenge, redirectURI string) string
	exchangeFn      func(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error)
	refreshFn       func(ctx context.Context, refreshToken string) (*TokenResponse, error)
	revokeFn        func(ctx context.Context, refreshToken string) error
	listProjectsFn  func(ctx context.Context, accessToken string) ([]ProjectRef, error)
	projectDetailFn func(ctx context.Context, accessToken, projectRef string) (*ProjectDetails, error)
	billingFn       func(ctx context.Context, accessToken, projectRef string) (*BillingInfo, error)
	subResourcesFn  func(ctx context.Context, accessToken, projectRef string, kind SubResourceKind) ([]ResourceItem, error)
	kinds           []SubResourceKind

	exchangeCalls     atomic.Int64
	refreshCalls      atomic.Int64
	revokeCalls       atomic.Int64
	subResourceCalls  atomic.Int64
	projectDetailCall atomic.Int64
}

func newMockAdapter(name Provider) *mockAdapter {
	return &mockAdapter{name: name, kinds: []SubResourceKind{KindDeployments}}
}

func (m *mockAdapter) Name() Provider { return m.name }

func (m *mockAdapter) AuthorizeURL(state, codeChallenge, redirectURI string) string {
	if m.authorizeURLFn != nil {
		return m.authorizeURLFn(state, codeChallenge, redirectURI)
	}
	return "https://provider.test/oauth/authorize?state=" + state
}

func (m *mockAdapter) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error) {
	m.exchangeCalls.Add(1)
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code, codeVerifier, redirectURI)
	}
	return &TokenResponse{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (m *mockAdapter) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	m.refreshCalls.Add(1)
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return &TokenResponse{AccessToken: "rotated-access", RefreshToken: "rotated-refresh"}, nil
}

func (m *mockAdapter) Revoke(ctx context.Context, refreshToken string) error {
	m.revokeCalls.Add(1)
	if m.revokeFn != nil {
		return m.revokeFn(ctx, refreshToken)
	}
	return nil
}

func (m *mockAdapter) ListProjects(ctx context.Context, accessToken string) ([]ProjectRef, error) {
	if m.listProjectsFn != nil {
		return m.listProjectsFn(ctx, accessToken)
	}
	return nil, nil
}

func (m *mockAdapter) GetProjectDetails(ctx context.Context, accessToken, projectRef string) (*ProjectDetails, error) {
	m.projectDetailCall.Add(1)
	if m.projectDetailFn != nil {
		return m.projectDetailFn(ctx, accessToken, projectRef)
	}
	return &ProjectDetails{Ref: projectRef, Name: projectRef}, nil
}

func (m *mockAdapter) GetBilling(ctx context.Context, accessToken, projectRef string) (*BillingInfo, error) {
	if m.billingFn != nil {
		return m.billingFn(ctx, accessToken, projectRef)
	}
	return &BillingInfo{Plan: "Pro"}, nil
}

func (m *mockAdapter) ListSubResources(ctx context.Context, accessToken, projectRef string, kind SubResourceKind) ([]ResourceItem, error) {
	m.subResourceCalls.Add(1)
	if m.subResourcesFn != nil {
		return m.subResourcesFn(ctx, accessToken, projectRef, kind)
	}
	return nil, nil
}

func (m *mockAdapter) SubResourceKinds() []SubResourceKind { return m.kinds }

// mockAccountStore implements AccountStore in memory.
type mockAccountStore struct {
	byID     map[string]*ConnectedAccount
	upserts  int
	deletes  int
	updates  int
	updateFn func(id string, updates AccountUpdates) error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{byID: make(map[string]*ConnectedAccount)}
}

func (s *mockAccountStore) GetByID(ctx context.Context, id string) (*ConnectedAccount, error) {
	if acc, ok := s.byID[id]; ok {
		cp := *acc
		return &cp, nil
	}
	return nil, nil
}

func (s *mockAccountStore) GetByUserAndProvider(ctx context.Context, userID string, provider Provider) (*ConnectedAccount, error) {
	for _, acc := range s.byID {
		if acc.UserID == userID && acc.Provider == provider {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *mockAccountStore) Upsert(ctx context.Context, account *ConnectedAccount) error {
	s.upserts++
	cp := *account
	s.byID[account.ID] = &cp
	return nil
}

func (s *mockAccountStore) UpdateByID(ctx context.Context, id string, updates AccountUpdates) error {
	s.updates++
	if s.updateFn != nil {
		return s.updateFn(id, updates)
	}
	return nil
}

func (s *mockAccountStore) DeleteByID(ctx context.Context, id string) error {
	s.deletes++
	delete(s.byID, id)
	return nil
}
