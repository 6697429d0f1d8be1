package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/devtrack-app/devtrack/internal/pkg/supabase"
	"github.com/devtrack-app/devtrack/internal/service"
)

// supabaseAdapter implements service.ProviderAdapter over the raw Supabase
// Management API client.
type supabaseAdapter struct {
	client *supabase.Client
}

// NewSupabaseAdapter creates the Supabase provider adapter.
func NewSupabaseAdapter(client *supabase.Client) service.ProviderAdapter {
	return &supabaseAdapter{client: client}
}

func (a *supabaseAdapter) Name() service.Provider { return service.ProviderSupabase }

func (a *supabaseAdapter) SubResourceKinds() []service.SubResourceKind {
	return []service.SubResourceKind{service.KindFunctions, service.KindBuckets, service.KindBranches}
}

func (a *supabaseAdapter) AuthorizeURL(state, codeChallenge, redirectURI string) string {
	return a.client.AuthorizeURL(state, codeChallenge, redirectURI)
}

func (a *supabaseAdapter) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*service.TokenResponse, error) {
	resp, err := a.client.ExchangeCode(ctx, code, codeVerifier, redirectURI)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return tokenResponseFromSupabase(resp), nil
}

func (a *supabaseAdapter) Refresh(ctx context.Context, refreshToken string) (*service.TokenResponse, error) {
	resp, err := a.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return tokenResponseFromSupabase(resp), nil
}

func (a *supabaseAdapter) Revoke(ctx context.Context, refreshToken string) error {
	if err := a.client.RevokeToken(ctx, refreshToken); err != nil {
		return mapUpstreamError(err)
	}
	return nil
}

func (a *supabaseAdapter) ListProjects(ctx context.Context, accessToken string) ([]service.ProjectRef, error) {
	projects, err := a.client.ListProjects(ctx, accessToken)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	refs := make([]service.ProjectRef, 0, len(projects))
	for _, p := range projects {
		refs = append(refs, service.ProjectRef{
			Ref:            p.ID,
			ID:             p.ID,
			Name:           p.Name,
			OrganizationID: p.OrganizationID,
			Region:         p.Region,
			Status:         p.Status,
			CreatedAt:      timeFromRFC3339(p.CreatedAt),
		})
	}
	return refs, nil
}

func (a *supabaseAdapter) GetProjectDetails(ctx context.Context, accessToken, projectRef string) (*service.ProjectDetails, error) {
	p, err := a.client.GetProject(ctx, accessToken, projectRef)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return &service.ProjectDetails{
		Ref:            p.ID,
		Name:           p.Name,
		OrganizationID: p.OrganizationID,
		Status:         p.Status,
		Region:         p.Region,
		CreatedAt:      timeFromRFC3339(p.CreatedAt),
		Version:        p.Database.Version,
	}, nil
}

func (a *supabaseAdapter) GetBilling(ctx context.Context, accessToken, projectRef string) (*service.BillingInfo, error) {
	p, err := a.client.GetProject(ctx, accessToken, projectRef)
	if err != nil {
		mapped := mapUpstreamError(err)
		if billingTolerable(mapped) {
			return &service.BillingInfo{}, nil
		}
		return nil, mapped
	}

	billing := &service.BillingInfo{}
	if p.OrganizationID != "" {
		if org, err := a.client.GetOrganization(ctx, accessToken, p.OrganizationID); err == nil {
			billing.Plan = service.NormalizePlanName(org.Plan)
		}
	}
	if addons, err := a.client.GetBillingAddons(ctx, accessToken, projectRef); err == nil {
		for _, sel := range addons.SelectedAddons {
			billing.Addons = append(billing.Addons, service.BillingAddon{
				Name:    sel.Type,
				Variant: sel.Variant.Name,
			})
		}
	}
	return billing, nil
}

func (a *supabaseAdapter) ListSubResources(ctx context.Context, accessToken, projectRef string, kind service.SubResourceKind) ([]service.ResourceItem, error) {
	switch kind {
	case service.KindFunctions:
		return a.listFunctions(ctx, accessToken, projectRef)
	case service.KindBuckets:
		return a.listBuckets(ctx, accessToken, projectRef)
	case service.KindBranches:
		return a.listBranches(ctx, accessToken, projectRef)
	default:
		return nil, infraerrors.Newf(http.StatusBadRequest, service.ReasonValidation, "supabase does not expose %q", kind)
	}
}

func (a *supabaseAdapter) listFunctions(ctx context.Context, accessToken, projectRef string) ([]service.ResourceItem, error) {
	functions, err := a.client.ListFunctions(ctx, accessToken, projectRef)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	items := make([]service.ResourceItem, 0, len(functions))
	for _, fn := range functions {
		name := fn.Name
		if name == "" {
			name = fn.Slug
		}
		items = append(items, service.ResourceItem{
			ID:        fn.ID,
			Name:      name,
			Kind:      service.KindFunctions,
			Status:    fn.Status,
			Category:  fmt.Sprintf("v%d", fn.Version),
			CreatedAt: timeFromMillis(fn.CreatedAt),
		})
	}
	return items, nil
}

func (a *supabaseAdapter) listBuckets(ctx context.Context, accessToken, projectRef string) ([]service.ResourceItem, error) {
	buckets, err := a.client.ListBuckets(ctx, accessToken, projectRef)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	items := make([]service.ResourceItem, 0, len(buckets))
	for _, b := range buckets {
		visibility := "private"
		if b.Public {
			visibility = "public"
		}
		items = append(items, service.ResourceItem{
			ID:        b.ID,
			Name:      b.Name,
			Kind:      service.KindBuckets,
			Category:  visibility,
			CreatedAt: timeFromRFC3339(b.CreatedAt),
		})
	}
	return items, nil
}

func (a *supabaseAdapter) listBranches(ctx context.Context, accessToken, projectRef string) ([]service.ResourceItem, error) {
	branches, err := a.client.ListBranches(ctx, accessToken, projectRef)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	items := make([]service.ResourceItem, 0, len(branches))
	for _, b := range branches {
		role := "preview"
		if b.IsDefault {
			role = "default"
		}
		items = append(items, service.ResourceItem{
			ID:        b.ID,
			Name:      b.Name,
			Kind:      service.KindBranches,
			Status:    b.Status,
			Category:  role,
			CreatedAt: timeFromRFC3339(b.CreatedAt),
		})
	}
	return items, nil
}

func tokenResponseFromSupabase(resp *supabase.TokenResponse) *service.TokenResponse {
	return &service.TokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
	}
}

func timeFromRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
