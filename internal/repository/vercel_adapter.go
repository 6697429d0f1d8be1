package repository

import (
	"context"
	"net/http"
	"time"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/devtrack-app/devtrack/internal/pkg/vercel"
	"github.com/devtrack-app/devtrack/internal/service"
)

// vercelAdapter implements service.ProviderAdapter over the raw Vercel
// client. All payload mapping happens here; nothing above this layer sees
// raw Vercel JSON.
type vercelAdapter struct {
	client          *vercel.Client
	deploymentLimit int
}

// NewVercelAdapter creates the Vercel provider adapter.
func NewVercelAdapter(client *vercel.Client, deploymentLimit int) service.ProviderAdapter {
	if deploymentLimit <= 0 {
		deploymentLimit = 100
	}
	return &vercelAdapter{client: client, deploymentLimit: deploymentLimit}
}

func (a *vercelAdapter) Name() service.Provider { return service.ProviderVercel }

func (a *vercelAdapter) SubResourceKinds() []service.SubResourceKind {
	return []service.SubResourceKind{service.KindDeployments}
}

func (a *vercelAdapter) AuthorizeURL(state, codeChallenge, redirectURI string) string {
	return a.client.AuthorizeURL(state, codeChallenge, redirectURI)
}

func (a *vercelAdapter) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*service.TokenResponse, error) {
	resp, err := a.client.ExchangeCode(ctx, code, codeVerifier, redirectURI)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return tokenResponseFromVercel(resp), nil
}

func (a *vercelAdapter) Refresh(ctx context.Context, refreshToken string) (*service.TokenResponse, error) {
	resp, err := a.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return tokenResponseFromVercel(resp), nil
}

func (a *vercelAdapter) Revoke(ctx context.Context, refreshToken string) error {
	if err := a.client.RevokeToken(ctx, refreshToken); err != nil {
		return mapUpstreamError(err)
	}
	return nil
}

func (a *vercelAdapter) ListProjects(ctx context.Context, accessToken string) ([]service.ProjectRef, error) {
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
			OrganizationID: p.AccountID,
			Status:         vercelProjectStatus(p),
			CreatedAt:      timeFromMillis(p.CreatedAt),
		})
	}
	return refs, nil
}

func (a *vercelAdapter) GetProjectDetails(ctx context.Context, accessToken, projectRef string) (*service.ProjectDetails, error) {
	p, err := a.client.GetProject(ctx, accessToken, projectRef)
	if err != nil {
		return nil, mapUpstreamError(err)
	}
	return &service.ProjectDetails{
		Ref:            p.ID,
		Name:           p.Name,
		OrganizationID: p.AccountID,
		Status:         vercelProjectStatus(*p),
		CreatedAt:      timeFromMillis(p.CreatedAt),
		Version:        p.NodeVer,
		Framework:      p.Framework,
	}, nil
}

func (a *vercelAdapter) GetBilling(ctx context.Context, accessToken, projectRef string) (*service.BillingInfo, error) {
	p, err := a.client.GetProject(ctx, accessToken, projectRef)
	if err != nil {
		mapped := mapUpstreamError(err)
		if billingTolerable(mapped) {
			return &service.BillingInfo{}, nil
		}
		return nil, mapped
	}

	plan := ""
	if p.AccountID != "" {
		if team, err := a.client.GetTeam(ctx, accessToken, p.AccountID); err == nil {
			plan = team.Billing.Plan
		}
	}
	if plan == "" {
		if user, err := a.client.GetUser(ctx, accessToken); err == nil {
			plan = user.User.Billing.Plan
		}
	}
	return &service.BillingInfo{Plan: service.NormalizePlanName(plan)}, nil
}

func (a *vercelAdapter) ListSubResources(ctx context.Context, accessToken, projectRef string, kind service.SubResourceKind) ([]service.ResourceItem, error) {
	if kind != service.KindDeployments {
		return nil, infraerrors.Newf(http.StatusBadRequest, service.ReasonValidation, "vercel does not expose %q", kind)
	}

	deployments, err := a.client.ListDeployments(ctx, accessToken, projectRef, a.deploymentLimit)
	if err != nil {
		return nil, mapUpstreamError(err)
	}

	items := make([]service.ResourceItem, 0, len(deployments))
	for _, d := range deployments {
		category := d.Framework
		if category == "" {
			category = d.Target
		}
		items = append(items, service.ResourceItem{
			ID:        d.UID,
			Name:      d.Name,
			Kind:      service.KindDeployments,
			Status:    d.State,
			Category:  category,
			URL:       d.URL,
			CreatedAt: timeFromMillis(d.Created),
		})
	}
	return items, nil
}

func tokenResponseFromVercel(resp *vercel.TokenResponse) *service.TokenResponse {
	return &service.TokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
	}
}

func vercelProjectStatus(p vercel.Project) string {
	if p.Paused {
		return "paused"
	}
	return "active"
}

func timeFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
