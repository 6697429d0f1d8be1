// Package vercel is a minimal Vercel API client covering the OAuth token
// endpoints and the project/deployment/billing reads the sync engine needs.
package vercel

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"
)

const (
	DefaultAPIBaseURL  = "https://api.vercel.com"
	DefaultAuthBaseURL = "https://vercel.com"
)

// APIError is a non-2xx reply from the Vercel API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vercel: status %d: %s", e.StatusCode, e.Message)
}

// Client calls the Vercel API. Construct once and share; it is safe for
// concurrent use.
type Client struct {
	apiBase      string
	authBase     string
	clientID     string
	clientSecret string
	http         *req.Client
}

// Options configures a Client.
type Options struct {
	APIBaseURL   string
	AuthBaseURL  string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// NewClient creates a Vercel client.
func NewClient(opts Options) *Client {
	apiBase := strings.TrimRight(opts.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	authBase := strings.TrimRight(opts.AuthBaseURL, "/")
	if authBase == "" {
		authBase = DefaultAuthBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiBase:      apiBase,
		authBase:     authBase,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		http:         req.C().SetTimeout(timeout),
	}
}

// ClientID returns the configured OAuth client id.
func (c *Client) ClientID() string { return c.clientID }

// AuthorizeURL builds the user-facing authorize endpoint URL.
func (c *Client) AuthorizeURL(state, codeChallenge, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")
	return c.authBase + "/oauth/authorize?" + q.Encode()
}

// ExchangeCode redeems an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", codeVerifier)
	return c.postToken(ctx, form)
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", refreshToken)
	return c.postToken(ctx, form)
}

// RevokeToken invalidates a refresh token upstream.
func (c *Client) RevokeToken(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("token", refreshToken)

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(c.apiBase + "/login/oauth/revoke")
	if err != nil {
		return fmt.Errorf("vercel: revoke request: %w", err)
	}
	if !resp.IsSuccessState() {
		return apiErrorFrom(resp)
	}
	return nil
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	var tokenResp TokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		SetSuccessResult(&tokenResp).
		Post(c.apiBase + "/login/oauth/token")
	if err != nil {
		return nil, fmt.Errorf("vercel: token request: %w", err)
	}
	if !resp.IsSuccessState() {
		return nil, apiErrorFrom(resp)
	}
	return &tokenResp, nil
}

// ListProjects fetches the token's visible projects.
func (c *Client) ListProjects(ctx context.Context, accessToken string) ([]Project, error) {
	var list ProjectList
	if err := c.get(ctx, accessToken, "/v9/projects", nil, &list); err != nil {
		return nil, err
	}
	return list.Projects, nil
}

// GetProject fetches one project by id or name.
func (c *Client) GetProject(ctx context.Context, accessToken, idOrName string) (*Project, error) {
	var project Project
	if err := c.get(ctx, accessToken, "/v9/projects/"+url.PathEscape(idOrName), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListDeployments fetches recent deployments for a project.
func (c *Client) ListDeployments(ctx context.Context, accessToken, projectID string, limit int) ([]Deployment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := url.Values{}
	q.Set("projectId", projectID)
	q.Set("limit", strconv.Itoa(limit))

	var list DeploymentList
	if err := c.get(ctx, accessToken, "/v6/deployments", q, &list); err != nil {
		return nil, err
	}
	return list.Deployments, nil
}

// GetTeam fetches a team, including its billing plan when visible.
func (c *Client) GetTeam(ctx context.Context, accessToken, teamID string) (*Team, error) {
	var team Team
	if err := c.get(ctx, accessToken, "/v2/teams/"+url.PathEscape(teamID), nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// GetUser fetches the token's user, for personal-account billing.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.get(ctx, accessToken, "/v2/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, query url.Values, out any) error {
	r := c.http.R().
		SetContext(ctx).
		SetBearerAuthToken(accessToken).
		SetSuccessResult(out)
	if len(query) > 0 {
		r.SetQueryString(query.Encode())
	}
	resp, err := r.Get(c.apiBase + path)
	if err != nil {
		return fmt.Errorf("vercel: GET %s: %w", path, err)
	}
	if !resp.IsSuccessState() {
		return apiErrorFrom(resp)
	}
	return nil
}

func apiErrorFrom(resp *req.Response) *APIError {
	body := resp.String()
	msg := gjson.Get(body, "error.message").String()
	if msg == "" {
		msg = gjson.Get(body, "error").String()
	}
	if msg == "" {
		msg = strings.TrimSpace(body)
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
