// Package supabase is a minimal Supabase Management API client covering the
// OAuth endpoints and the project/function/bucket/branch/billing reads the
// sync engine needs.
package supabase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://api.supabase.com"

// APIError is a non-2xx reply from the Management API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s", e.StatusCode, e.Message)
}

// Client calls the Supabase Management API. Safe for concurrent use.
type Client struct {
	base         string
	clientID     string
	clientSecret string
	http         *req.Client
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// NewClient creates a Supabase client.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:         base,
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
	return c.base + "/v1/oauth/authorize?" + q.Encode()
}

// ExchangeCode redeems an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", codeVerifier)
	return c.postToken(ctx, form)
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.postToken(ctx, form)
}

// RevokeToken invalidates a refresh token upstream.
func (c *Client) RevokeToken(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetFormDataFromValues(form).
		Post(c.base + "/v1/oauth/revoke")
	if err != nil {
		return fmt.Errorf("supabase: revoke request: %w", err)
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
		SetBasicAuth(c.clientID, c.clientSecret).
		SetFormDataFromValues(form).
		SetSuccessResult(&tokenResp).
		Post(c.base + "/v1/oauth/token")
	if err != nil {
		return nil, fmt.Errorf("supabase: token request: %w", err)
	}
	if !resp.IsSuccessState() {
		return nil, apiErrorFrom(resp)
	}
	return &tokenResp, nil
}

// ListProjects fetches the token's visible projects.
func (c *Client) ListProjects(ctx context.Context, accessToken string) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, accessToken, "/v1/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches one project by ref.
func (c *Client) GetProject(ctx context.Context, accessToken, ref string) (*Project, error) {
	var project Project
	if err := c.get(ctx, accessToken, "/v1/projects/"+url.PathEscape(ref), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListFunctions fetches a project's edge functions.
func (c *Client) ListFunctions(ctx context.Context, accessToken, ref string) ([]EdgeFunction, error) {
	var functions []EdgeFunction
	if err := c.get(ctx, accessToken, "/v1/projects/"+url.PathEscape(ref)+"/functions", &functions); err != nil {
		return nil, err
	}
	return functions, nil
}

// ListBuckets fetches a project's storage buckets.
func (c *Client) ListBuckets(ctx context.Context, accessToken, ref string) ([]StorageBucket, error) {
	var buckets []StorageBucket
	if err := c.get(ctx, accessToken, "/v1/projects/"+url.PathEscape(ref)+"/storage/buckets", &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// ListBranches fetches a project's database branches.
func (c *Client) ListBranches(ctx context.Context, accessToken, ref string) ([]Branch, error) {
	var branches []Branch
	if err := c.get(ctx, accessToken, "/v1/projects/"+url.PathEscape(ref)+"/branches", &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

// GetOrganization fetches an organization, including its plan when visible.
func (c *Client) GetOrganization(ctx context.Context, accessToken, slug string) (*Organization, error) {
	var org Organization
	if err := c.get(ctx, accessToken, "/v1/organizations/"+url.PathEscape(slug), &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// GetBillingAddons fetches a project's selected billing add-ons.
func (c *Client) GetBillingAddons(ctx context.Context, accessToken, ref string) (*BillingAddons, error) {
	var addons BillingAddons
	if err := c.get(ctx, accessToken, "/v1/projects/"+url.PathEscape(ref)+"/billing/addons", &addons); err != nil {
		return nil, err
	}
	return &addons, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBearerAuthToken(accessToken).
		SetSuccessResult(out).
		Get(c.base + path)
	if err != nil {
		return fmt.Errorf("supabase: GET %s: %w", path, err)
	}
	if !resp.IsSuccessState() {
		return apiErrorFrom(resp)
	}
	return nil
}

func apiErrorFrom(resp *req.Response) *APIError {
	body := resp.String()
	msg := gjson.Get(body, "message").String()
	if msg == "" {
		msg = gjson.Get(body, "error_description").String()
	}
	if msg == "" {
		msg = strings.TrimSpace(body)
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
