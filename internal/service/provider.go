package service

import (
	"context"
	"net/http"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
)

// Error reasons shared across the engine. Upstream reasons carry the
// provider's HTTP status so it can be passed through to the caller.
const (
	ReasonValidation           = "VALIDATION_ERROR"
	ReasonConfiguration        = "CONFIGURATION_ERROR"
	ReasonOAuthDenied          = "OAUTH_DENIED"
	ReasonCSRFMismatch         = "CSRF_MISMATCH"
	ReasonMissingPKCEData      = "MISSING_PKCE_DATA"
	ReasonExchangeFailed       = "EXCHANGE_FAILED"
	ReasonDecryption           = "DECRYPTION_ERROR"
	ReasonSessionExpired       = "SESSION_EXPIRED"
	ReasonUpstreamUnauthorized = "UPSTREAM_UNAUTHORIZED"
	ReasonUpstreamForbidden    = "UPSTREAM_FORBIDDEN"
	ReasonUpstreamRateLimited  = "UPSTREAM_RATE_LIMITED"
	ReasonUpstreamError        = "UPSTREAM_ERROR"
	ReasonNetworkError         = "NETWORK_ERROR"
)

// UpstreamErrorFromStatus classifies a provider HTTP failure into the typed
// error the lifecycle and sync layers apply policy on.
func UpstreamErrorFromStatus(statusCode int, message string) *infraerrors.Error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return infraerrors.New(http.StatusUnauthorized, ReasonUpstreamUnauthorized, message)
	case statusCode == http.StatusForbidden:
		return infraerrors.New(http.StatusForbidden, ReasonUpstreamForbidden, message)
	case statusCode == http.StatusTooManyRequests:
		return infraerrors.New(http.StatusTooManyRequests, ReasonUpstreamRateLimited, message)
	default:
		code := statusCode
		if code < 400 || code > 599 {
			code = http.StatusBadGateway
		}
		return infraerrors.New(code, ReasonUpstreamError, message)
	}
}

// IsUnauthorized reports whether err is the provider rejecting the access
// token. Only this triggers the refresh-and-retry path.
func IsUnauthorized(err error) bool {
	return infraerrors.IsReason(err, ReasonUpstreamUnauthorized)
}

// IsSessionExpired reports whether err means the connection needs a full
// reconnect.
func IsSessionExpired(err error) bool {
	return infraerrors.IsReason(err, ReasonSessionExpired)
}

// ProviderAdapter is the capability contract over one provider. Adapters map
// raw provider payloads into the normalized shapes at the boundary; absent
// fields become empty values, never adapter-level failures. Genuine HTTP
// errors surface via UpstreamErrorFromStatus.
type ProviderAdapter interface {
	Name() Provider

	// AuthorizeURL builds the provider authorize endpoint URL for the
	// PKCE flow.
	AuthorizeURL(state, codeChallenge, redirectURI string) string

	// Exchange redeems an authorization code with its PKCE verifier.
	Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error)

	// Refresh exchanges a refresh token for a new token pair.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)

	// Revoke invalidates the upstream grant. Best-effort: callers log and
	// continue on failure.
	Revoke(ctx context.Context, refreshToken string) error

	ListProjects(ctx context.Context, accessToken string) ([]ProjectRef, error)

	GetProjectDetails(ctx context.Context, accessToken, projectRef string) (*ProjectDetails, error)

	// GetBilling tolerates the endpoint being unavailable: it returns an
	// empty BillingInfo rather than failing the call.
	GetBilling(ctx context.Context, accessToken, projectRef string) (*BillingInfo, error)

	// ListSubResources fetches one kind for one project. Items are not
	// yet tagged with the project ref; the sync layer stamps them.
	ListSubResources(ctx context.Context, accessToken, projectRef string, kind SubResourceKind) ([]ResourceItem, error)

	// SubResourceKinds lists the kinds this provider exposes.
	SubResourceKinds() []SubResourceKind
}

// ProviderRegistry resolves adapters by provider name.
type ProviderRegistry struct {
	adapters map[Provider]ProviderAdapter
}

// NewProviderRegistry builds a registry over the given adapters.
func NewProviderRegistry(adapters ...ProviderAdapter) *ProviderRegistry {
	m := make(map[Provider]ProviderAdapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &ProviderRegistry{adapters: m}
}

// Get returns the adapter for the provider.
func (r *ProviderRegistry) Get(p Provider) (ProviderAdapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, infraerrors.Newf(http.StatusBadRequest, ReasonValidation, "unsupported provider %q", p)
	}
	return a, nil
}
