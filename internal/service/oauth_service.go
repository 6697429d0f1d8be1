package service

import (
	"context"
	"net/http"
	"time"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/devtrack-app/devtrack/internal/pkg/oauthstate"
	"github.com/devtrack-app/devtrack/internal/pkg/pkce"
	"github.com/devtrack-app/devtrack/internal/pkg/tokencrypt"
	"github.com/devtrack-app/devtrack/internal/pkg/uuidv7"
	"go.uber.org/zap"
)

// PendingCredentialTTL bounds how long exchanged tokens may sit unclaimed
// while the user selects which projects to attach.
const PendingCredentialTTL = time.Hour

// ProviderConfig is the OAuth application registration for one provider.
type ProviderConfig struct {
	ClientID    string
	RedirectURI string
}

// Authorization is a freshly initiated flow: the URL to redirect the user to
// and the transient session the callback will consume.
type Authorization struct {
	URL     string
	Session oauthstate.Session
}

// PendingCredential is the encrypted token pair produced right after code
// exchange, held until the user picks projects or the TTL lapses.
type PendingCredential struct {
	Provider    Provider             `json:"provider"`
	Credentials EncryptedCredentials `json:"credentials"`
	CreatedAt   time.Time            `json:"created_at"`
}

// ConnectInput finalizes a connection from a pending credential and the
// user's project selection.
type ConnectInput struct {
	UserID      string
	Provider    Provider
	Credentials EncryptedCredentials
	Projects    []ProjectRef
}

// OAuthService runs the PKCE authorization-code flow and manages the
// resulting connections.
type OAuthService struct {
	registry  *ProviderRegistry
	cipher    *tokencrypt.Cipher
	accounts  AccountStore
	providers map[Provider]ProviderConfig
	logger    *zap.Logger
}

// NewOAuthService creates the OAuth service.
func NewOAuthService(
	registry *ProviderRegistry,
	cipher *tokencrypt.Cipher,
	accounts AccountStore,
	providers map[Provider]ProviderConfig,
	logger *zap.Logger,
) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthService{
		registry:  registry,
		cipher:    cipher,
		accounts:  accounts,
		providers: providers,
		logger:    logger,
	}
}

// NewAuthorization generates the PKCE material and authorize URL for a
// provider. Fails with CONFIGURATION_ERROR when the provider has no client
// id registered.
func (s *OAuthService) NewAuthorization(provider Provider) (*Authorization, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}
	cfg, ok := s.providers[provider]
	if !ok || cfg.ClientID == "" {
		return nil, infraerrors.Newf(http.StatusInternalServerError, ReasonConfiguration,
			"no OAuth client id configured for %s", provider)
	}

	state, err := pkce.GenerateState()
	if err != nil {
		return nil, infraerrors.Internal(ReasonConfiguration, "failed to generate state").WithCause(err)
	}
	verifier, err := pkce.GenerateCodeVerifier()
	if err != nil {
		return nil, infraerrors.Internal(ReasonConfiguration, "failed to generate code verifier").WithCause(err)
	}
	challenge := pkce.GenerateCodeChallenge(verifier)

	return &Authorization{
		URL: adapter.AuthorizeURL(state, challenge, cfg.RedirectURI),
		Session: oauthstate.Session{
			Provider:     string(provider),
			State:        state,
			CodeVerifier: verifier,
			RedirectURI:  cfg.RedirectURI,
			CreatedAt:    time.Now(),
		},
	}, nil
}

// ExchangeCallback redeems the authorization code against the provider using
// the session's PKCE verifier and returns the encrypted pending credential.
// Token material exists in plaintext only inside this call.
func (s *OAuthService) ExchangeCallback(ctx context.Context, sess *oauthstate.Session, code string) (*PendingCredential, error) {
	provider, ok := ParseProvider(sess.Provider)
	if !ok {
		return nil, infraerrors.Newf(http.StatusBadRequest, ReasonValidation, "unknown provider %q in session", sess.Provider)
	}
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	tokenResp, err := adapter.Exchange(ctx, code, sess.CodeVerifier, sess.RedirectURI)
	if err != nil {
		// Upstream messages pass through redaction in the adapter layer,
		// so the reason is safe to show the user on the error page.
		return nil, infraerrors.Newf(http.StatusBadGateway, ReasonExchangeFailed,
			"authorization code exchange failed: %s", infraerrors.FromError(err).Message).WithCause(err)
	}
	if tokenResp.AccessToken == "" {
		return nil, infraerrors.New(http.StatusBadGateway, ReasonExchangeFailed,
			"provider returned no access token")
	}

	creds := EncryptedCredentials{}
	creds.AccessToken, err = s.cipher.Encrypt(tokenResp.AccessToken)
	if err != nil {
		return nil, infraerrors.Internal(ReasonConfiguration, "failed to encrypt access token").WithCause(err)
	}
	if tokenResp.RefreshToken != "" {
		creds.RefreshToken, err = s.cipher.Encrypt(tokenResp.RefreshToken)
		if err != nil {
			return nil, infraerrors.Internal(ReasonConfiguration, "failed to encrypt refresh token").WithCause(err)
		}
	}

	s.logger.Info("authorization code exchanged", zap.String("provider", string(provider)))

	return &PendingCredential{
		Provider:    provider,
		Credentials: creds,
		CreatedAt:   time.Now(),
	}, nil
}

// Connect merges the pending credential and selected projects into the
// user's ConnectedAccount, creating it on first connect. Project lists are
// deduplicated by ref; an existing connection keeps already-attached
// projects and adopts the fresh credentials.
func (s *OAuthService) Connect(ctx context.Context, input ConnectInput) (*ConnectedAccount, error) {
	if input.UserID == "" {
		return nil, infraerrors.New(http.StatusBadRequest, ReasonValidation, "userId is required")
	}
	if len(input.Projects) == 0 {
		return nil, infraerrors.New(http.StatusBadRequest, ReasonValidation, "at least one project is required")
	}
	if input.Credentials.AccessToken == "" {
		return nil, infraerrors.New(http.StatusBadRequest, ReasonValidation, "missing pending credentials")
	}

	now := time.Now()
	account, err := s.accounts.GetByUserAndProvider(ctx, input.UserID, input.Provider)
	if err != nil {
		return nil, err
	}
	if account == nil {
		id, err := uuidv7.New()
		if err != nil {
			return nil, infraerrors.Internal(infraerrors.UnknownReason, "generate account id").WithCause(err)
		}
		account = &ConnectedAccount{
			ID:        id,
			UserID:    input.UserID,
			Provider:  input.Provider,
			CreatedAt: now,
		}
	}

	account.Credentials = input.Credentials
	account.Projects = mergeProjects(account.Projects, input.Projects)
	account.UpdatedAt = now

	if err := s.accounts.Upsert(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account connected",
		zap.String("provider", string(input.Provider)),
		zap.String("user_id", input.UserID),
		zap.Int("projects", len(account.Projects)))
	return account, nil
}

// Disconnect best-effort-revokes the upstream grant and removes the stored
// connection. Revocation failure is logged, never fatal.
func (s *OAuthService) Disconnect(ctx context.Context, provider Provider, accountID, encryptedRefreshToken string) error {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return err
	}

	if encryptedRefreshToken != "" {
		if refreshToken, err := s.cipher.Decrypt(encryptedRefreshToken); err == nil {
			if err := adapter.Revoke(ctx, refreshToken); err != nil {
				s.logger.Warn("upstream token revocation failed",
					zap.String("provider", string(provider)),
					zap.Error(err))
			}
		} else {
			s.logger.Warn("could not decrypt refresh token for revocation",
				zap.String("provider", string(provider)))
		}
	}

	if accountID != "" {
		if err := s.accounts.DeleteByID(ctx, accountID); err != nil {
			return err
		}
	}
	return nil
}

// mergeProjects appends fresh selections onto existing ones, keeping the
// first occurrence of each ref.
func mergeProjects(existing, selected []ProjectRef) []ProjectRef {
	seen := make(map[string]struct{}, len(existing)+len(selected))
	merged := make([]ProjectRef, 0, len(existing)+len(selected))
	for _, list := range [][]ProjectRef{existing, selected} {
		for _, p := range list {
			if p.Ref == "" {
				continue
			}
			if _, ok := seen[p.Ref]; ok {
				continue
			}
			seen[p.Ref] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged
}
