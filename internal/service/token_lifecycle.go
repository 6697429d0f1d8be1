package service

import (
	"context"
	"net/http"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/devtrack-app/devtrack/internal/pkg/tokencrypt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TokenLifecycle wraps provider calls with the refresh-on-401 policy.
//
// Refresh is attempted at most once per invocation, with no retry loop:
// unbounded refresh retries against an OAuth provider risk lockouts.
// Concurrent invocations sharing one credential pair share a single in-flight
// refresh via singleflight.
type TokenLifecycle struct {
	cipher *tokencrypt.Cipher
	logger *zap.Logger

	refreshGroup singleflight.Group
}

// NewTokenLifecycle creates the lifecycle manager.
func NewTokenLifecycle(cipher *tokencrypt.Cipher, logger *zap.Logger) *TokenLifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenLifecycle{cipher: cipher, logger: logger}
}

// refreshOutcome is the shared result of one refresh exchange.
type refreshOutcome struct {
	pair    TokenPair
	rotated EncryptedCredentials
}

// InvokeWithRefresh decrypts the stored credentials, runs op, and on an
// upstream 401 performs exactly one refresh followed by exactly one retry.
// Rotated credentials are returned only when the retried op succeeds; callers
// persist them to avoid future unnecessary refreshes. A failed refresh, or a
// 401 with no refresh token on file, yields SESSION_EXPIRED: the connection
// needs a full reconnect.
func InvokeWithRefresh[T any](
	ctx context.Context,
	lc *TokenLifecycle,
	adapter ProviderAdapter,
	creds EncryptedCredentials,
	op func(ctx context.Context, accessToken string) (T, error),
) (T, *EncryptedCredentials, error) {
	var zero T

	accessToken, err := lc.cipher.Decrypt(creds.AccessToken)
	if err != nil {
		return zero, nil, decryptionError(err)
	}

	result, err := op(ctx, accessToken)
	if err == nil {
		return result, nil, nil
	}
	if !IsUnauthorized(err) {
		// Not an auth problem: rate limits, network and provider errors
		// propagate unchanged.
		return zero, nil, err
	}

	if creds.RefreshToken == "" {
		return zero, nil, infraerrors.New(http.StatusUnauthorized, ReasonSessionExpired,
			"access token rejected and no refresh token available").WithCause(err)
	}

	outcome, err := lc.refresh(ctx, adapter, creds)
	if err != nil {
		return zero, nil, err
	}

	result, err = op(ctx, outcome.pair.AccessToken)
	if err != nil {
		return zero, nil, err
	}
	rotated := outcome.rotated
	return result, &rotated, nil
}

// refresh performs the single refresh exchange, deduplicated across
// concurrent invocations by the encrypted refresh-token blob.
func (lc *TokenLifecycle) refresh(ctx context.Context, adapter ProviderAdapter, creds EncryptedCredentials) (*refreshOutcome, error) {
	v, err, shared := lc.refreshGroup.Do(creds.RefreshToken, func() (any, error) {
		return lc.doRefresh(ctx, adapter, creds)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		lc.logger.Debug("reused in-flight token refresh", zap.String("provider", string(adapter.Name())))
	}
	return v.(*refreshOutcome), nil
}

func (lc *TokenLifecycle) doRefresh(ctx context.Context, adapter ProviderAdapter, creds EncryptedCredentials) (*refreshOutcome, error) {
	refreshToken, err := lc.cipher.Decrypt(creds.RefreshToken)
	if err != nil {
		return nil, decryptionError(err)
	}

	tokenResp, err := adapter.Refresh(ctx, refreshToken)
	if err != nil {
		lc.logger.Warn("token refresh failed",
			zap.String("provider", string(adapter.Name())),
			zap.Error(err))
		return nil, infraerrors.New(http.StatusUnauthorized, ReasonSessionExpired,
			"token refresh failed; reconnect required").WithCause(err)
	}

	outcome := &refreshOutcome{
		pair: TokenPair{
			AccessToken:  tokenResp.AccessToken,
			RefreshToken: tokenResp.RefreshToken,
		},
	}
	// Some providers do not rotate the refresh token; keep the old one.
	if outcome.pair.RefreshToken == "" {
		outcome.pair.RefreshToken = refreshToken
	}

	encAccess, err := lc.cipher.Encrypt(outcome.pair.AccessToken)
	if err != nil {
		return nil, infraerrors.Internal(ReasonConfiguration, "failed to encrypt rotated access token").WithCause(err)
	}
	encRefresh, err := lc.cipher.Encrypt(outcome.pair.RefreshToken)
	if err != nil {
		return nil, infraerrors.Internal(ReasonConfiguration, "failed to encrypt rotated refresh token").WithCause(err)
	}
	outcome.rotated = EncryptedCredentials{AccessToken: encAccess, RefreshToken: encRefresh}

	lc.logger.Info("token refreshed", zap.String("provider", string(adapter.Name())))
	return outcome, nil
}

func decryptionError(err error) error {
	return infraerrors.New(http.StatusBadRequest, ReasonDecryption,
		"stored credentials could not be decrypted; reconnect required").WithCause(err)
}
