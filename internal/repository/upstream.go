package repository

import (
	"context"
	"errors"
	"net/http"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/devtrack-app/devtrack/internal/pkg/supabase"
	"github.com/devtrack-app/devtrack/internal/pkg/vercel"
	"github.com/devtrack-app/devtrack/internal/service"
	"github.com/devtrack-app/devtrack/internal/util/logredact"
)

// mapUpstreamError converts a raw client failure into the typed error the
// lifecycle and sync layers apply policy on. HTTP-level replies keep their
// upstream status; transport failures (timeouts, DNS, refused connections)
// become NETWORK_ERROR.
func mapUpstreamError(err error) error {
	if err == nil {
		return nil
	}

	var vercelErr *vercel.APIError
	if errors.As(err, &vercelErr) {
		return service.UpstreamErrorFromStatus(vercelErr.StatusCode, logredact.RedactText(vercelErr.Message))
	}
	var supabaseErr *supabase.APIError
	if errors.As(err, &supabaseErr) {
		return service.UpstreamErrorFromStatus(supabaseErr.StatusCode, logredact.RedactText(supabaseErr.Message))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return infraerrors.New(http.StatusGatewayTimeout, service.ReasonNetworkError, "upstream request timed out").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return infraerrors.Newf(http.StatusBadGateway, service.ReasonNetworkError, "upstream request failed: %s", logredact.RedactText(err.Error())).WithCause(err)
}

// upstreamStatus extracts the raw HTTP status from a typed upstream error,
// or 0 when err is not one.
func upstreamStatus(err error) int {
	var appErr *infraerrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return 0
}

// billingTolerable reports whether a billing fetch failure should degrade to
// an empty result. Auth failures still surface so token refresh can run.
func billingTolerable(err error) bool {
	if err == nil {
		return true
	}
	if service.IsUnauthorized(err) {
		return false
	}
	return upstreamStatus(err) != http.StatusUnauthorized
}
