//go:build unit

package repository

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/devtrack-app/devtrack/internal/pkg/supabase"
	"github.com/devtrack-app/devtrack/internal/pkg/vercel"
	"github.com/devtrack-app/devtrack/internal/service"
	"github.com/stretchr/testify/require"
)

func TestMapUpstreamError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
		wantCode   int
	}{
		{
			name:       "vercel 401",
			err:        &vercel.APIError{StatusCode: 401, Message: "bad token"},
			wantReason: service.ReasonUpstreamUnauthorized,
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "supabase 429",
			err:        &supabase.APIError{StatusCode: 429, Message: "rate limited"},
			wantReason: service.ReasonUpstreamRateLimited,
			wantCode:   http.StatusTooManyRequests,
		},
		{
			name:       "supabase 500",
			err:        &supabase.APIError{StatusCode: 500, Message: "oops"},
			wantReason: service.ReasonUpstreamError,
			wantCode:   http.StatusInternalServerError,
		},
		{
			name:       "timeout",
			err:        context.DeadlineExceeded,
			wantReason: service.ReasonNetworkError,
			wantCode:   http.StatusGatewayTimeout,
		},
		{
			name:       "transport failure",
			err:        errors.New("dial tcp: connection refused"),
			wantReason: service.ReasonNetworkError,
			wantCode:   http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapUpstreamError(tt.err)
			require.Equal(t, tt.wantReason, infraerrors.Reason(mapped))
			require.Equal(t, tt.wantCode, infraerrors.Code(mapped))
		})
	}
}

func TestMapUpstreamError_CancellationPassesThrough(t *testing.T) {
	require.ErrorIs(t, mapUpstreamError(context.Canceled), context.Canceled)
	require.NoError(t, mapUpstreamError(nil))
}

func TestBillingTolerable(t *testing.T) {
	require.True(t, billingTolerable(nil))
	require.True(t, billingTolerable(mapUpstreamError(&vercel.APIError{StatusCode: 404, Message: "no team"})))
	require.True(t, billingTolerable(mapUpstreamError(&supabase.APIError{StatusCode: 500, Message: "oops"})))
	// A 401 must surface so the lifecycle can refresh.
	require.False(t, billingTolerable(mapUpstreamError(&vercel.APIError{StatusCode: 401, Message: "expired"})))
}

func TestTimeConversions(t *testing.T) {
	require.True(t, timeFromMillis(0).IsZero())
	got := timeFromMillis(1700000000000)
	require.Equal(t, 2023, got.UTC().Year())

	require.True(t, timeFromRFC3339("").IsZero())
	require.True(t, timeFromRFC3339("not-a-time").IsZero())
	parsed := timeFromRFC3339("2026-08-01T12:00:00Z")
	require.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), parsed.UTC())
}

func TestVercelProjectStatus(t *testing.T) {
	require.Equal(t, "paused", vercelProjectStatus(vercel.Project{Paused: true}))
	require.Equal(t, "active", vercelProjectStatus(vercel.Project{}))
}
