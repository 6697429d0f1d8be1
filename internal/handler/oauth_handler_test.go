//go:build unit

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/devtrack-app/devtrack/internal/pkg/oauthstate"
	"github.com/devtrack-app/devtrack/internal/pkg/tokencrypt"
	"github.com/devtrack-app/devtrack/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testFrontend = "https://app.test"

type oauthFixture struct {
	router  *gin.Engine
	adapter *stubAdapter
	cipher  *tokencrypt.Cipher
	store   *stubAccounts
}

func newOAuthHandlerFixture(t *testing.T) *oauthFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	adapter := &stubAdapter{name: service.ProviderVercel}
	cipher := tokencrypt.NewInsecureDev()
	store := newStubAccounts()
	svc := service.NewOAuthService(
		service.NewProviderRegistry(adapter),
		cipher,
		store,
		map[service.Provider]service.ProviderConfig{
			service.ProviderVercel: {ClientID: "cid", RedirectURI: testFrontend + "/api/v1/oauth/vercel/callback"},
		},
		nil,
	)
	states := oauthstate.NewCookieStore("test-signing-secret", false)
	h := NewOAuthHandler(svc, states, testFrontend, false, nil)

	r := gin.New()
	r.GET("/api/v1/oauth/:provider/initiate", h.Initiate)
	r.GET("/api/v1/oauth/:provider/callback", h.Callback)
	return &oauthFixture{router: r, adapter: adapter, cipher: cipher, store: store}
}

// sessionCookie runs an initiate request and returns the oauth_session
// cookie plus the state embedded in the authorize redirect.
func (f *oauthFixture) sessionCookie(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/vercel/initiate", nil)
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	for _, ck := range w.Result().Cookies() {
		if ck.Name == oauthstate.CookieName {
			return ck, state
		}
	}
	t.Fatal("initiate did not set the session cookie")
	return nil, ""
}

func TestInitiate_RedirectsWithPKCE(t *testing.T) {
	f := newOAuthHandlerFixture(t)
	ck, state := f.sessionCookie(t)
	require.True(t, ck.HttpOnly)
	require.NotEmpty(t, state)
}

func TestInitiate_UnknownProvider(t *testing.T) {
	f := newOAuthHandlerFixture(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/github/initiate", nil)
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallback_HappyPathSetsPendingCookies(t *testing.T) {
	f := newOAuthHandlerFixture(t)
	ck, state := f.sessionCookie(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/vercel/callback?code=good-code&state="+state, nil)
	req.AddCookie(ck)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.True(t, strings.HasPrefix(w.Header().Get("Location"), testFrontend+"/connect/select"))
	require.EqualValues(t, 1, f.adapter.exchangeCalls.Load())

	cookies := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, CookiePendingAccessToken)
	require.Contains(t, cookies, CookiePendingRefreshToken)
	require.Contains(t, cookies, CookiePendingProvider)

	// Cookies carry ciphertext that decrypts to the exchanged tokens.
	// SetCookie query-escapes the value, so undo that first.
	blob, err := url.QueryUnescape(cookies[CookiePendingAccessToken].Value)
	require.NoError(t, err)
	access, err := f.cipher.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, "access-good-code", access)
}

func TestCallback_ExchangeFailureSurfacesUpstreamReason(t *testing.T) {
	f := newOAuthHandlerFixture(t)
	f.adapter.exchangeFn = func(ctx context.Context, code, codeVerifier, redirectURI string) (*service.TokenResponse, error) {
		return nil, service.UpstreamErrorFromStatus(http.StatusForbidden, "authorization code already redeemed")
	}
	ck, state := f.sessionCookie(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/vercel/callback?code=bad&state="+state, nil)
	req.AddCookie(ck)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/connect/error", loc.Path)
	require.Contains(t, loc.Query().Get("message"), "authorization code already redeemed")

	for _, c := range w.Result().Cookies() {
		require.NotEqual(t, CookiePendingAccessToken, c.Name, "no pending cookies on failure")
	}
}

func TestCallback_StateMismatchSkipsExchange(t *testing.T) {
	f := newOAuthHandlerFixture(t)
	ck, _ := f.sessionCookie(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/vercel/callback?code=good-code&state=forged-state", nil)
	req.AddCookie(ck)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.True(t, strings.HasPrefix(w.Header().Get("Location"), testFrontend+"/connect/error"))
	require.EqualValues(t, 0, f.adapter.exchangeCalls.Load(), "forged state must not reach the provider")
}

func TestCallback_MissingSessionSkipsExchange(t *testing.T) {
	f := newOAuthHandlerFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/vercel/callback?code=good-code&state=whatever", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	require.True(t, strings.HasPrefix(w.Header().Get("Location"), testFrontend+"/connect/error"))
	require.EqualValues(t, 0, f.adapter.exchangeCalls.Load())
}

func TestCallback_ProviderDenied(t *testing.T) {
	f := newOAuthHandlerFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/oauth/vercel/callback?error=access_denied&error_description=user+said+no", nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/connect/error", loc.Path)
	require.Equal(t, "user said no", loc.Query().Get("message"))
	require.EqualValues(t, 0, f.adapter.exchangeCalls.Load())
}

func TestCallback_SessionIsSingleUse(t *testing.T) {
	f := newOAuthHandlerFixture(t)
	ck, state := f.sessionCookie(t)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/vercel/callback?code=c1&state="+state, nil)
	req.AddCookie(ck)
	f.router.ServeHTTP(first, req)
	require.True(t, strings.HasPrefix(first.Header().Get("Location"), testFrontend+"/connect/select"))

	// The first callback cleared the cookie; replaying without it fails.
	second := httptest.NewRecorder()
	replay := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/vercel/callback?code=c2&state="+state, nil)
	f.router.ServeHTTP(second, replay)
	require.True(t, strings.HasPrefix(second.Header().Get("Location"), testFrontend+"/connect/error"))
	require.EqualValues(t, 1, f.adapter.exchangeCalls.Load())
}
