//go:build e2e

package integration

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devtrack-app/devtrack/internal/config"
	"github.com/devtrack-app/devtrack/internal/handler"
	"github.com/devtrack-app/devtrack/internal/pkg/oauthstate"
	"github.com/devtrack-app/devtrack/internal/pkg/tokencrypt"
	"github.com/devtrack-app/devtrack/internal/pkg/vercel"
	"github.com/devtrack-app/devtrack/internal/repository"
	"github.com/devtrack-app/devtrack/internal/server"
	"github.com/devtrack-app/devtrack/internal/service"
)

const (
	e2eClientID     = "oac_e2e_dashboard"
	e2eClientSecret = "e2e-client-secret"
	e2eAuthCode     = "e2e-auth-code"
	e2eFrontendURL  = "https://dash.e2e.test"
	e2eRedirectURI  = "https://api.e2e.test/api/v1/oauth/vercel/callback"

	initialAccessToken  = "vca_initial_access"
	initialRefreshToken = "vcr_initial_refresh"
	rotatedAccessToken  = "vca_rotated_access"
	rotatedRefreshToken = "vcr_rotated_refresh"
)

// fakeVercel is an in-process stand-in for the Vercel API covering every
// endpoint the engine touches during the connect-and-sync journey.
type fakeVercel struct {
	mu            sync.Mutex
	challenge     string
	validAccess   string
	exchangeCalls int
	refreshCalls  int
	revokeCalls   int

	srv *httptest.Server
}

func newFakeVercel() *fakeVercel {
	f := &fakeVercel{validAccess: initialAccessToken}

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/token", f.handleToken)
	mux.HandleFunc("/login/oauth/revoke", f.handleRevoke)
	mux.HandleFunc("/v9/projects", f.handleProjectList)
	mux.HandleFunc("/v9/projects/", f.handleProjectDetail)
	mux.HandleFunc("/v6/deployments", f.handleDeployments)
	mux.HandleFunc("/v2/teams/", f.handleTeam)
	mux.HandleFunc("/v2/user", f.handleUser)

	f.srv = httptest.NewServer(mux)
	return f
}

// setChallenge records the code_challenge the test extracted from the
// authorize redirect so the token endpoint can verify PKCE.
func (f *fakeVercel) setChallenge(challenge string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenge = challenge
}

// expireAccess invalidates the current access token, forcing the next API
// call into a 401 until a refresh rotates the pair.
func (f *fakeVercel) expireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validAccess = ""
}

func (f *fakeVercel) exchangeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls
}

func (f *fakeVercel) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeVercel) revokeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revokeCalls
}

func (f *fakeVercel) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeUpstreamError(w, http.StatusBadRequest, "malformed form")
		return
	}
	if r.PostFormValue("client_id") != e2eClientID || r.PostFormValue("client_secret") != e2eClientSecret {
		writeUpstreamError(w, http.StatusUnauthorized, "invalid client credentials")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.PostFormValue("grant_type") {
	case "authorization_code":
		f.exchangeCalls++
		if r.PostFormValue("code") != e2eAuthCode {
			writeUpstreamError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		sum := sha256.Sum256([]byte(r.PostFormValue("code_verifier")))
		if f.challenge == "" || base64.RawURLEncoding.EncodeToString(sum[:]) != f.challenge {
			writeUpstreamError(w, http.StatusBadRequest, "code verifier does not match challenge")
			return
		}
		writeJSON(w, map[string]any{
			"access_token":  initialAccessToken,
			"refresh_token": initialRefreshToken,
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	case "refresh_token":
		if r.PostFormValue("refresh_token") != initialRefreshToken {
			writeUpstreamError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		f.refreshCalls++
		f.validAccess = rotatedAccessToken
		writeJSON(w, map[string]any{
			"access_token":  rotatedAccessToken,
			"refresh_token": rotatedRefreshToken,
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	default:
		writeUpstreamError(w, http.StatusBadRequest, "unsupported_grant_type")
	}
}

func (f *fakeVercel) handleRevoke(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.revokeCalls++
	f.mu.Unlock()
	writeJSON(w, map[string]any{})
}

func (f *fakeVercel) authorized(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	valid := f.validAccess
	f.mu.Unlock()

	if valid == "" || r.Header.Get("Authorization") != "Bearer "+valid {
		writeUpstreamError(w, http.StatusUnauthorized, "invalid token")
		return false
	}
	return true
}

func (f *fakeVercel) handleProjectList(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	writeJSON(w, map[string]any{"projects": []any{e2eProjectJSON()}})
}

func (f *fakeVercel) handleProjectDetail(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	writeJSON(w, e2eProjectJSON())
}

func (f *fakeVercel) handleDeployments(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	if r.URL.Query().Get("projectId") != "prj_web" {
		writeUpstreamError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, map[string]any{"deployments": []any{
		map[string]any{
			"uid":       "dpl_1",
			"name":      "web",
			"url":       "web-abc123.vercel.app",
			"state":     "READY",
			"target":    "production",
			"framework": "nextjs",
			"created":   time.Now().Add(-2*time.Hour).UnixMilli(),
		},
		map[string]any{
			"uid":       "dpl_2",
			"name":      "web",
			"url":       "web-def456.vercel.app",
			"state":     "ERROR",
			"target":    "preview",
			"framework": "nextjs",
			"created":   time.Now().Add(-26*time.Hour).UnixMilli(),
		},
	}})
}

func (f *fakeVercel) handleTeam(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	writeJSON(w, map[string]any{
		"id":      "team_default",
		"slug":    "e2e-team",
		"billing": map[string]any{"plan": "pro"},
	})
}

func (f *fakeVercel) handleUser(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	writeJSON(w, map[string]any{"user": map[string]any{
		"id":      "user_1",
		"billing": map[string]any{"plan": "hobby"},
	}})
}

func e2eProjectJSON() map[string]any {
	return map[string]any{
		"id":          "prj_web",
		"name":        "web",
		"accountId":   "team_default",
		"framework":   "nextjs",
		"nodeVersion": "20.x",
		"createdAt":   time.Now().Add(-30*24*time.Hour).UnixMilli(),
		"paused":      false,
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeUpstreamError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q}}`, message)
}

// e2eApp assembles the full engine the way cmd/server does, backed by the
// in-memory account store and the fake upstream.
type e2eApp struct {
	engine   http.Handler
	accounts service.AccountStore
	upstream *fakeVercel
	cipher   *tokencrypt.Cipher

	// jar carries cookies between requests like a browser would.
	jar map[string]string
}

func newE2EApp(t *testing.T) *e2eApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := newFakeVercel()
	t.Cleanup(upstream.srv.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.FrontendURL = e2eFrontendURL
	cfg.Security.CookieSigningSecret = "e2e-signing-secret"
	cfg.OAuth.Vercel = config.ProviderOAuth{
		ClientID:     e2eClientID,
		ClientSecret: e2eClientSecret,
		RedirectURI:  e2eRedirectURI,
	}

	log := zap.NewNop()
	cipher := tokencrypt.NewInsecureDev()

	vercelClient := vercel.NewClient(vercel.Options{
		APIBaseURL:   upstream.srv.URL,
		AuthBaseURL:  upstream.srv.URL,
		ClientID:     e2eClientID,
		ClientSecret: e2eClientSecret,
		Timeout:      5 * time.Second,
	})
	registry := service.NewProviderRegistry(
		repository.NewVercelAdapter(vercelClient, cfg.Upstream.DeploymentPage),
	)

	accounts := repository.NewMemoryAccountRepository()
	states := oauthstate.NewCookieStore(cfg.Security.CookieSigningSecret, false)
	providerConfigs := map[service.Provider]service.ProviderConfig{
		service.ProviderVercel: {ClientID: e2eClientID, RedirectURI: e2eRedirectURI},
	}

	lifecycle := service.NewTokenLifecycle(cipher, log)
	oauthService := service.NewOAuthService(registry, cipher, accounts, providerConfigs, log)
	syncService := service.NewSyncService(registry, lifecycle, 4, log)
	t.Cleanup(syncService.Stop)

	engine := server.NewRouter(cfg, server.Handlers{
		OAuth:   handler.NewOAuthHandler(oauthService, states, cfg.Server.FrontendURL, false, log),
		Service: handler.NewServiceHandler(oauthService, syncService, accounts, false, log),
	}, nil, log)

	return &e2eApp{
		engine:   engine,
		accounts: accounts,
		upstream: upstream,
		cipher:   cipher,
		jar:      map[string]string{},
	}
}

// do sends one request through the engine, replaying and updating the
// cookie jar.
func (a *e2eApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range a.jar {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(a.jar, cookie.Name)
			continue
		}
		a.jar[cookie.Name] = cookie.Value
	}
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
