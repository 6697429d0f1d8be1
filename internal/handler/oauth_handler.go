package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/devtrack-app/devtrack/internal/pkg/oauthstate"
	"github.com/devtrack-app/devtrack/internal/pkg/response"
	"github.com/devtrack-app/devtrack/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pending-credential cookies set by the callback and consumed by the connect
// endpoint while the user picks projects.
const (
	CookiePendingAccessToken  = "pending_access_token"
	CookiePendingRefreshToken = "pending_refresh_token"
	CookiePendingProvider     = "pending_provider"

	pendingCookieMaxAge = int(service.PendingCredentialTTL / time.Second)
)

// OAuthHandler drives the PKCE flow over HTTP. Callback failures always
// redirect back to the frontend with a message; the user never sees a bare
// 500 mid-flow.
type OAuthHandler struct {
	oauthService *service.OAuthService
	states       oauthstate.Store
	frontendURL  string
	cookieSecure bool
	logger       *zap.Logger
}

// NewOAuthHandler creates the OAuth flow handler.
func NewOAuthHandler(oauthService *service.OAuthService, states oauthstate.Store, frontendURL string, cookieSecure bool, logger *zap.Logger) *OAuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthHandler{
		oauthService: oauthService,
		states:       states,
		frontendURL:  frontendURL,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// Initiate starts the flow for a provider.
// GET /api/v1/oauth/:provider/initiate
func (h *OAuthHandler) Initiate(c *gin.Context) {
	provider, ok := service.ParseProvider(c.Param("provider"))
	if !ok {
		response.BadRequest(c, fmt.Sprintf("unsupported provider %q", c.Param("provider")))
		return
	}

	auth, err := h.oauthService.NewAuthorization(provider)
	if err != nil {
		h.logger.Error("oauth initiation failed",
			zap.String("provider", string(provider)),
			zap.Error(err))
		response.ErrorFrom(c, err)
		return
	}
	if err := h.states.Save(c, &auth.Session); err != nil {
		h.logger.Error("could not persist oauth session", zap.Error(err))
		response.InternalError(c, "could not start authorization")
		return
	}

	c.Redirect(http.StatusFound, auth.URL)
}

// Callback finishes the flow: validates state and PKCE data, exchanges the
// code, and hands the encrypted tokens to the frontend via transfer cookies.
// GET /api/v1/oauth/:provider/callback
func (h *OAuthHandler) Callback(c *gin.Context) {
	providerParam := c.Param("provider")

	if errParam := c.Query("error"); errParam != "" {
		msg := c.Query("error_description")
		if msg == "" {
			msg = "authorization was denied"
		}
		h.logger.Info("oauth flow denied",
			zap.String("provider", providerParam),
			zap.String("error", errParam))
		h.redirectError(c, msg)
		return
	}

	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		h.redirectError(c, "missing code or state in callback")
		return
	}

	sess, err := h.states.Consume(c, state)
	switch err {
	case nil:
	case oauthstate.ErrStateMismatch:
		h.logger.Warn("oauth state mismatch", zap.String("provider", providerParam))
		h.redirectError(c, "state verification failed, please retry the connection")
		return
	default:
		h.logger.Warn("no pending oauth session", zap.String("provider", providerParam))
		h.redirectError(c, "authorization session expired, please retry the connection")
		return
	}
	if sess.Provider != providerParam {
		h.redirectError(c, "callback does not match the initiated provider")
		return
	}

	pending, err := h.oauthService.ExchangeCallback(c.Request.Context(), sess, code)
	if err != nil {
		h.logger.Error("code exchange failed",
			zap.String("provider", providerParam),
			zap.Error(err))
		h.redirectError(c, infraerrors.FromError(err).Message)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookiePendingAccessToken, pending.Credentials.AccessToken, pendingCookieMaxAge, "/", "", h.cookieSecure, true)
	if pending.Credentials.RefreshToken != "" {
		c.SetCookie(CookiePendingRefreshToken, pending.Credentials.RefreshToken, pendingCookieMaxAge, "/", "", h.cookieSecure, true)
	}
	c.SetCookie(CookiePendingProvider, string(pending.Provider), pendingCookieMaxAge, "/", "", h.cookieSecure, true)

	c.Redirect(http.StatusFound, fmt.Sprintf("%s/connect/select?provider=%s", h.frontendURL, pending.Provider))
}

// redirectError sends the user back to the frontend error page. Exact
// failure detail stays in the logs; the query carries a displayable message.
func (h *OAuthHandler) redirectError(c *gin.Context, message string) {
	c.Redirect(http.StatusFound,
		fmt.Sprintf("%s/connect/error?message=%s", h.frontendURL, url.QueryEscape(message)))
}
