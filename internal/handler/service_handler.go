package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	infraerrors "github.com/devtrack-app/devtrack/internal/pkg/errors"
	"github.com/devtrack-app/devtrack/internal/pkg/response"
	"github.com/devtrack-app/devtrack/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceHandler exposes the connect / sync / data / disconnect operations.
// Encrypted tokens travel in the request and response bodies; the handler
// also writes them through to the account store when the record exists, but
// the caller remains responsible for its own copy.
type ServiceHandler struct {
	oauthService *service.OAuthService
	syncService  *service.SyncService
	accounts     service.AccountStore
	cookieSecure bool
	logger       *zap.Logger
}

// NewServiceHandler creates the services handler.
func NewServiceHandler(oauthService *service.OAuthService, syncService *service.SyncService, accounts service.AccountStore, cookieSecure bool, logger *zap.Logger) *ServiceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceHandler{
		oauthService: oauthService,
		syncService:  syncService,
		accounts:     accounts,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type connectRequest struct {
	UserID   string               `json:"userId" binding:"required"`
	Projects []service.ProjectRef `json:"projects" binding:"required"`
}

// Connect finalizes a connection from the pending-credential cookies set by
// the OAuth callback and the user's project selection.
// POST /api/v1/services/connect
func (h *ServiceHandler) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "userId and projects are required")
		return
	}

	accessToken, err := c.Cookie(CookiePendingAccessToken)
	if err != nil || accessToken == "" {
		response.BadRequest(c, "no pending credentials; restart the authorization flow")
		return
	}
	refreshToken, _ := c.Cookie(CookiePendingRefreshToken)
	providerName, _ := c.Cookie(CookiePendingProvider)
	provider, ok := service.ParseProvider(providerName)
	if !ok {
		response.BadRequest(c, "no pending credentials; restart the authorization flow")
		return
	}

	account, err := h.oauthService.Connect(c.Request.Context(), service.ConnectInput{
		UserID:      req.UserID,
		Provider:    provider,
		Credentials: service.EncryptedCredentials{AccessToken: accessToken, RefreshToken: refreshToken},
		Projects:    req.Projects,
	})
	if response.ErrorFrom(c, err) {
		return
	}

	h.clearPendingCookies(c)
	response.Success(c, gin.H{
		"service":  account.Provider,
		"id":       account.ID,
		"projects": account.Projects,
	})
}

// Projects lists the provider's projects for the selection step, using the
// pending credentials from the callback cookies.
// GET /api/v1/services/projects
func (h *ServiceHandler) Projects(c *gin.Context) {
	accessToken, err := c.Cookie(CookiePendingAccessToken)
	if err != nil || accessToken == "" {
		response.BadRequest(c, "no pending credentials; restart the authorization flow")
		return
	}
	refreshToken, _ := c.Cookie(CookiePendingRefreshToken)
	providerName, _ := c.Cookie(CookiePendingProvider)
	provider, ok := service.ParseProvider(providerName)
	if !ok {
		response.BadRequest(c, "no pending credentials; restart the authorization flow")
		return
	}

	projects, rotated, err := h.syncService.ListProjects(c.Request.Context(), provider, service.EncryptedCredentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
	if response.ErrorFrom(c, err) {
		return
	}

	payload := gin.H{"provider": provider, "projects": projects}
	if rotated != nil {
		// Keep the transfer cookies in step with the rotation.
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookiePendingAccessToken, rotated.AccessToken, pendingCookieMaxAge, "/", "", h.cookieSecure, true)
		if rotated.RefreshToken != "" {
			c.SetCookie(CookiePendingRefreshToken, rotated.RefreshToken, pendingCookieMaxAge, "/", "", h.cookieSecure, true)
		}
	}
	response.Success(c, payload)
}

type syncRequest struct {
	ServiceID             string `json:"serviceId"`
	Provider              string `json:"provider"`
	EncryptedToken        string `json:"encryptedToken" binding:"required"`
	EncryptedRefreshToken string `json:"encryptedRefreshToken"`
	ProjectRef            string `json:"projectRef" binding:"required"`
}

// syncUpdates is the write-back block the caller persists on its side.
type syncUpdates struct {
	LastSyncedAt          time.Time `json:"lastSyncedAt"`
	SyncError             string    `json:"syncError,omitempty"`
	EncryptedToken        string    `json:"encryptedToken,omitempty"`
	EncryptedRefreshToken string    `json:"encryptedRefreshToken,omitempty"`
}

// Sync refreshes one project's snapshot.
// POST /api/v1/services/sync
func (h *ServiceHandler) Sync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "encryptedToken and projectRef are required")
		return
	}
	provider, ok := h.resolveProvider(c, req.Provider, req.ServiceID)
	if !ok {
		return
	}

	creds := service.EncryptedCredentials{
		AccessToken:  req.EncryptedToken,
		RefreshToken: req.EncryptedRefreshToken,
	}
	outcome, err := h.syncService.Sync(c.Request.Context(), provider, creds, []string{req.ProjectRef})
	now := time.Now().UTC()
	if err != nil {
		h.writeSyncFailure(c, req.ServiceID, err, now)
		return
	}

	updates := syncUpdates{LastSyncedAt: now}
	if outcome.Rotated != nil {
		updates.EncryptedToken = outcome.Rotated.AccessToken
		updates.EncryptedRefreshToken = outcome.Rotated.RefreshToken
	}
	h.persistOutcome(c, req.ServiceID, outcome, now)

	response.Success(c, gin.H{
		"updates": updates,
		"data":    outcome.Result,
	})
}

type dataRequest struct {
	ServiceID             string   `json:"serviceId"`
	Provider              string   `json:"provider"`
	EncryptedToken        string   `json:"encryptedToken" binding:"required"`
	EncryptedRefreshToken string   `json:"encryptedRefreshToken"`
	ProjectRefs           []string `json:"projectRefs" binding:"required"`
}

// Data aggregates the full snapshot across the selected projects.
// POST /api/v1/services/data
func (h *ServiceHandler) Data(c *gin.Context) {
	var req dataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "encryptedToken and projectRefs are required")
		return
	}
	provider, ok := h.resolveProvider(c, req.Provider, req.ServiceID)
	if !ok {
		return
	}

	creds := service.EncryptedCredentials{
		AccessToken:  req.EncryptedToken,
		RefreshToken: req.EncryptedRefreshToken,
	}
	outcome, err := h.syncService.Sync(c.Request.Context(), provider, creds, req.ProjectRefs)
	if err != nil {
		h.writeSyncFailure(c, req.ServiceID, err, time.Now().UTC())
		return
	}
	h.persistOutcome(c, req.ServiceID, outcome, time.Now().UTC())

	payload := gin.H{"data": outcome.Result}
	if outcome.Rotated != nil {
		payload["newTokens"] = outcome.Rotated
	}
	response.Success(c, payload)
}

type disconnectRequest struct {
	ServiceID             string `json:"serviceId"`
	Provider              string `json:"provider"`
	EncryptedRefreshToken string `json:"encryptedRefreshToken"`
}

// Disconnect removes the connection after best-effort upstream revocation.
// POST /api/v1/services/disconnect
func (h *ServiceHandler) Disconnect(c *gin.Context) {
	var req disconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "malformed disconnect request")
		return
	}
	provider, ok := h.resolveProvider(c, req.Provider, req.ServiceID)
	if !ok {
		return
	}

	err := h.oauthService.Disconnect(c.Request.Context(), provider, req.ServiceID, req.EncryptedRefreshToken)
	if response.ErrorFrom(c, err) {
		return
	}
	response.Success(c, gin.H{"disconnected": true})
}

// resolveProvider takes the provider from the body, falling back to the
// stored account when only serviceId is given. Writes the error response on
// failure.
func (h *ServiceHandler) resolveProvider(c *gin.Context, providerName, serviceID string) (service.Provider, bool) {
	if providerName != "" {
		provider, ok := service.ParseProvider(providerName)
		if !ok {
			response.BadRequest(c, "unsupported provider "+providerName)
			return "", false
		}
		return provider, true
	}

	if serviceID != "" {
		account, err := h.accounts.GetByID(c.Request.Context(), serviceID)
		if err != nil {
			h.logger.Error("account lookup failed", zap.String("service_id", serviceID), zap.Error(err))
			response.InternalError(c, "could not resolve service")
			return "", false
		}
		if account != nil {
			return account.Provider, true
		}
	}

	response.BadRequest(c, "provider or a known serviceId is required")
	return "", false
}

// writeSyncFailure surfaces the upstream failure with its original status
// and the syncError write-back block, and records it on the account.
func (h *ServiceHandler) writeSyncFailure(c *gin.Context, serviceID string, err error, now time.Time) {
	appErr := infraerrors.FromError(err)
	h.logger.Warn("sync failed",
		zap.String("service_id", serviceID),
		zap.String("reason", appErr.Reason),
		zap.Error(err))

	msg := appErr.Message
	if serviceID != "" {
		syncErr := msg
		if updErr := h.accounts.UpdateByID(c.Request.Context(), serviceID, service.AccountUpdates{
			SyncError:    &syncErr,
			LastSyncedAt: &now,
		}); updErr != nil && !errors.Is(updErr, sql.ErrNoRows) {
			h.logger.Warn("could not record sync error", zap.Error(updErr))
		}
	}

	c.JSON(appErr.Code, response.Response{
		Code:    appErr.Code,
		Message: msg,
		Reason:  appErr.Reason,
		Data: gin.H{
			"updates": syncUpdates{LastSyncedAt: now, SyncError: msg},
		},
	})
}

// persistOutcome writes the snapshot, rotation and cleared syncError through
// to the store when the account record exists. Store misses are expected for
// callers that manage persistence themselves.
func (h *ServiceHandler) persistOutcome(c *gin.Context, serviceID string, outcome *service.SyncOutcome, now time.Time) {
	if serviceID == "" {
		return
	}

	snapshot, err := json.Marshal(outcome.Result)
	if err != nil {
		h.logger.Warn("could not serialize snapshot", zap.Error(err))
		snapshot = nil
	}
	noError := ""
	updates := service.AccountUpdates{
		LastSyncedAt: &now,
		SyncError:    &noError,
		Snapshot:     snapshot,
		SnapshotAt:   &now,
	}
	if outcome.Rotated != nil {
		updates.Credentials = outcome.Rotated
	}

	if err := h.accounts.UpdateByID(c.Request.Context(), serviceID, updates); err != nil && !errors.Is(err, sql.ErrNoRows) {
		h.logger.Warn("could not persist sync outcome",
			zap.String("service_id", serviceID),
			zap.Error(err))
	}
}

func (h *ServiceHandler) clearPendingCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookiePendingAccessToken, "", -1, "/", "", h.cookieSecure, true)
	c.SetCookie(CookiePendingRefreshToken, "", -1, "/", "", h.cookieSecure, true)
	c.SetCookie(CookiePendingProvider, "", -1, "/", "", h.cookieSecure, true)
}
