// Package handler exposes the identity HTTP surface over gin.
package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/juanmaabanto/ms-identity/internal/config"
	"github.com/juanmaabanto/ms-identity/internal/domain"
	"github.com/juanmaabanto/ms-identity/internal/middleware"
	"github.com/juanmaabanto/ms-identity/internal/service"
	"github.com/juanmaabanto/ms-identity/internal/session"
)

// AccountHandler serves sign-in, account lookup, sign-out and the
// client-app access check.
type AccountHandler struct {
	Users  *service.UserService
	Codec  *session.Codec
	Cfg    config.Config
	Logger *zap.Logger
}

// NewAccountHandler creates the handler set.
func NewAccountHandler(users *service.UserService, codec *session.Codec, cfg config.Config, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{Users: users, Codec: codec, Cfg: cfg, Logger: logger}
}

// SignIn authenticates a credential pair and adds the account to the
// multi-account session. Accounts flagged for a password change are not
// signed in; the client is told to start the change flow instead.
func (h *AccountHandler) SignIn(c *gin.Context) {
	var req struct {
		UserName     string `form:"userName" json:"userName"`
		Password     string `form:"password" json:"password"`
		IsPersistent bool   `form:"isPersistent" json:"isPersistent"`
		Continue     string `form:"continue" json:"continue"`
	}
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.UserName) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "userName and password are required.",
		})
		return
	}

	user, err := h.Users.Authenticate(c.Request.Context(), req.UserName, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	if user.RequestPasswordChange || user.PasswordExpired(time.Now().UTC()) {
		c.JSON(http.StatusOK, gin.H{"requirePasswordChange": true})
		return
	}

	identity := session.Identity{
		UserName:      user.UserName,
		UserID:        user.ID,
		SecurityStamp: user.SecurityStamp,
	}

	principal := session.Principal{}
	if existing, ok := middleware.Principal(c); ok {
		principal = existing
	}
	principal.Identities = session.Merge(principal.Identities, identity)

	accounts, err := h.Codec.DecodeAccounts(h.accountsCookie(c))
	if err != nil {
		h.Logger.Warn("known-accounts cookie unreadable", zap.Error(err))
		respondError(c, domain.ErrCryptoFailure)
		return
	}
	accounts = session.Remember(accounts, user.UserName)

	if err := middleware.WriteAccountsCookie(c, h.Codec, accounts, h.Cfg.SessionCookieMaxAge); err != nil {
		h.Logger.Error("known-accounts cookie write failed", zap.Error(err))
		respondError(c, domain.ErrCryptoFailure)
		return
	}

	sessionMaxAge := time.Duration(0)
	if req.IsPersistent {
		sessionMaxAge = h.Cfg.SessionCookieMaxAge
	}
	if err := middleware.WriteSessionCookie(c, h.Codec, principal, sessionMaxAge); err != nil {
		h.Logger.Error("session cookie write failed", zap.Error(err))
		respondError(c, domain.ErrCryptoFailure)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": h.continueURL(req.Continue)})
}

// Lookup resolves a username to its profile for the sign-in screen. The
// alias and image are only disclosed to browsers that have signed into the
// account before; everyone else gets the bare username back.
func (h *AccountHandler) Lookup(c *gin.Context) {
	var req struct {
		UserName string `form:"userName" json:"userName"`
	}
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.UserName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "userName is required.",
		})
		return
	}

	profile, err := h.Users.FindByName(c.Request.Context(), req.UserName)
	if err != nil {
		respondError(c, err)
		return
	}

	accounts, err := h.Codec.DecodeAccounts(h.accountsCookie(c))
	if err != nil {
		h.Logger.Warn("known-accounts cookie unreadable", zap.Error(err))
		respondError(c, domain.ErrCryptoFailure)
		return
	}

	if !session.Contains(accounts, profile.UserName) {
		c.JSON(http.StatusOK, gin.H{"userName": profile.UserName})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SignOut drops the session cookie. The known-accounts cookie survives so
// returning users keep their account list.
func (h *AccountHandler) SignOut(c *gin.Context) {
	middleware.ClearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"url": h.Cfg.ReturnURL})
}

// Check reports the signed-in account's standing with a client application.
// The session middleware has already revalidated the addressed identity.
func (h *AccountHandler) Check(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("clientId"))
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "clientId is required.",
		})
		return
	}

	principal, _ := middleware.Principal(c)
	identity, ok := principal.At(middleware.AuthUserIndex(c))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "unauthorized",
			"error_description": "authentication required",
		})
		return
	}

	grant, err := h.Users.ClientAppGrant(c.Request.Context(), identity.UserName, clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// continueURL only honors absolute http(s) targets, anything else falls
// back to the configured return URL.
func (h *AccountHandler) continueURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.Cfg.ReturnURL
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return h.Cfg.ReturnURL
	}
	return raw
}

func (h *AccountHandler) accountsCookie(c *gin.Context) string {
	value, err := c.Cookie(session.AccountsCookieName)
	if err != nil {
		return ""
	}
	return value
}
