// Package middleware provides gin middleware for session loading, stamp
// revalidation and cross-origin policy.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/juanmaabanto/ms-identity/internal/session"
)

const principalKey = "session.principal"

// Session loads the protected session cookie and enforces stamp
// revalidation on endpoints that require a live account.
type Session struct {
	codec  *session.Codec
	guard  *session.Guard
	maxAge time.Duration
	logger *zap.Logger
}

// NewSession wires the session middleware.
func NewSession(codec *session.Codec, guard *session.Guard, maxAge time.Duration, logger *zap.Logger) *Session {
	return &Session{codec: codec, guard: guard, maxAge: maxAge, logger: logger}
}

// Load decodes the session cookie into the request context. A missing,
// tampered or malformed cookie leaves the request anonymous.
func (m *Session) Load(c *gin.Context) {
	value, err := c.Cookie(session.CookieName)
	if err == nil && value != "" {
		principal, err := m.codec.DecodePrincipal(value)
		if err != nil {
			m.logger.Debug("discarding undecodable session cookie", zap.Error(err))
		} else if len(principal.Identities) > 0 {
			c.Set(principalKey, principal)
		}
	}
	c.Next()
}

// Require rejects anonymous requests.
func (m *Session) Require(c *gin.Context) {
	if _, ok := Principal(c); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":             "unauthorized",
			"error_description": "authentication required",
		})
		return
	}
	c.Next()
}

// Revalidated rejects anonymous requests and checks the addressed identity
// against its stored security stamp. A stale identity is rebuilt, the
// cookie is rewritten from the surviving identities and the request is
// rejected so the client signs in again.
func (m *Session) Revalidated(c *gin.Context) {
	principal, ok := Principal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":             "unauthorized",
			"error_description": "authentication required",
		})
		return
	}

	outcome, err := m.guard.Revalidate(c.Request.Context(), principal, AuthUserIndex(c))
	if err != nil {
		m.logger.Error("session revalidation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "the session could not be validated",
		})
		return
	}

	if outcome.OK {
		c.Next()
		return
	}

	if outcome.Renew {
		if err := WriteSessionCookie(c, m.codec, outcome.Principal, m.maxAge); err != nil {
			m.logger.Error("session cookie rewrite failed", zap.Error(err))
		}
	} else {
		ClearSessionCookie(c)
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":             "unauthorized",
		"error_description": "the session is no longer valid",
	})
}

// Principal returns the decoded principal for the request, if any.
func Principal(c *gin.Context) (session.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return session.Principal{}, false
	}
	p, ok := v.(session.Principal)
	return p, ok
}

// AuthUserIndex parses the authuser query parameter. Absent or malformed
// values address the primary account.
func AuthUserIndex(c *gin.Context) int {
	raw := c.Query("authuser")
	if raw == "" {
		raw = c.PostForm("authuser")
	}
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0
	}
	return index
}

// WriteSessionCookie protects the principal and sets the session cookie.
// An empty principal clears the cookie instead.
func WriteSessionCookie(c *gin.Context, codec *session.Codec, p session.Principal, maxAge time.Duration) error {
	if len(p.Identities) == 0 {
		ClearSessionCookie(c)
		return nil
	}
	value, err := codec.EncodePrincipal(p)
	if err != nil {
		return err
	}
	setCookie(c, session.CookieName, value, int(maxAge.Seconds()))
	return nil
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context) {
	setCookie(c, session.CookieName, "", -1)
}

// WriteAccountsCookie protects and sets the known-accounts cookie.
func WriteAccountsCookie(c *gin.Context, codec *session.Codec, accounts []string, maxAge time.Duration) error {
	value, err := codec.EncodeAccounts(accounts)
	if err != nil {
		return err
	}
	setCookie(c, session.AccountsCookieName, value, int(maxAge.Seconds()))
	return nil
}

// Cookies are issued for cross-site client applications, so SameSite=None
// with Secure is required.
func setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(name, value, maxAge, "/", "", true, true)
}
