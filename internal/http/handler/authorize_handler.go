package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/juanmaabanto/ms-identity/internal/claims"
	"github.com/juanmaabanto/ms-identity/internal/config"
	"github.com/juanmaabanto/ms-identity/internal/domain"
	"github.com/juanmaabanto/ms-identity/internal/middleware"
	"github.com/juanmaabanto/ms-identity/internal/repository"
	"github.com/juanmaabanto/ms-identity/internal/service"
	"github.com/juanmaabanto/ms-identity/internal/ticket"
)

// AuthorizeHandler accepts an authorization request for a signed-in
// account, assembles the claim set for the selected company and issues the
// ticket.
type AuthorizeHandler struct {
	Users      *service.UserService
	ClientApps repository.ClientAppRepository
	Issuer     ticket.Issuer
	Cfg        config.Config
	Logger     *zap.Logger
}

// NewAuthorizeHandler creates the handler.
func NewAuthorizeHandler(users *service.UserService, clientApps repository.ClientAppRepository, issuer ticket.Issuer, cfg config.Config, logger *zap.Logger) *AuthorizeHandler {
	return &AuthorizeHandler{Users: users, ClientApps: clientApps, Issuer: issuer, Cfg: cfg, Logger: logger}
}

// Accept validates the client, resolves the company context for the
// addressed identity and signs the authorization ticket.
func (h *AuthorizeHandler) Accept(c *gin.Context) {
	var req struct {
		ClientID    string `form:"client_id"`
		RedirectURI string `form:"redirect_uri"`
		Scope       string `form:"scope"`
		CompanyID   string `form:"company_id"`
	}
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.ClientID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "client_id is required.",
		})
		return
	}

	principal, _ := middleware.Principal(c)
	identity, ok := principal.At(middleware.AuthUserIndex(c))
	if !ok || identity.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "unauthorized",
			"error_description": "authentication required",
		})
		return
	}

	app, err := h.ClientApps.FindByID(c.Request.Context(), strings.TrimSpace(req.ClientID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondError(c, domain.ErrInvalidClient)
			return
		}
		h.Logger.Error("client app lookup failed", zap.Error(err))
		respondError(c, err)
		return
	}
	if !app.Active {
		respondError(c, domain.ErrInvalidClient)
		return
	}
	if redirect := strings.TrimSpace(req.RedirectURI); redirect != "" && redirect != app.RedirectURI {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "redirect_uri is not registered for this client.",
		})
		return
	}

	companyCtx, err := h.Users.CompanyContext(c.Request.Context(), identity.UserID, strings.TrimSpace(req.CompanyID))
	if err != nil {
		respondError(c, err)
		return
	}

	set := buildClaims(companyCtx, app.ID, h.Cfg.TicketAudience)
	scopes := ticket.GrantedScopes(strings.Fields(req.Scope))

	issued, err := h.Issuer.Issue(c.Request.Context(), companyCtx.UserID, set.AccessTokenClaims(), set.IdentityTokenClaims(), scopes)
	if err != nil {
		h.Logger.Error("ticket issuance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "the authorization ticket could not be issued",
		})
		return
	}

	c.JSON(http.StatusOK, issued)
}

// buildClaims routes each claim to its token. Company and client bindings
// stay in the access token; display claims go to the identity token.
func buildClaims(ctx service.CompanyContext, clientID, audience string) claims.Set {
	var set claims.Set
	set.Add(claims.NameSubject, ctx.UserID, claims.DestinationBoth)
	set.Add(claims.NameUserID, ctx.UserID, claims.DestinationAccessToken)
	set.Add(claims.NameCompanyID, ctx.Company.CompanyID, claims.DestinationAccessToken)
	set.Add(claims.NameClientID, clientID, claims.DestinationAccessToken)
	set.Add(claims.NameUsername, ctx.UserName, claims.DestinationBoth)
	set.Add(claims.NameName, ctx.Alias, claims.DestinationIdentityToken)
	if isAbsoluteHTTPURI(ctx.ImageURI) {
		set.Add(claims.NameProfile, ctx.ImageURI, claims.DestinationIdentityToken)
	}
	set.Add(claims.NameAudience, audience, claims.DestinationAccessToken)
	return set
}

func isAbsoluteHTTPURI(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && (u.Scheme == "http" || u.Scheme == "https")
}
