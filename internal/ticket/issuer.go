// Package ticket turns an assembled claim set into signed authorization
// tokens. It stands in for the outer OAuth server: scope negotiation and
// protocol handling happen elsewhere, this layer only serializes what the
// claim assembly decided.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

// Supported scopes on issued tickets.
const (
	ScopeOpenID        = "openid"
	ScopeOfflineAccess = "offline_access"
)

// Ticket is the issued token pair.
type Ticket struct {
	AccessToken   string   `json:"access_token"`
	IdentityToken string   `json:"id_token,omitempty"`
	TokenType     string   `json:"token_type"`
	ExpiresIn     int64    `json:"expires_in"`
	Scopes        []string `json:"scope,omitempty"`
}

// Issuer accepts a finished claims principal for ticket issuance.
type Issuer interface {
	Issue(ctx context.Context, subject string, accessClaims, identityClaims map[string]any, scopes []string) (Ticket, error)
}

// JoseIssuer signs tickets with HS256.
type JoseIssuer struct {
	signer jose.Signer
	issuer string
	ttl    time.Duration
}

var _ Issuer = (*JoseIssuer)(nil)

// NewJoseIssuer builds a signer from the configured symmetric key.
func NewJoseIssuer(signingKey, issuer string, ttl time.Duration) (*JoseIssuer, error) {
	if len(signingKey) < 32 {
		return nil, errors.New("ticket: signing key must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(signingKey)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("ticket: init signer: %w", err)
	}

	return &JoseIssuer{signer: signer, issuer: issuer, ttl: ttl}, nil
}

// Issue signs one token per destination carrying the projected claims. The
// identity token is omitted when the openid scope was not granted.
func (i *JoseIssuer) Issue(ctx context.Context, subject string, accessClaims, identityClaims map[string]any, scopes []string) (Ticket, error) {
	now := time.Now().UTC()
	std := jwt.Claims{
		Issuer:   i.issuer,
		Subject:  subject,
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(i.ttl)),
	}

	accessToken, err := jwt.Signed(i.signer).Claims(std).Claims(accessClaims).Serialize()
	if err != nil {
		return Ticket{}, fmt.Errorf("ticket: sign access token: %w", err)
	}

	t := Ticket{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(i.ttl.Seconds()),
		Scopes:      scopes,
	}

	if containsScope(scopes, ScopeOpenID) {
		idToken, err := jwt.Signed(i.signer).Claims(std).Claims(identityClaims).Serialize()
		if err != nil {
			return Ticket{}, fmt.Errorf("ticket: sign identity token: %w", err)
		}
		t.IdentityToken = idToken
	}

	return t, nil
}

// GrantedScopes intersects the requested scopes with the ones this server
// supports, preserving request order.
func GrantedScopes(requested []string) []string {
	var granted []string
	for _, s := range requested {
		if s == ScopeOpenID || s == ScopeOfflineAccess {
			granted = append(granted, s)
		}
	}
	return granted
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
