package session

import (
	"encoding/json"
	"fmt"

	"github.com/juanmaabanto/ms-identity/internal/protector"
)

// Cookie names issued by this service.
const (
	CookieName         = "Identity.Session"
	AccountsCookieName = "Identity.Accounts"
)

// Codec round-trips session artifacts through the string protector.
type Codec struct {
	protector *protector.Protector
}

// NewCodec wires the codec to the cookie protector.
func NewCodec(p *protector.Protector) *Codec {
	return &Codec{protector: p}
}

// EncodePrincipal serializes and protects the principal for the session
// cookie.
func (c *Codec) EncodePrincipal(p Principal) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode principal: %w", err)
	}
	return c.protector.Protect(string(raw))
}

// DecodePrincipal unprotects and parses a session cookie value. Tampered or
// malformed cookies yield an error; callers treat that as no session.
func (c *Codec) DecodePrincipal(value string) (Principal, error) {
	raw, err := c.protector.Unprotect(value)
	if err != nil {
		return Principal{}, err
	}
	var p Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Principal{}, fmt.Errorf("decode principal: %w", err)
	}
	return p, nil
}

// EncodeAccounts protects the known-accounts list.
func (c *Codec) EncodeAccounts(accounts []string) (string, error) {
	return c.protector.Protect(JoinAccounts(accounts))
}

// DecodeAccounts unprotects the known-accounts cookie. The error is only
// meaningful to paths that disclose the list explicitly; the privacy gate
// treats any failure as an empty list.
func (c *Codec) DecodeAccounts(value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	raw, err := c.protector.Unprotect(value)
	if err != nil {
		return nil, err
	}
	return SplitAccounts(raw), nil
}
