// Package protector provides the reversible string protection used for
// browser cookies: AES-256-GCM with a random nonce, base64url output.
package protector

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

const nonceSize = 12

var (
	// ErrInvalidPayload indicates the protected value is malformed.
	ErrInvalidPayload = errors.New("protector: invalid payload")
	// ErrTampered indicates authentication failed during unprotection.
	ErrTampered = errors.New("protector: payload failed authentication")
)

// Protector encrypts and decrypts opaque strings.
type Protector struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from the configured secret and prepares the
// AEAD. The purpose string binds protected payloads to their consumer so a
// value protected for one purpose cannot be unprotected for another.
func New(secret, purpose string) (*Protector, error) {
	if secret == "" {
		return nil, errors.New("protector: secret is required")
	}

	key := sha256.Sum256([]byte(purpose + ":" + secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("protector: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("protector: init gcm: %w", err)
	}

	return &Protector{aead: aead}, nil
}

// Protect encrypts plaintext and returns nonce||ciphertext, base64url.
func (p *Protector) Protect(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("protector: generate nonce: %w", err)
	}

	sealed := p.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unprotect reverses Protect. Tampered or malformed input yields an error;
// callers decide whether that is fatal or means "no value".
func (p *Protector) Unprotect(protected string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(protected)
	if err != nil {
		return "", ErrInvalidPayload
	}
	if len(raw) < nonceSize {
		return "", ErrInvalidPayload
	}

	plaintext, err := p.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrTampered
	}
	return string(plaintext), nil
}
