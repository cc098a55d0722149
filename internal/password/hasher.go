// Package password implements the self-describing PBKDF2 password hash
// format and the password complexity policy.
package password

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// Hash blob layout, all multi-byte fields big-endian:
//
//	[0]       format marker (0x01)
//	[1..5)    PRF identifier
//	[5..9)    iteration count
//	[9..13)   salt length in bytes
//	[13..13+saltLen) salt
//	remainder derived subkey
const (
	formatMarker = 0x01
	headerLen    = 13
	saltLen      = 128 / 8
	subkeyLen    = 256 / 8
)

// PRF identifiers as stored in the hash header.
const (
	prfHMACSHA1 uint32 = iota
	prfHMACSHA256
	prfHMACSHA512
)

// Hasher encodes and verifies password hashes.
type Hasher struct {
	iterations int
}

// NewHasher returns a Hasher deriving subkeys with the given PBKDF2
// iteration count. Counts below 1 are clamped to 1.
func NewHasher(iterations int) *Hasher {
	if iterations < 1 {
		iterations = 1
	}
	return &Hasher{iterations: iterations}
}

// Hash derives a subkey from password under a fresh random salt and returns
// the base64-encoded blob.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	subkey := pbkdf2.Key([]byte(password), salt, h.iterations, subkeyLen, sha256.New)

	out := make([]byte, headerLen+saltLen+subkeyLen)
	out[0] = formatMarker
	binary.BigEndian.PutUint32(out[1:5], prfHMACSHA256)
	binary.BigEndian.PutUint32(out[5:9], uint32(h.iterations))
	binary.BigEndian.PutUint32(out[9:13], saltLen)
	copy(out[headerLen:], salt)
	copy(out[headerLen+saltLen:], subkey)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Verify reports whether candidate matches the encoded hash. It fails closed:
// malformed input of any kind yields false, never an error. The subkey
// comparison has no early exit to avoid a timing side channel.
func (h *Hasher) Verify(encoded, candidate string) bool {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(decoded) < headerLen {
		return false
	}
	if decoded[0] != formatMarker {
		return false
	}

	prfFn, ok := prfHash(binary.BigEndian.Uint32(decoded[1:5]))
	if !ok {
		return false
	}
	iterations := int(binary.BigEndian.Uint32(decoded[5:9]))
	storedSaltLen := int(binary.BigEndian.Uint32(decoded[9:13]))
	if storedSaltLen < saltLen || iterations < 1 {
		return false
	}
	if len(decoded) < headerLen+storedSaltLen {
		return false
	}

	salt := decoded[headerLen : headerLen+storedSaltLen]
	expected := decoded[headerLen+storedSaltLen:]
	if len(expected) < 128/8 {
		return false
	}

	actual := pbkdf2.Key([]byte(candidate), salt, iterations, len(expected), prfFn)
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

func prfHash(id uint32) (func() hash.Hash, bool) {
	switch id {
	case prfHMACSHA1:
		return sha1.New, true
	case prfHMACSHA256:
		return sha256.New, true
	case prfHMACSHA512:
		return sha512.New, true
	default:
		return nil, false
	}
}
