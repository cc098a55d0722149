package password_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juanmaabanto/ms-identity/internal/password"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	h := password.NewHasher(1)

	encoded, err := h.Hash("Sup3r#secret")
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	_, err = base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	require.True(t, h.Verify(encoded, "Sup3r#secret"))
	require.False(t, h.Verify(encoded, "Sup3r#secre"))
	require.False(t, h.Verify(encoded, ""))
}

func TestHashProducesUniqueSalts(t *testing.T) {
	h := password.NewHasher(1)

	first, err := h.Hash("Sup3r#secret")
	require.NoError(t, err)
	second, err := h.Hash("Sup3r#secret")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.True(t, h.Verify(first, "Sup3r#secret"))
	require.True(t, h.Verify(second, "Sup3r#secret"))
}

func TestVerifyRejectsMalformedBlobs(t *testing.T) {
	h := password.NewHasher(1)

	good, err := h.Hash("Sup3r#secret")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(good)
	require.NoError(t, err)

	cases := map[string]string{
		"not base64":     "!!!not-base64!!!",
		"empty":          "",
		"truncated":      base64.StdEncoding.EncodeToString(raw[:8]),
		"wrong marker":   base64.StdEncoding.EncodeToString(append([]byte{0x00}, raw[1:]...)),
		"unknown prf":    base64.StdEncoding.EncodeToString(append([]byte{raw[0], 0x00, 0x00, 0x00, 0x09}, raw[5:]...)),
		"flipped subkey": flipLastByte(raw),
	}

	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			require.False(t, h.Verify(encoded, "Sup3r#secret"))
		})
	}
}

func TestVerifyHonorsStoredIterations(t *testing.T) {
	// A blob written with more iterations than the hasher's default must
	// still verify, the parameters travel with the hash.
	strong := password.NewHasher(1000)
	encoded, err := strong.Hash("Sup3r#secret")
	require.NoError(t, err)

	weak := password.NewHasher(1)
	require.True(t, weak.Verify(encoded, "Sup3r#secret"))
}

func flipLastByte(raw []byte) string {
	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-1] ^= 0xff
	return base64.StdEncoding.EncodeToString(tampered)
}
