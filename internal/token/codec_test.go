package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	c := New([]byte("test-secret"))

	raw, err := c.Mint(jwt.MapClaims{"email": "a@x.com"}, time.Hour)
	require.NoError(t, err)

	claims, err := c.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", StringClaim(claims, "email"))
}

func TestVerifyWrongSecret(t *testing.T) {
	minter := New([]byte("secret-a"))
	verifier := New([]byte("secret-b"))

	raw, err := minter.Mint(jwt.MapClaims{"email": "a@x.com"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyExpired(t *testing.T) {
	c := New([]byte("test-secret"))

	NowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	defer func() { NowFunc = time.Now }()

	raw, err := c.Mint(jwt.MapClaims{"email": "a@x.com"}, time.Hour)
	require.NoError(t, err)

	_, err = c.Verify(raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyMalformed(t *testing.T) {
	c := New([]byte("test-secret"))

	for _, raw := range []string{"", "not-a-token", "a.b", "Bearer"} {
		_, err := c.Verify(raw)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", raw)
	}
}

func TestVerifyRejectsNonHMACAlgorithm(t *testing.T) {
	c := New([]byte("test-secret"))

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"email": "a@x.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(raw)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripBearer(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare token", "abc.def.ghi", "abc.def.ghi"},
		{"bearer prefix", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase prefix", "bearer abc", "abc"},
		{"padded", "  Bearer abc  ", "abc"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripBearer(tt.input); got != tt.want {
				t.Errorf("StripBearer(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
