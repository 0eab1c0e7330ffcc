package main

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := hashPassword("longpass1")
	require.NoError(t, err)
	require.NotEqual(t, "longpass1", hash)

	ok, err := comparePassword(hash, "longpass1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = comparePassword(hash, "longpass2")
	require.NoError(t, err, "a wrong password is a normal outcome, not an error")
	require.False(t, ok)
}

func TestHashPassword_NonDeterministic(t *testing.T) {
	h1, err := hashPassword("longpass1")
	require.NoError(t, err)
	h2, err := hashPassword("longpass1")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2, "each hash embeds a fresh salt")

	for _, h := range []string{h1, h2} {
		ok, err := comparePassword(h, "longpass1")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestComparePassword_MalformedStoredHash(t *testing.T) {
	_, err := comparePassword("not-a-bcrypt-hash", "longpass1")
	require.Error(t, err, "an uncomparable stored value must be distinguishable from a mismatch")
}

func TestTokenService_IssueVerify(t *testing.T) {
	svc := NewTokenService([]byte("test-secret-key-for-jwt-signing"), time.Hour)

	token, err := svc.Issue("user-123")
	require.NoError(t, err)
	require.Len(t, strings.Split(token, "."), 3, "compact header.payload.signature format")

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID)
	require.NotNil(t, claims.ExpiresAt)
}

func TestTokenService_WrongSecret(t *testing.T) {
	issuer := NewTokenService([]byte("one-secret-for-jwt-signing-here"), time.Hour)
	verifier := NewTokenService([]byte("a-different-secret-for-verifying"), time.Hour)

	token, err := issuer.Issue("user-123")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestTokenService_TamperedPayload(t *testing.T) {
	svc := NewTokenService([]byte("test-secret-key-for-jwt-signing"), time.Hour)
	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &body))
	body["_id"] = "user-456"
	forged, err := json.Marshal(body)
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	_, err = svc.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrSignatureInvalid, "a rewritten payload must never be accepted")
}

func TestTokenService_TamperedSignature(t *testing.T) {
	svc := NewTokenService([]byte("test-secret-key-for-jwt-signing"), time.Hour)
	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)

	_, err = svc.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestTokenService_Expired(t *testing.T) {
	svc := NewTokenService([]byte("test-secret-key-for-jwt-signing"), -time.Hour)

	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_Malformed(t *testing.T) {
	svc := NewTokenService([]byte("test-secret-key-for-jwt-signing"), time.Hour)

	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := svc.Verify(tok)
		require.ErrorIs(t, err, ErrMalformedToken, "token %q", tok)
	}
}

func TestTokenService_RejectsUnsignedAlg(t *testing.T) {
	svc := NewTokenService([]byte("test-secret-key-for-jwt-signing"), time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-123"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestTokenService_MissingIDClaim(t *testing.T) {
	secret := []byte("test-secret-key-for-jwt-signing")
	svc := NewTokenService(secret, time.Hour)

	anon := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := anon.SignedString(secret)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.ErrorIs(t, err, ErrMalformedToken)
}
