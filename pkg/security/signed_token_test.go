package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewTokenSignerRejectsShortSecret(t *testing.T) {
	_, err := NewTokenSigner("too-short")
	assert.ErrorIs(t, err, ErrSecretTooShort)
}

func TestSignVerifyRoundtrip(t *testing.T) {
	s, err := NewTokenSigner(testSecret)
	require.NoError(t, err)

	token, err := s.Sign("rec1", "user1", "email_verify", time.Minute)
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "rec1", claims.VID)
	assert.Equal(t, "user1", claims.UID)
	assert.Equal(t, "email_verify", claims.Purpose)
}

func TestVerifyRejectsTampering(t *testing.T) {
	s, err := NewTokenSigner(testSecret)
	require.NoError(t, err)

	token, err := s.Sign("rec1", "user1", "email_verify", time.Minute)
	require.NoError(t, err)

	_, err = s.Verify(token[:len(token)-4] + "AAAA")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	s1, err := NewTokenSigner(testSecret)
	require.NoError(t, err)

	s2, err := NewTokenSigner("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	token, err := s1.Sign("rec1", "user1", "email_verify", time.Minute)
	require.NoError(t, err)

	_, err = s2.Verify(token)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsExpired(t *testing.T) {
	s, err := NewTokenSigner(testSecret)
	require.NoError(t, err)

	token, err := s.Sign("rec1", "user1", "email_verify", -time.Minute)
	require.NoError(t, err)

	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s, err := NewTokenSigner(testSecret)
	require.NoError(t, err)

	_, err = s.Verify("not-even-a-token")
	assert.ErrorIs(t, err, ErrBadSignature)
}
