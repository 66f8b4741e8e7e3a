package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLen = 32

var (
	ErrSecretTooShort = errors.New("signing secret must be at least 32 bytes")
	ErrBadSignature   = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenClaims is the payload carried by a verification link token. VID
// references the backing Verification record, not the realtime session.
type TokenClaims struct {
	VID     string `json:"vid"`
	UID     string `json:"uid"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenSigner signs and verifies single-use verification tokens with
// HMAC-SHA256. The resulting string is the usual base64url
// header.payload.signature encoding
type TokenSigner struct {
	secret []byte
}

func NewTokenSigner(secret string) (*TokenSigner, error) {
	if len(secret) < minSecretLen {
		return nil, ErrSecretTooShort
	}

	return &TokenSigner{secret: []byte(secret)}, nil
}

func (s *TokenSigner) Sign(vid, uid, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &TokenClaims{
		VID:     vid,
		UID:     uid,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return t.SignedString(s.secret)
}

// Verify checks the signature and the embedded expiry. The caller still has
// to check the backing record's own expiry and consumption state
func (s *TokenSigner) Verify(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}

	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}

		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, ErrBadSignature
	}

	if !t.Valid {
		return nil, ErrBadSignature
	}

	return claims, nil
}
