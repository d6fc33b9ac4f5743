// Package token issues session identifiers and signed access tokens.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"claims_portal_backend/platform/httpkit"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GenerateRandomToken returns size random bytes, URL-safe encoded.
func GenerateRandomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SignAccessToken signs an HS256 access token bound to a session. The
// middleware rejects it as soon as the session is gone, whatever exp says.
func SignAccessToken(secret string, userID uuid.UUID, sessionID string, roles []string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"sid":   sessionID,
		"type":  httpkit.AccessTokenType,
		"roles": roles,
		"exp":   issuedAt.Add(ttl).Unix(),
		"iat":   issuedAt.Unix(),
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString([]byte(secret))
}
