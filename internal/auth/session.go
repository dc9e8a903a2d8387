package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
)

// Accepted authorization schemes. The platform API issues "JWT <token>".
var schemes = []string{"Bearer ", "JWT "}

// SessionClaims are the claims the platform API puts in session tokens
type SessionClaims struct {
	UserID string `json:"_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// SessionData identifies the caller behind a forwarded session token
type SessionData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Scheme string `json:"scheme"` // "Bearer", "JWT"
}

// ExtractBearerToken returns the token and scheme from an Authorization header
func ExtractBearerToken(authHeader string) (token, scheme string, err error) {
	if authHeader == "" {
		return "", "", ErrMissingAuthHeader
	}

	for _, prefix := range schemes {
		if len(authHeader) >= len(prefix) && strings.EqualFold(authHeader[:len(prefix)], prefix) {
			token = strings.TrimSpace(authHeader[len(prefix):])
			if token == "" {
				return "", "", ErrEmptyToken
			}
			return token, strings.TrimSpace(prefix), nil
		}
	}

	return "", "", ErrInvalidAuthFormat
}

// InspectSession decodes the caller's session token WITHOUT verifying it.
// The upstream API owns verification; the result is only fit for log
// attribution and must never drive an access decision.
func InspectSession(authHeader string) (*SessionData, error) {
	token, scheme, err := ExtractBearerToken(authHeader)
	if err != nil {
		return nil, err
	}

	claims := &SessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode session token: %w", err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}

	return &SessionData{
		UserID: userID,
		Email:  claims.Email,
		Scheme: scheme,
	}, nil
}
