package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Anonymous is the caller key for requests without an Authorization header.
const Anonymous = "anonymous"

// Identifier derives a caller key from an Authorization header. With a secret
// configured, valid HS256 tokens are keyed by their "sub" claim.
type Identifier struct {
	secret []byte
}

func NewIdentifier(secret string) *Identifier {
	return &Identifier{secret: []byte(secret)}
}

// BearerToken strips an optional "Bearer" scheme. A scheme with no token gives "".
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	const scheme = "Bearer"
	if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		rest := header[len(scheme):]
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			return strings.TrimSpace(rest)
		}
	}
	return header
}

// CallerKey returns the rate-limit key for header.
func (id *Identifier) CallerKey(header string) string {
	token := BearerToken(header)
	if token == "" {
		return Anonymous
	}
	if len(id.secret) == 0 {
		return token
	}
	sub, err := id.Subject(token)
	if err != nil || sub == "" {
		return token
	}
	return sub
}

// Subject validates an HS256 token and returns its "sub" claim.
func (id *Identifier) Subject(tokenString string) (string, error) {
	if len(id.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return id.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("read subject: %w", err)
	}
	return sub, nil
}
