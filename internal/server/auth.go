package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/jukebox/internal/shared"
)

// OwnerClaims identify a venue owner. The subject is the owner id.
type OwnerClaims struct {
	jwt.RegisteredClaims
}

type ownerKey struct{}

// Auth signs and verifies owner tokens with HS256.
type Auth struct {
	secret []byte
	issuer string
}

// NewAuth returns nil when secret is empty, which disables owner checks.
func NewAuth(c shared.AuthConfig) *Auth {
	if c.JWTSecret == "" {
		return nil
	}
	return &Auth{secret: []byte(c.JWTSecret), issuer: c.Issuer}
}

// IssueToken signs a token for ownerID valid for ttl.
func (a *Auth) IssueToken(ownerID string, ttl time.Duration) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: missing owner id", shared.ErrInvalidInput)
	}
	now := time.Now()
	claims := OwnerClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   ownerID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses a token and returns the owner id it was issued to.
func (a *Auth) Verify(raw string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &OwnerClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", fmt.Errorf("%w: %w", shared.ErrUnauthorized, shared.ErrTokenExpired)
	case err != nil || !token.Valid:
		return "", fmt.Errorf("%w: invalid token", shared.ErrUnauthorized)
	case claims.Subject == "":
		return "", fmt.Errorf("%w: token without subject", shared.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// RequireOwner rejects requests without a valid bearer token and stores the owner id in the context.
func (a *Auth) RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
			writeError(w, fmt.Errorf("%w: missing bearer token", shared.ErrUnauthorized))
			return
		}

		ownerID, err := a.Verify(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, ownerID)))
	})
}

// OwnerFromContext returns the owner id set by [Auth.RequireOwner].
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerKey{}).(string)
	return id, ok
}
