package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const learnerIDKey contextKey = "learner_id"

// LearnerID returns the authenticated caller's learner id, or "".
func LearnerID(ctx context.Context) string {
	id, _ := ctx.Value(learnerIDKey).(string)
	return id
}

type authClaims struct {
	jwt.RegisteredClaims
}

// Authenticator resolves the caller identity from a Bearer HS256 token
// signed by the identity provider. Every mutating entry point sits behind
// it; a caller-supplied identity field is never trusted.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		learnerID, err := a.resolve(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), learnerIDKey, learnerID)))
	})
}

func (a *Authenticator) resolve(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	token, found := strings.CutPrefix(raw, "Bearer ")
	if !found || token == "" {
		return "", errors.New("missing bearer token")
	}

	claims := &authClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errors.New("invalid token claims")
	}
	return claims.Subject, nil
}
