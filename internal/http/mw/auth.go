// Package mw contains HTTP middleware for the API.
package mw

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/companyintel/companyintel-api/internal/config"
)

// Auth returns a bearer-token middleware for mutating endpoints.
//
// Two credential kinds are accepted: the static admin API key, checked
// against its bcrypt hash, and HS256 session tokens issued by an external
// identity service, verified against the shared secret. When neither is
// configured the deployment is open and the middleware passes everything
// through.
func Auth(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.AuthEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			if cfg.AdminAPIKeyHash != "" && validateAdminKey(cfg.AdminAPIKeyHash, token) {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.AuthJWTSecret != "" && validateSessionToken(cfg.AuthJWTSecret, token) {
				next.ServeHTTP(w, r)
				return
			}

			unauthorized(w, "invalid token")
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}

// validateAdminKey compares the presented key against the configured bcrypt
// hash.
func validateAdminKey(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// validateSessionToken verifies an externally issued HS256 JWT. Standard
// expiry and not-before claims are enforced by the parser.
func validateSessionToken(secret, tokenString string) bool {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil && token.Valid
}
