package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// CatalogWriteScope must appear in the token's scope claim to edit records.
const CatalogWriteScope = "catalog:write"

type catalogClaimsCtx struct{}

// CatalogClaims are the claims carried by catalog editor tokens.
type CatalogClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope reports whether the space-separated scope claim contains s.
func (c CatalogClaims) HasScope(s string) bool {
	for _, part := range strings.Fields(c.Scope) {
		if part == s {
			return true
		}
	}
	return false
}

// CatalogEditorJWT accepts HS256 bearer tokens signed with secret that carry
// the catalog write scope.
func CatalogEditorJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "catalog editing disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			var claims CatalogClaims
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if !claims.HasScope(CatalogWriteScope) {
				http.Error(w, "insufficient scope", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), catalogClaimsCtx{}, claims)))
		})
	}
}

// CatalogClaimsFromContext returns the editor's claims if present.
func CatalogClaimsFromContext(ctx context.Context) (CatalogClaims, bool) {
	claims, ok := ctx.Value(catalogClaimsCtx{}).(CatalogClaims)
	return claims, ok
}
