package queryengine

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// requireBearer wraps next with a bearer-token check against secret. When
// secret is empty, auth is disabled entirely (the default) and next is
// returned unwrapped.
func requireBearer(secret string, next http.Handler) http.Handler {
	if secret == "" {
		return next
	}

	key := []byte(secret)
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeRPCError(rw, http.StatusUnauthorized, "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, prefix)

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			writeRPCError(rw, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		next.ServeHTTP(rw, r)
	})
}
