package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/echorelay/internal/api/apierr"
)

// APIKeyHeader carries the admin API key
const APIKeyHeader = "X-Api-Key"

// APIKey rejects requests whose X-Api-Key does not match the bcrypt hash.
// An empty hash disables the check.
func APIKey(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
