package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
)

type ctxKey int

const accountKey ctxKey = iota

// AuthMiddleware checks the API key and stamps the calling account into
// the request context. Accounts are opaque here: identity proper lives
// with the session collaborator in front of this service.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			account := r.Header.Get("X-Account")
			if account == "" {
				account = "default"
			}
			ctx := context.WithValue(r.Context(), accountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFrom returns the authenticated account stamped by AuthMiddleware.
func AccountFrom(ctx context.Context) string {
	if s, ok := ctx.Value(accountKey).(string); ok && s != "" {
		return s
	}
	return "default"
}
