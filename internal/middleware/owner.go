package middleware

import (
	"context"
	"net/http"
	"strings"
)

// OwnerHeader carries the caller's owner id. Requests without it are anonymous.
const OwnerHeader = "X-Owner-ID"

const ownerIDKey contextKey = "owner_id"

// Owner stores the trimmed owner id from OwnerHeader in the request context.
func Owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), ownerIDKey, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OwnerFromContext returns the owner id, or an empty string for anonymous callers.
func OwnerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ownerIDKey).(string); ok {
		return v
	}
	return ""
}
