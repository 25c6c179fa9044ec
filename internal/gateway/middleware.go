package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// AuthMiddleware trusts the account id attached by the upstream auth
// interceptor, which has already validated credentials and rejected
// unauthenticated calls. Handlers still check for an empty id so the
// service degrades sanely when run without the interceptor.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := r.Header.Get("X-Account-ID")
		ctx := context.WithValue(r.Context(), "account_id", accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), "request_id", requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accountIDFromContext(ctx context.Context) string {
	if accountID, ok := ctx.Value("account_id").(string); ok {
		return accountID
	}
	return ""
}
