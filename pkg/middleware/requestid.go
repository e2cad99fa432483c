package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/platinummonkey/crewdeck/pkg/contextkeys"
)

// RequestIDHeader carries the request ID on responses and inbound requests
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware assigns each request a UUID, honoring one supplied by
// the caller, and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
