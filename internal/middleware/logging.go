package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/gomorishita/portfolio/pkg"
)

const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the id LogRequest assigned to the request context, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LogRequest tags every request with an id (kept from the incoming header when
// present) and logs it once the response is written.
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			resp := newResponseWriter(w)
			begin := time.Now()

			next.ServeHTTP(resp, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))

			log.WithFields(log.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     resp.statusCode,
				"duration":   time.Since(begin).String(),
				"client_ip":  pkg.ClientIP(r),
				"user_agent": r.Header.Get("User-Agent"),
			}).Debug(" ====> request")
		})
	}
}
