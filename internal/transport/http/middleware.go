package httptransport

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"didhub/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestContext assigns each request a correlation ID, normalizes the client
// user agent and records the remote address, then logs the request on the way
// out. Downstream code reads the values through pkg/requestcontext.
func RequestContext(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			ctx := requestcontext.WithRequestID(r.Context(), requestID)
			ctx = requestcontext.WithUserAgent(ctx, normalizeUserAgent(r.UserAgent()))
			ctx = requestcontext.WithClientIP(ctx, clientIP(r))

			w.Header().Set(requestIDHeader, requestID)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", requestID,
			)
		})
	}
}

// normalizeUserAgent reduces the raw header to "Browser/Version" or "bot" so
// audit events carry a stable, low-cardinality value.
func normalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		return "bot"
	}
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	return name + "/" + version
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
