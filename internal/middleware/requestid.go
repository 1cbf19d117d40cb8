package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retailcore/commerce_layer/pkg/logger"
)

const requestIDKey contextKey = "request_id"

// RequestIDMiddleware stamps every request with an id and logs the outcome.
type RequestIDMiddleware struct {
	log *logger.Logger
}

// NewRequestIDMiddleware creates a request id middleware.
func NewRequestIDMiddleware(log *logger.Logger) *RequestIDMiddleware {
	if log == nil {
		log = logger.NewDefault("middleware")
	}
	return &RequestIDMiddleware{log: log}
}

// Handler returns the middleware handler. The id is taken from the
// X-Request-ID header when the caller supplied one and echoed back on the
// response.
func (m *RequestIDMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		// Websocket upgrades need the raw ResponseWriter.
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rw, r.WithContext(ctx))

		m.log.WithFields(map[string]interface{}{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rw.statusCode,
			"duration":   time.Since(start).String(),
		}).Info("request handled")
	})
}

// GetRequestID extracts the request id from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// responseWriter captures the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
