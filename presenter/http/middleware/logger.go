package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/apollos-finance/bridge-tracker/logging"
)

// NewLoggerMiddleware puts a request scoped logger into the context and logs
// every completed request with its status and duration.
func NewLoggerMiddleware(logger logging.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqLogger := logger.WithFields(logrus.Fields{
				"request_id":  middleware.GetReqID(ctx),
				"http_method": r.Method,
				"http_path":   r.URL.Path,
			})
			ctx = logging.WithLogger(ctx, reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ts := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := reqLogger.WithFields(logrus.Fields{
				"http_status": status,
				"bytes":       ww.BytesWritten(),
				"duration":    time.Since(ts),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("http request failed")
			} else {
				entry.Debug("http request completed")
			}
		})
	}
}
