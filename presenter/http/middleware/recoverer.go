package middleware

import (
	"errors"
	"net/http"

	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/presenter/http/render"
)

var errInternal = errors.New("internal server error")

// Recoverer turns a handler panic into a logged 500 JSON error.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger := logging.LoggerFromContext(r.Context())
				if err, ok := rec.(error); ok {
					logger = logger.WithError(err)
				} else {
					logger = logger.WithField("recovered", rec)
				}
				logger.Error("recovered panic in http handler")
				render.ErrorWithStatus(w, r, http.StatusInternalServerError, errInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
