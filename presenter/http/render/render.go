package render

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/apollos-finance/bridge-tracker/logging"
)

func JSON(w http.ResponseWriter, r *http.Request, status int, res interface{}) {
	enc := json.NewEncoder(w)

	if pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty")); pretty {
		enc.SetIndent("", "  ")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := enc.Encode(res); err != nil {
		logging.LoggerFromContext(r.Context()).WithError(err).Error("failed to marshal JSON result")
	}
}

type errorResult struct {
	Error string `json:"error"`
}

func Error(w http.ResponseWriter, r *http.Request, err error) {
	ErrorWithStatus(w, r, http.StatusInternalServerError, err)
}

func ErrorWithStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := logging.LoggerFromContext(r.Context()).WithError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request handling failed")
	} else {
		logger.Warn("invalid request")
	}
	JSON(w, r, status, errorResult{Error: fmt.Sprint(err)})
}
