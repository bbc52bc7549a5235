package middleware_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/apollos-finance/bridge-tracker/presenter/http/middleware"
)

func TestRecoverer(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		Name  string
		Panic interface{}
	}{
		{"error", errors.New("boom")},
		{"string", "boom"},
	} {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			h := middleware.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(tc.Panic)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, "internal server error", body["error"])
		})
	}
}

func TestGetMessageIDMiddleware(t *testing.T) {
	t.Parallel()
	valid := "0x5c1f7a0de2b34c9081f6a7e3d2c1b0a99887766554433221100ffeeddccbbaa0"

	r := chi.NewRouter()
	r.With(middleware.GetMessageIDMiddleware).Get("/history/{messageId}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(middleware.MessageID(r.Context()).Hex()))
	})

	for _, tc := range []struct {
		Name   string
		ID     string
		Status int
	}{
		{"valid", valid, http.StatusOK},
		{"no prefix", valid[2:], http.StatusBadRequest},
		{"short", valid[:20], http.StatusBadRequest},
		{"not hex", "0x" + "zz" + valid[4:], http.StatusBadRequest},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/"+tc.ID, nil))
		require.Equal(t, tc.Status, rec.Code, tc.Name)
		if tc.Status == http.StatusOK {
			require.Equal(t, common.HexToHash(valid).Hex(), rec.Body.String())
		}
	}
}
