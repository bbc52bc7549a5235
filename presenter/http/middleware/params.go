package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/apollos-finance/bridge-tracker/bridge"
	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/presenter/http/render"
)

type ctxKey int

const (
	messageIDCtxKey ctxKey = iota
	quoteCtxKey
)

var (
	ErrInvalidMessageID = errors.New("invalid message id parameter")
	ErrInvalidAccount   = errors.New("invalid account parameter")

	hashRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

type QuoteContext struct {
	Input   bridge.Input
	Account common.Address
}

func GetMessageIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		messageID := chi.URLParam(r, "messageId")
		if !hashRegexp.MatchString(messageID) {
			render.ErrorWithStatus(w, r, http.StatusBadRequest, fmt.Errorf("%w: %q", ErrInvalidMessageID, messageID))
			return
		}

		ctx := context.WithValue(r.Context(), messageIDCtxKey, common.HexToHash(messageID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func MessageID(ctx context.Context) common.Hash {
	if id, ok := ctx.Value(messageIDCtxKey).(common.Hash); ok {
		return id
	}
	return common.Hash{}
}

// GetQuoteMiddleware parses the amount, vault and account query parameters.
// The account is optional, a missing account quotes for the zero address.
func GetQuoteMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			quote := &QuoteContext{
				Input: bridge.Input{
					Amount: query.Get("amount"),
					Vault:  query.Get("vault"),
				},
			}
			if quote.Input.Vault != "" && cfg.Vaults[quote.Input.Vault] == nil {
				render.ErrorWithStatus(w, r, http.StatusNotFound, fmt.Errorf("%w: %q", bridge.ErrUnknownVault, quote.Input.Vault))
				return
			}
			if account := query.Get("account"); account != "" {
				if !config.IsValidAddress(account) {
					render.ErrorWithStatus(w, r, http.StatusBadRequest, fmt.Errorf("%w: %q", ErrInvalidAccount, account))
					return
				}
				quote.Account = common.HexToAddress(account)
			}

			ctx := context.WithValue(r.Context(), quoteCtxKey, quote)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetQuoteContext(ctx context.Context) *QuoteContext {
	if q, ok := ctx.Value(quoteCtxKey).(*QuoteContext); ok {
		return q
	}
	return new(QuoteContext)
}
