// Package respond writes JSON bodies and maps ledger errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Status maps an error returned by the ledger to an HTTP status code.
func Status(err error) int {
	var perr *ledger.PersistenceError

	switch {
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnknownAccount):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.As(err, &perr) && perr.RolledBack:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as plain text. Unexpected errors are logged and hidden.
func Error(w http.ResponseWriter, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", status)

		return
	}

	http.Error(w, err.Error(), status)
}

// Money renders an amount as a JSON number with two decimals.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
