package account

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrJamesThe3rd/pocketmoney/internal/http/respond"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
)

type Handler struct {
	registry *ledger.Registry
	logDir   string
}

func NewHandler(registry *ledger.Registry, logDir string) *Handler {
	return &Handler{registry: registry, logDir: logDir}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.With(jsonOnly).Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/log", h.log)
}

// TransactionRoutes registers the routes that post transactions.
func (h *Handler) TransactionRoutes(r chi.Router) {
	r.With(jsonOnly).Post("/{id}/transactions", h.addTransaction)
}

// ServiceRoutes exposes the per-account named actions, e.g.
// POST /services/alice_add_transaction.
func (h *Handler) ServiceRoutes(r chi.Router) {
	r.With(jsonOnly).Post("/{action}", h.callService)
}

var jsonOnly = middleware.AllowContentType("application/json")

// amountValue accepts an amount sent either as a JSON number or a string.
type amountValue string

func (a *amountValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*a = amountValue(s)
	default:
		*a = amountValue(data)
	}

	return nil
}

type createAccountRequest struct {
	ID             string      `json:"account_id"`
	Name           string      `json:"name"`
	CurrencySymbol string      `json:"currency_symbol"`
	InitialBalance amountValue `json:"initial_balance"`
	MaxHistory     int         `json:"max_history"`
	CSVLogging     bool        `json:"csv_logging_enabled"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := ledger.AccountConfig{
		ID:             req.ID,
		Name:           req.Name,
		CurrencySymbol: req.CurrencySymbol,
		MaxHistory:     req.MaxHistory,
		CSVLogging:     req.CSVLogging,
	}

	if req.InitialBalance != "" {
		initial, err := ledger.ParseAmount(string(req.InitialBalance))
		if err != nil {
			http.Error(w, "invalid initial_balance: "+err.Error(), http.StatusBadRequest)
			return
		}

		cfg.InitialBalance = initial
	}

	l, err := h.registry.Register(r.Context(), cfg)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(l.Snapshot()))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, toResponseList(h.registry.Snapshots()))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.registry.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(snap))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Unregister(r.Context(), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type addTransactionRequest struct {
	Amount      amountValue `json:"amount"`
	Description string      `json:"description"`
	Timestamp   string      `json:"timestamp"`
}

func (h *Handler) addTransaction(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) callService(w http.ResponseWriter, r *http.Request) {
	id, err := h.registry.ResolveAction(chi.URLParam(r, "action"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	h.apply(w, r, id)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, accountID string) {
	var req addTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.registry.Apply(r.Context(), accountID, ledger.Params{
		Amount:      string(req.Amount),
		Description: req.Description,
		Timestamp:   req.Timestamp,
	})

	var perr *ledger.PersistenceError

	switch {
	case err == nil:
		resp := toRecordResponse(*rec)
		respond.JSON(w, http.StatusCreated, transactionResponse{NewBalance: resp.BalanceAfter, Record: &resp})
	case rec != nil && errors.As(err, &perr):
		// Report policy: the balance moved, only the durable log is behind.
		resp := toRecordResponse(*rec)
		respond.JSON(w, http.StatusCreated, transactionResponse{
			NewBalance: resp.BalanceAfter,
			Record:     &resp,
			Warning:    fmt.Sprintf("transaction applied but not written to the log: %v", perr.Err),
		})
	default:
		respond.Error(w, err)
	}
}

func (h *Handler) log(w http.ResponseWriter, r *http.Request) {
	snap, err := h.registry.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	if !snap.Account.CSVLogging {
		http.Error(w, "account has no durable log", http.StatusNotFound)
		return
	}

	resp := logResponse{AccountID: snap.Account.ID, Rows: []recordResponse{}}

	f, err := os.Open(csvlog.PathFor(h.logDir, snap.Account.ID))
	if errors.Is(err, fs.ErrNotExist) {
		resp.Verified = true
		respond.JSON(w, http.StatusOK, resp)

		return
	}

	if err != nil {
		respond.Error(w, fmt.Errorf("opening log: %w", err))
		return
	}
	defer f.Close()

	recs, err := csvlog.Read(f)
	if err != nil {
		slog.Warn("unreadable durable log", "account_id", snap.Account.ID, "error", err)
		resp.Problem = err.Error()
		respond.JSON(w, http.StatusOK, resp)

		return
	}

	resp.Rows = toRecordResponseList(recs)
	resp.Verified = true

	if err := csvlog.Verify(recs); err != nil {
		resp.Verified = false
		resp.Problem = err.Error()
	}

	respond.JSON(w, http.StatusOK, resp)
}
