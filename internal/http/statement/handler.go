package statement

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/pocketmoney/internal/http/respond"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
	"github.com/MrJamesThe3rd/pocketmoney/internal/statement"
)

type Handler struct {
	svc *statement.Service
}

func NewHandler(svc *statement.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes expects to be mounted below /accounts/{id}/statement.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.metadata)
	r.Post("/download", h.download)
}

type recordResponse struct {
	Timestamp    time.Time   `json:"timestamp"`
	Amount       json.Number `json:"amount"`
	Description  string      `json:"description"`
	BalanceAfter json.Number `json:"balance_after"`
}

type statementResponse struct {
	AccountID      string           `json:"account_id"`
	CurrencySymbol string           `json:"currency_symbol"`
	Source         statement.Source `json:"source"`
	Opening        json.Number      `json:"opening_balance"`
	Closing        json.Number      `json:"closing_balance"`
	Credits        json.Number      `json:"credits"`
	Debits         json.Number      `json:"debits"`
	Records        []recordResponse `json:"records"`
	Summary        string           `json:"summary"`
}

func toRecordResponse(rec ledger.Record) recordResponse {
	return recordResponse{
		Timestamp:    rec.Timestamp,
		Amount:       respond.Money(rec.Amount),
		Description:  rec.Description,
		BalanceAfter: respond.Money(rec.BalanceAfter),
	}
}

// decodeRange accepts an empty body as "everything".
func decodeRange(r *http.Request) (statement.Range, error) {
	var rng statement.Range

	if err := json.NewDecoder(r.Body).Decode(&rng); err != nil && err != io.EOF {
		return rng, err
	}

	return rng, nil
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*statement.Statement, bool) {
	rng, err := decodeRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	st, err := h.svc.Statement(r.Context(), chi.URLParam(r, "id"), rng)
	if err != nil {
		respond.Error(w, err)
		return nil, false
	}

	return st, true
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	st, ok := h.load(w, r)
	if !ok {
		return
	}

	records := make([]recordResponse, 0, len(st.Records))
	for _, rec := range st.Records {
		records = append(records, toRecordResponse(rec))
	}

	respond.JSON(w, http.StatusOK, statementResponse{
		AccountID:      st.Account.ID,
		CurrencySymbol: st.Account.CurrencySymbol,
		Source:         st.Source,
		Opening:        respond.Money(st.Opening),
		Closing:        respond.Money(st.Closing),
		Credits:        respond.Money(st.Credits),
		Debits:         respond.Money(st.Debits),
		Records:        records,
		Summary:        h.svc.GenerateSummary(st),
	})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	st, ok := h.load(w, r)
	if !ok {
		return
	}

	// Build the archive first so a failure can still be reported as an error.
	var buf bytes.Buffer

	if err := writeArchive(&buf, st, h.svc.GenerateSummary(st)); err != nil {
		slog.Error("failed to create zip", "account_id", st.Account.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"statement_%s_%s.zip\"", st.Account.ID, time.Now().Format("20060102")))

	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write zip", "error", err)
	}
}

func writeArchive(w io.Writer, st *statement.Statement, summary string) error {
	zw := zip.NewWriter(w)

	sw, err := zw.Create("statement.txt")
	if err != nil {
		return err
	}

	header := fmt.Sprintf("Statement for %s\nOpening balance: %s %s\nClosing balance: %s %s\n\n",
		st.Account.Name,
		st.Opening.StringFixed(2), st.Account.CurrencySymbol,
		st.Closing.StringFixed(2), st.Account.CurrencySymbol)

	if _, err := io.WriteString(sw, header+summary); err != nil {
		return err
	}

	cw, err := zw.Create(fmt.Sprintf("pocket_money_%s.csv", st.Account.ID))
	if err != nil {
		return err
	}

	if err := csvlog.Encode(cw, st.Records); err != nil {
		return err
	}

	return zw.Close()
}
