package importcsv

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/pocketmoney/internal/http/respond"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
)

const maxUpload = 10 << 20

type Handler struct {
	registry *ledger.Registry
}

func NewHandler(registry *ledger.Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes expects to be mounted below /accounts/{id}/import.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type rowResult struct {
	Line        int          `json:"line"`
	Amount      string       `json:"amount"`
	Description string       `json:"description,omitempty"`
	Applied     bool         `json:"applied"`
	NewBalance  *json.Number `json:"new_balance,omitempty"`
	Error       string       `json:"error,omitempty"`
	Warning     string       `json:"warning,omitempty"`
}

type importResponse struct {
	AccountID string      `json:"account_id"`
	DryRun    bool        `json:"dry_run"`
	Applied   int         `json:"applied"`
	Failed    int         `json:"failed"`
	Balance   json.Number `json:"balance"`
	Rows      []rowResult `json:"rows"`
}

// importCSV posts every row of an uploaded CSV file as a transaction. Rows
// are applied in file order; a bad row is reported and the rest continue.
// With dry_run=true the rows are only validated.
func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	l, err := h.registry.Get(accountID)
	if err != nil {
		respond.Error(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, err := csvlog.ReadRows(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := importResponse{
		AccountID: accountID,
		DryRun:    dryRun,
		Rows:      make([]rowResult, 0, len(rows)),
	}

	for _, row := range rows {
		res := rowResult{Line: row.Line, Amount: row.Amount, Description: row.Description}

		if dryRun {
			if _, err := ledger.ParseAmount(row.Amount); err != nil {
				res.Error = err.Error()
				resp.Failed++
			}

			resp.Rows = append(resp.Rows, res)

			continue
		}

		rec, err := l.Apply(r.Context(), ledger.Params{
			Amount:      row.Amount,
			Description: row.Description,
			Timestamp:   row.Timestamp,
		})

		var perr *ledger.PersistenceError

		switch {
		case err == nil:
		case rec != nil && errors.As(err, &perr):
			res.Warning = perr.Err.Error()
		default:
			res.Error = err.Error()
		}

		if rec != nil {
			res.Applied = true
			res.NewBalance = new(respond.Money(rec.BalanceAfter))
			resp.Applied++
		} else {
			resp.Failed++
		}

		resp.Rows = append(resp.Rows, res)
	}

	resp.Balance = respond.Money(l.Balance())

	status := http.StatusCreated
	if dryRun || resp.Applied == 0 {
		status = http.StatusOK
	}

	respond.JSON(w, status, resp)
}
