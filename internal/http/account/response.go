package account

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pocketmoney/internal/http/respond"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

type recordResponse struct {
	ID           uuid.UUID   `json:"id"`
	Timestamp    time.Time   `json:"timestamp"`
	Amount       json.Number `json:"amount"`
	Description  string      `json:"description"`
	BalanceAfter json.Number `json:"balance_after"`
}

type accountResponse struct {
	ID             string           `json:"account_id"`
	Name           string           `json:"name"`
	CurrencySymbol string           `json:"currency_symbol"`
	Balance        json.Number      `json:"balance"`
	InitialBalance json.Number      `json:"initial_balance"`
	MaxHistory     int              `json:"max_history"`
	CSVLogging     bool             `json:"csv_logging_enabled"`
	Action         string           `json:"action"`
	LastUpdate     time.Time        `json:"last_update"`
	RecentHistory  []recordResponse `json:"recent_history"`
}

type transactionResponse struct {
	NewBalance json.Number     `json:"new_balance"`
	Record     *recordResponse `json:"record,omitempty"`
	Warning    string          `json:"warning,omitempty"`
}

type logResponse struct {
	AccountID string           `json:"account_id"`
	Rows      []recordResponse `json:"rows"`
	Verified  bool             `json:"verified"`
	Problem   string           `json:"problem,omitempty"`
}

func toRecordResponse(rec ledger.Record) recordResponse {
	return recordResponse{
		ID:           rec.ID,
		Timestamp:    rec.Timestamp,
		Amount:       respond.Money(rec.Amount),
		Description:  rec.Description,
		BalanceAfter: respond.Money(rec.BalanceAfter),
	}
}

func toRecordResponseList(recs []ledger.Record) []recordResponse {
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}

	return out
}

func toResponse(snap ledger.Snapshot) accountResponse {
	return accountResponse{
		ID:             snap.Account.ID,
		Name:           snap.Account.Name,
		CurrencySymbol: snap.Account.CurrencySymbol,
		Balance:        respond.Money(snap.Balance),
		InitialBalance: respond.Money(snap.Account.InitialBalance),
		MaxHistory:     snap.Account.MaxHistory,
		CSVLogging:     snap.Account.CSVLogging,
		Action:         ledger.ActionName(snap.Account.ID),
		LastUpdate:     snap.LastUpdate,
		RecentHistory:  toRecordResponseList(snap.History),
	}
}

func toResponseList(snaps []ledger.Snapshot) []accountResponse {
	out := make([]accountResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toResponse(s))
	}

	return out
}
