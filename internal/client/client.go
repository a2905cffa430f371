// Package client talks to the pocket money HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type Record struct {
	ID           uuid.UUID       `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

type Account struct {
	ID             string          `json:"account_id"`
	Name           string          `json:"name"`
	CurrencySymbol string          `json:"currency_symbol"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	MaxHistory     int             `json:"max_history"`
	CSVLogging     bool            `json:"csv_logging_enabled"`
	Action         string          `json:"action"`
	LastUpdate     time.Time       `json:"last_update"`
	RecentHistory  []Record        `json:"recent_history"`
}

type CreateAccountParams struct {
	ID             string `json:"account_id,omitempty"`
	Name           string `json:"name"`
	CurrencySymbol string `json:"currency_symbol,omitempty"`
	InitialBalance string `json:"initial_balance,omitempty"`
	MaxHistory     int    `json:"max_history,omitempty"`
	CSVLogging     bool   `json:"csv_logging_enabled"`
}

type TransactionParams struct {
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type TransactionResult struct {
	NewBalance decimal.Decimal `json:"new_balance"`
	Record     *Record         `json:"record"`
	Warning    string          `json:"warning"`
}

type Log struct {
	AccountID string   `json:"account_id"`
	Rows      []Record `json:"rows"`
	Verified  bool     `json:"verified"`
	Problem   string   `json:"problem"`
}

type Statement struct {
	AccountID      string          `json:"account_id"`
	CurrencySymbol string          `json:"currency_symbol"`
	Source         string          `json:"source"`
	Opening        decimal.Decimal `json:"opening_balance"`
	Closing        decimal.Decimal `json:"closing_balance"`
	Credits        decimal.Decimal `json:"credits"`
	Debits         decimal.Decimal `json:"debits"`
	Records        []Record        `json:"records"`
	Summary        string          `json:"summary"`
}

type ImportRow struct {
	Line        int              `json:"line"`
	Amount      string           `json:"amount"`
	Description string           `json:"description"`
	Applied     bool             `json:"applied"`
	NewBalance  *decimal.Decimal `json:"new_balance"`
	Error       string           `json:"error"`
	Warning     string           `json:"warning"`
}

type ImportResult struct {
	AccountID string          `json:"account_id"`
	DryRun    bool            `json:"dry_run"`
	Applied   int             `json:"applied"`
	Failed    int             `json:"failed"`
	Balance   decimal.Decimal `json:"balance"`
	Rows      []ImportRow     `json:"rows"`
}

// Range bounds a statement; nil ends are open.
type Range struct {
	Start *time.Time `json:"start_date,omitempty"`
	End   *time.Time `json:"end_date,omitempty"`
}

func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Client) GetAccount(ctx context.Context, id string) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) CreateAccount(ctx context.Context, p CreateAccountParams) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodPost, "/accounts", p, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/accounts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AddTransaction(ctx context.Context, id string, p TransactionParams) (*TransactionResult, error) {
	var out TransactionResult
	if err := c.do(ctx, http.MethodPost, "/accounts/"+url.PathEscape(id)+"/transactions", p, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// CallAction posts a transaction through a named action such as
// "alice_add_transaction".
func (c *Client) CallAction(ctx context.Context, action string, p TransactionParams) (*TransactionResult, error) {
	var out TransactionResult
	if err := c.do(ctx, http.MethodPost, "/services/"+url.PathEscape(action), p, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) Log(ctx context.Context, id string) (*Log, error) {
	var out Log
	if err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(id)+"/log", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) Statement(ctx context.Context, id string, rng Range) (*Statement, error) {
	var out Statement
	if err := c.do(ctx, http.MethodPost, "/accounts/"+url.PathEscape(id)+"/statement", rng, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DownloadStatement writes the zipped statement to w and returns the file
// name suggested by the server.
func (c *Client) DownloadStatement(ctx context.Context, id string, rng Range, w io.Writer) (string, error) {
	resp, err := c.send(ctx, http.MethodPost, "/accounts/"+url.PathEscape(id)+"/statement/download", rng)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("reading statement: %w", err)
	}

	name := "statement_" + id + ".zip"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}

	return name, nil
}

func (c *Client) Import(ctx context.Context, id, filename string, file io.Reader, dryRun bool) (*ImportResult, error) {
	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("dry_run", strconv.FormatBool(dryRun)); err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}

	if _, err := io.Copy(fw, file); err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/accounts/"+url.PathEscape(id)+"/import", &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ImportResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func (c *Client) send(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader

	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}

		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.roundTrip(req)
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
}
