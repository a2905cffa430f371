package client_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/pocketmoney/internal/client"
	pmhttp "github.com/MrJamesThe3rd/pocketmoney/internal/http"
	"github.com/MrJamesThe3rd/pocketmoney/internal/http/account"
	"github.com/MrJamesThe3rd/pocketmoney/internal/http/importcsv"
	statementHandler "github.com/MrJamesThe3rd/pocketmoney/internal/http/statement"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger/csvlog"
	"github.com/MrJamesThe3rd/pocketmoney/internal/statement"
)

func newClient(t *testing.T) *client.Client {
	t.Helper()

	dir := t.TempDir()
	registry := ledger.NewRegistry(ledger.Options{NewAppender: csvlog.Factory(dir)})

	router, err := pmhttp.New(pmhttp.Options{},
		account.NewHandler(registry, dir),
		importcsv.NewHandler(registry),
		statementHandler.NewHandler(statement.NewService(registry, dir)),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		_ = registry.Close()
	})

	return client.New(srv.URL + "/api/v1/")
}

func TestClient_EndToEnd(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	acc, err := c.CreateAccount(ctx, client.CreateAccountParams{
		Name:           "Alice",
		InitialBalance: "10",
		MaxHistory:     2,
		CSVLogging:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.ID)
	assert.Equal(t, "alice_add_transaction", acc.Action)

	res, err := c.AddTransaction(ctx, "alice", client.TransactionParams{Amount: "5", Description: "Allowance"})
	require.NoError(t, err)
	assert.Equal(t, "15.00", res.NewBalance.StringFixed(2))
	assert.Empty(t, res.Warning)

	res, err = c.CallAction(ctx, acc.Action, client.TransactionParams{Amount: "-3.50"})
	require.NoError(t, err)
	assert.Equal(t, "11.50", res.NewBalance.StringFixed(2))
	assert.Equal(t, ledger.DescriptionDebit, res.Record.Description)

	accounts, err := c.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Len(t, accounts[0].RecentHistory, 2)

	log, err := c.Log(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, log.Verified)
	assert.Len(t, log.Rows, 3)

	imported, err := c.Import(ctx, "alice", "more.csv", strings.NewReader("amount\n1\n2\n"), true)
	require.NoError(t, err)
	assert.True(t, imported.DryRun)
	assert.Equal(t, 0, imported.Applied)

	imported, err = c.Import(ctx, "alice", "more.csv", strings.NewReader("amount\n1\n2\n"), false)
	require.NoError(t, err)
	assert.Equal(t, 2, imported.Applied)
	assert.Equal(t, "14.50", imported.Balance.StringFixed(2))

	st, err := c.Statement(ctx, "alice", client.Range{})
	require.NoError(t, err)
	assert.Equal(t, "log", st.Source)
	assert.Len(t, st.Records, 5)
	assert.Equal(t, "14.50", st.Closing.StringFixed(2))

	var buf bytes.Buffer

	name, err := c.DownloadStatement(ctx, "alice", client.Range{}, &buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "statement_alice_"))

	_, err = zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.NoError(t, err)

	require.NoError(t, c.DeleteAccount(ctx, "alice"))
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.GetAccount(ctx, "nobody")

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Message, "unknown account")

	_, err = c.CreateAccount(ctx, client.CreateAccountParams{Name: "Bob"})
	require.NoError(t, err)

	_, err = c.AddTransaction(ctx, "bob", client.TransactionParams{Amount: "abc"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}
