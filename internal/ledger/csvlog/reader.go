package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

var ErrNoHeader = errors.New("no log header found")

// Row is one data row with its raw cell values. Line is 1-based.
type Row struct {
	Line         int
	Timestamp    string
	Amount       string
	Description  string
	BalanceAfter string
}

type columns map[string]int

func (c columns) has(names ...string) bool {
	for _, n := range names {
		if _, ok := c[n]; !ok {
			return false
		}
	}

	return true
}

func (c columns) cell(row []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

// ReadRows returns the raw rows under the first header that names at least
// an amount column. Blank rows are skipped.
func ReadRows(r io.Reader) ([]Row, error) {
	rows, cols, headerIdx, err := readTable(r, ColAmount)
	if err != nil {
		return nil, err
	}

	var out []Row

	for i, row := range rows[headerIdx+1:] {
		if blank(row) {
			continue
		}

		out = append(out, Row{
			Line:         headerIdx + i + 2,
			Timestamp:    cols.cell(row, ColTimestamp),
			Amount:       cols.cell(row, ColAmount),
			Description:  cols.cell(row, ColDescription),
			BalanceAfter: cols.cell(row, ColBalanceAfter),
		})
	}

	return out, nil
}

// Read parses a complete durable log. Every column is required and any
// malformed row fails the whole read.
func Read(r io.Reader) ([]ledger.Record, error) {
	rows, cols, headerIdx, err := readTable(r, Header...)
	if err != nil {
		return nil, err
	}

	var recs []ledger.Record

	for i, row := range rows[headerIdx+1:] {
		if blank(row) {
			continue
		}

		line := headerIdx + i + 2

		rec, err := parseRecord(cols, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		recs = append(recs, rec)
	}

	return recs, nil
}

func parseRecord(cols columns, row []string) (ledger.Record, error) {
	ts, err := parseTimestamp(cols.cell(row, ColTimestamp))
	if err != nil {
		return ledger.Record{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	amount, err := decimal.NewFromString(cols.cell(row, ColAmount))
	if err != nil {
		return ledger.Record{}, fmt.Errorf("invalid amount: %w", err)
	}

	balance, err := decimal.NewFromString(cols.cell(row, ColBalanceAfter))
	if err != nil {
		return ledger.Record{}, fmt.Errorf("invalid balance_after: %w", err)
	}

	return ledger.Record{
		Timestamp:    ts.UTC(),
		Amount:       amount,
		Description:  cols.cell(row, ColDescription),
		BalanceAfter: balance,
	}, nil
}

func readTable(r io.Reader, required ...string) ([][]string, columns, int, error) {
	utf8r, err := toUTF8(r)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("read csv: %w", err)
	}

	for idx, row := range rows {
		cols := make(columns, len(row))
		for i, cell := range row {
			if name := strings.ToLower(strings.TrimSpace(cell)); name != "" {
				cols[name] = i
			}
		}

		if cols.has(required...) {
			return rows, cols, idx, nil
		}
	}

	return nil, nil, 0, fmt.Errorf("%w: expected columns %s", ErrNoHeader, strings.Join(required, ", "))
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}
