// Package sheets defines the backup spreadsheet ports and the row format
// shared by every backup implementation. A row is
// (date, time, amount, currency, chat_id, raw_text).
package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"paybot/internal/core"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"

	// HeaderDate is the first cell of an optional header row.
	HeaderDate = "Date"
	// Columns is the number of cells in a complete row.
	Columns = 6
)

var (
	ErrShortRow = errors.New("backup row has fewer than 6 columns")
	ErrHeader   = errors.New("backup header row")
)

// Header is written to an empty sheet.
var Header = []string{HeaderDate, "Time", "Amount", "Currency", "ChatID", "RawText"}

// Row is one backup record in its textual form.
type Row struct {
	Date     string
	Time     string
	Amount   string
	Currency string
	ChatID   string
	RawText  string
}

// RowFromTransaction formats tx with its wall-clock time in loc.
func RowFromTransaction(tx core.Transaction, loc *time.Location) Row {
	local := tx.OccurredAt.In(loc)
	return Row{
		Date:     local.Format(DateLayout),
		Time:     local.Format(TimeLayout),
		Amount:   tx.Amount.String(),
		Currency: tx.Currency.String(),
		ChatID:   strconv.FormatInt(tx.ChatID, 10),
		RawText:  tx.RawText,
	}
}

// RowFromValues converts a sheet row. The header row and rows with fewer
// than six cells are rejected with ErrHeader and ErrShortRow.
func RowFromValues(cells []string) (Row, error) {
	if len(cells) > 0 && strings.TrimSpace(cells[0]) == HeaderDate {
		return Row{}, ErrHeader
	}
	if len(cells) < Columns {
		return Row{}, ErrShortRow
	}
	return Row{
		Date:     strings.TrimSpace(cells[0]),
		Time:     strings.TrimSpace(cells[1]),
		Amount:   strings.TrimSpace(cells[2]),
		Currency: strings.TrimSpace(cells[3]),
		ChatID:   strings.TrimSpace(cells[4]),
		RawText:  cells[5],
	}, nil
}

// Values is the row as sheet cells.
func (r Row) Values() []string {
	return []string{r.Date, r.Time, r.Amount, r.Currency, r.ChatID, r.RawText}
}

// Transaction parses the row back into a transaction in loc.
func (r Row) Transaction(loc *time.Location) (core.Transaction, error) {
	at, err := time.ParseInLocation(DateLayout+" "+TimeLayout, r.Date+" "+r.Time, loc)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q %q", core.ErrInvalidTimestamp, r.Date, r.Time)
	}
	amount, err := core.ParseAmount(r.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", err, r.Amount)
	}
	currency, err := core.ParseCurrency(r.Currency)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", err, r.Currency)
	}
	chatID, err := strconv.ParseInt(r.ChatID, 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidChat, r.ChatID)
	}
	tx := core.Transaction{
		ChatID:     chatID,
		Amount:     amount,
		Currency:   currency,
		OccurredAt: at,
		RawText:    r.RawText,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
