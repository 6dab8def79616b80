package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Transaction struct {
	ID            int64
	ChatID        int64
	Amount        string
	Currency      string
	OccurredAt    int64
	OccurredLocal string
	RawText       string
	Mirrored      bool
}

const insertTransaction = `
INSERT INTO transactions (chat_id, amount, currency, occurred_at, occurred_local, raw_text, mirrored)
VALUES (?, ?, ?, ?, ?, ?, 0)
RETURNING id
`

type InsertTransactionParams struct {
	ChatID        int64
	Amount        string
	Currency      string
	OccurredAt    int64
	OccurredLocal string
	RawText       string
}

func (q *Queries) InsertTransaction(ctx context.Context, arg InsertTransactionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertTransaction,
		arg.ChatID, arg.Amount, arg.Currency, arg.OccurredAt, arg.OccurredLocal, arg.RawText)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const importTransaction = `
INSERT INTO transactions (chat_id, amount, currency, occurred_at, occurred_local, raw_text, mirrored)
SELECT ?1, ?2, ?3, ?4, ?5, ?6, 1
WHERE NOT EXISTS (
    SELECT 1 FROM transactions WHERE chat_id = ?1 AND occurred_at = ?4 AND amount = ?2
)
`

// ImportTransaction inserts arg unless a row with the same restore key
// exists. It reports whether a row was written.
func (q *Queries) ImportTransaction(ctx context.Context, arg InsertTransactionParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, importTransaction,
		arg.ChatID, arg.Amount, arg.Currency, arg.OccurredAt, arg.OccurredLocal, arg.RawText)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const listAmountsInRange = `
SELECT currency, amount FROM transactions
WHERE chat_id = ? AND occurred_at BETWEEN ? AND ?
`

type AmountRow struct {
	Currency string
	Amount   string
}

func (q *Queries) ListAmountsInRange(ctx context.Context, chatID, start, end int64) ([]AmountRow, error) {
	rows, err := q.db.QueryContext(ctx, listAmountsInRange, chatID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AmountRow
	for rows.Next() {
		var i AmountRow
		if err := rows.Scan(&i.Currency, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const distinctYears = `
SELECT DISTINCT substr(occurred_local, 1, 4) FROM transactions
WHERE chat_id = ? ORDER BY 1
`

const distinctMonths = `
SELECT DISTINCT substr(occurred_local, 6, 2) FROM transactions
WHERE chat_id = ? AND substr(occurred_local, 1, 4) = ? ORDER BY 1
`

const distinctDays = `
SELECT DISTINCT substr(occurred_local, 9, 2) FROM transactions
WHERE chat_id = ? AND substr(occurred_local, 1, 7) = ? ORDER BY 1
`

const distinctHours = `
SELECT DISTINCT substr(occurred_local, 12, 2) FROM transactions
WHERE chat_id = ? AND substr(occurred_local, 1, 10) = ? ORDER BY 1
`

const distinctMinutes = `
SELECT DISTINCT substr(occurred_local, 15, 2) FROM transactions
WHERE chat_id = ? AND substr(occurred_local, 1, 13) = ? ORDER BY 1
`

func (q *Queries) labels(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) DistinctYears(ctx context.Context, chatID int64) ([]string, error) {
	return q.labels(ctx, distinctYears, chatID)
}

func (q *Queries) DistinctMonths(ctx context.Context, chatID int64, year string) ([]string, error) {
	return q.labels(ctx, distinctMonths, chatID, year)
}

// DistinctDays filters on the "YYYY-MM" prefix.
func (q *Queries) DistinctDays(ctx context.Context, chatID int64, yearMonth string) ([]string, error) {
	return q.labels(ctx, distinctDays, chatID, yearMonth)
}

// DistinctHours filters on the "YYYY-MM-DD" prefix.
func (q *Queries) DistinctHours(ctx context.Context, chatID int64, date string) ([]string, error) {
	return q.labels(ctx, distinctHours, chatID, date)
}

// DistinctMinutes filters on the "YYYY-MM-DD HH" prefix.
func (q *Queries) DistinctMinutes(ctx context.Context, chatID int64, dateHour string) ([]string, error) {
	return q.labels(ctx, distinctMinutes, chatID, dateHour)
}

const countTransactions = `SELECT COUNT(*) FROM transactions`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactions).Scan(&n)
	return n, err
}

const listPendingMirror = `
SELECT id, chat_id, amount, currency, occurred_at, occurred_local, raw_text, mirrored
FROM transactions WHERE mirrored = 0 ORDER BY id LIMIT ?
`

func (q *Queries) ListPendingMirror(ctx context.Context, limit int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listPendingMirror, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(&i.ID, &i.ChatID, &i.Amount, &i.Currency, &i.OccurredAt, &i.OccurredLocal, &i.RawText, &i.Mirrored); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markMirrored = `UPDATE transactions SET mirrored = 1 WHERE id = ?`

const getMirrored = `SELECT mirrored FROM transactions WHERE id = ?`

func (q *Queries) GetMirrored(ctx context.Context, id int64) (bool, error) {
	var mirrored bool
	err := q.db.QueryRowContext(ctx, getMirrored, id).Scan(&mirrored)
	return mirrored, err
}

func (q *Queries) MarkMirrored(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markMirrored, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
