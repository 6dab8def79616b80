// Package memory is an in-process backup sheet, optionally seeded from a
// CSV export of the real spreadsheet.
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	ports "paybot/internal/sheets"
)

type Backup struct {
	mu   sync.Mutex
	rows []ports.Row
	path string
}

var _ ports.Backup = (*Backup)(nil)

func New(rows ...ports.Row) *Backup {
	return &Backup{rows: append([]ports.Row(nil), rows...)}
}

// NewFromCSV loads rows from a CSV export. A missing file yields an empty
// backup. Appended rows are written through to path.
func NewFromCSV(path string) (*Backup, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		b := New()
		b.path = path
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open backup csv: %w", err)
	}
	defer f.Close()
	b, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}
	b.path = path
	return b, nil
}

// ReadCSV parses CSV records; the header and short records are skipped.
func ReadCSV(r io.Reader) (*Backup, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	b := New()
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read backup csv: %w", err)
		}
		row, err := ports.RowFromValues(rec)
		if err != nil {
			continue
		}
		b.rows = append(b.rows, row)
	}
	return b, nil
}

// AppendRow stores r and returns a synthetic row reference. File-backed
// backups append r to the CSV before it is kept in memory.
func (b *Backup) AppendRow(_ context.Context, r ports.Row) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.path != "" {
		if err := appendCSV(b.path, r); err != nil {
			return "", err
		}
	}
	b.rows = append(b.rows, r)
	return fmt.Sprintf("mem:%d", len(b.rows)), nil
}

func appendCSV(path string, r ports.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open backup csv: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat backup csv: %w", err)
	}
	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(ports.Header); err != nil {
			f.Close()
			return fmt.Errorf("append backup csv: %w", err)
		}
	}
	if err := cw.Write(r.Values()); err != nil {
		f.Close()
		return fmt.Errorf("append backup csv: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("append backup csv: %w", err)
	}
	return f.Close()
}

func (b *Backup) ReadRows(_ context.Context) ([]ports.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ports.Row(nil), b.rows...), nil
}

func (b *Backup) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Save rewrites the CSV file the backup was loaded from, compacting it to
// a single header. It is a no-op for backups not created by NewFromCSV.
func (b *Backup) Save() error {
	if b.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	tmp := b.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create backup csv: %w", err)
	}
	if err := b.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write backup csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}

// WriteCSV writes a header followed by every row.
func (b *Backup) WriteCSV(w io.Writer) error {
	rows, _ := b.ReadRows(context.Background())
	cw := csv.NewWriter(w)
	if err := cw.Write(ports.Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
