package sheets

import "context"

// Ports for the backup spreadsheet.
type (
	// BackupWriter appends one mirrored transaction row.
	BackupWriter interface {
		AppendRow(ctx context.Context, r Row) (rowRef string, err error)
	}

	// BackupReader returns every data row, header excluded.
	BackupReader interface {
		ReadRows(ctx context.Context) ([]Row, error)
	}

	Backup interface {
		BackupWriter
		BackupReader
	}
)
