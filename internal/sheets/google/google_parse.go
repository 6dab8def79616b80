package google

import (
	"errors"
	"fmt"
	"strings"

	ports "paybot/internal/sheets"
)

// parseRows converts a values matrix (as returned by the Sheets API) into
// backup rows. It returns the rows and the number of short rows dropped;
// the header row is not counted.
func parseRows(values [][]interface{}) ([]ports.Row, int) {
	rows := make([]ports.Row, 0, len(values))
	skipped := 0
	for i, raw := range values {
		r, err := ports.RowFromValues(toStrings(raw))
		switch {
		case err == nil:
			rows = append(rows, r)
		case errors.Is(err, ports.ErrHeader) && i == 0:
		default:
			skipped++
		}
	}
	return rows, skipped
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
		if i != ports.Columns-1 {
			out[i] = strings.TrimSpace(out[i])
		}
	}
	return out
}
