package store

import (
	"fmt"
	"sort"
	"strings"

	"paybot/internal/core"
)

// Label segment offsets inside a core.LocalLayout stamp "YYYY-MM-DD HH:MM:SS".
const (
	segYear   = 0
	segMonth  = 5
	segDay    = 8
	segHour   = 11
	segMinute = 14
)

// LocalPrefix builds the stamp prefix that selects a navigation level, e.g.
// ("2025", "11") -> "2025-11-".
func LocalPrefix(parts ...string) string {
	seps := []string{"-", "-", " ", ":"}
	var b strings.Builder
	for i, p := range parts {
		b.WriteString(p)
		if i < len(seps) {
			b.WriteString(seps[i])
		}
	}
	return b.String()
}

// DayPrefix is LocalPrefix for a "YYYY-MM-DD" date.
func DayPrefix(date string) string {
	return date + " "
}

// Segment extracts the label at offset from a local stamp.
func Segment(stamp string, offset int) (string, error) {
	width := 2
	if offset == segYear {
		width = 4
	}
	if len(stamp) < len(core.LocalLayout) || offset+width > len(stamp) {
		return "", fmt.Errorf("malformed local stamp %q", stamp)
	}
	return stamp[offset : offset+width], nil
}

// Labels derives sorted distinct labels at offset from stamps that share
// prefix. Malformed stamps are skipped.
func Labels(stamps []string, prefix string, offset int) []string {
	seen := make(map[string]struct{})
	for _, s := range stamps {
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		l, err := Segment(s, offset)
		if err != nil {
			continue
		}
		seen[l] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func YearLabels(stamps []string) []string { return Labels(stamps, "", segYear) }

func MonthLabels(stamps []string, year string) []string {
	return Labels(stamps, LocalPrefix(year), segMonth)
}

func DayLabels(stamps []string, year, month string) []string {
	return Labels(stamps, LocalPrefix(year, month), segDay)
}

func HourLabels(stamps []string, date string) []string {
	return Labels(stamps, DayPrefix(date), segHour)
}

func MinuteLabels(stamps []string, date, hour string) []string {
	return Labels(stamps, DayPrefix(date)+hour+":", segMinute)
}

// DedupKey is the restore identity of a transaction.
func DedupKey(tx core.Transaction) string {
	return fmt.Sprintf("%d|%d|%s", tx.ChatID, tx.OccurredAt.Unix(), tx.Amount.String())
}
