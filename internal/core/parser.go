package core

import (
	"regexp"
	"strings"
	"time"
)

// NotificationLayout is the exact date-time shape accepted after "on".
const NotificationLayout = "02-Jan-2006 03:04PM"

var notificationPattern = regexp.MustCompile(
	`(?is)\breceived\b.*?(\d[\d,]*\.?\d*)\s*(USD|KHR)\b.*?\bon\W+(\d{2}-[a-z]{3}-\d{4})\s+(\d{2}:\d{2}[ap]m)`,
)

// Parser turns bank notification text into transactions. Timestamps are
// interpreted as wall-clock values in Location.
type Parser struct {
	Location *time.Location
}

func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{Location: loc}
}

// Parse extracts amount, currency and timestamp from text. Any failure,
// including a match whose amount or timestamp does not convert, yields
// ErrNoMatch. ChatID is left to the caller.
func (p *Parser) Parse(text string) (Transaction, error) {
	m := notificationPattern.FindStringSubmatch(text)
	if m == nil {
		return Transaction{}, ErrNoMatch
	}

	amount, err := ParseAmount(m[1])
	if err != nil {
		return Transaction{}, ErrNoMatch
	}
	currency, err := ParseCurrency(m[2])
	if err != nil {
		return Transaction{}, ErrNoMatch
	}
	// 12-hour clock: hours run 01-12.
	if strings.HasPrefix(m[4], "00") {
		return Transaction{}, ErrNoMatch
	}
	occurredAt, err := time.ParseInLocation(NotificationLayout, m[3]+" "+strings.ToUpper(m[4]), p.Location)
	if err != nil {
		return Transaction{}, ErrNoMatch
	}

	return Transaction{
		Amount:     amount,
		Currency:   currency,
		OccurredAt: occurredAt,
		RawText:    text,
	}, nil
}
