package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	USD Currency = "USD"
	KHR Currency = "KHR"
)

type (
	Currency string

	// Transaction is a single received payment extracted from a chat message.
	// It is never mutated after creation.
	Transaction struct {
		ID         string // Backend-assigned reference, empty until stored
		ChatID     int64
		Amount     decimal.Decimal
		Currency   Currency
		OccurredAt time.Time
		RawText    string
	}
)

var (
	ErrNoMatch          = errors.New("text does not match a payment notification")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrEmptyText        = errors.New("empty raw text")
	ErrInvalidChat      = errors.New("invalid chat id")
)

// Currencies lists the supported currencies in display order.
func Currencies() []Currency {
	return []Currency{USD, KHR}
}

// ParseCurrency upper-cases s and checks it against the supported set.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

func (c Currency) IsValid() bool {
	switch c {
	case USD, KHR:
		return true
	default:
		return false
	}
}

func (c Currency) String() string {
	return string(c)
}

func (t Transaction) Validate() error {
	if t.ChatID == 0 {
		return ErrInvalidChat
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	if t.OccurredAt.IsZero() {
		return ErrInvalidTimestamp
	}
	if strings.TrimSpace(t.RawText) == "" {
		return ErrEmptyText
	}
	return nil
}

// LocalStamp is the wall-clock form of OccurredAt in loc, as persisted for
// drill-down navigation and backup rows.
func (t Transaction) LocalStamp(loc *time.Location) string {
	return t.OccurredAt.In(loc).Format(LocalLayout)
}

// LocalLayout is the wall-clock layout shared by stores and the backup sheet.
const LocalLayout = "2006-01-02 15:04:05"
