package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"paybot/internal/core"
)

// MirrorMessage asks the worker to copy one stored transaction to the backup
// sheet. It carries the full record so the worker does not need to read the
// store before appending.
type MirrorMessage struct {
	MessageID     string    `json:"message_id"`
	TransactionID string    `json:"transaction_id"`
	ChatID        int64     `json:"chat_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
	RawText       string    `json:"raw_text"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewMirrorMessage(tx core.Transaction) *MirrorMessage {
	return &MirrorMessage{
		MessageID:     uuid.NewString(),
		TransactionID: tx.ID,
		ChatID:        tx.ChatID,
		Amount:        tx.Amount.String(),
		Currency:      string(tx.Currency),
		OccurredAt:    tx.OccurredAt,
		RawText:       tx.RawText,
		Timestamp:     time.Now(),
	}
}

// Transaction rebuilds the domain record carried by the message.
func (m *MirrorMessage) Transaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(m.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	cur, err := core.ParseCurrency(m.Currency)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:         m.TransactionID,
		ChatID:     m.ChatID,
		Amount:     amount,
		Currency:   cur,
		OccurredAt: m.OccurredAt,
		RawText:    m.RawText,
	}, nil
}

func (m *MirrorMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MirrorMessageFromJSON(data []byte) (*MirrorMessage, error) {
	var msg MirrorMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
