package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage is the lightweight export notification. It carries
// only the transaction id; the export worker fetches the full row from the
// database so the queue never holds stale copies of ledger data.
type TransactionSyncMessage struct {
	TransactionID string    `json:"transactionId"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(transactionID string) *TransactionSyncMessage {
	return &TransactionSyncMessage{
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" {
		return nil, errEmptyTransactionID
	}
	return &msg, nil
}
