package amqp

import (
	"encoding/json"
	"time"
)

// PurchaseExportMessage carries only the purchase ID. The worker fetches
// the full receipt from the database, so a stale message is harmless.
type PurchaseExportMessage struct {
	PurchaseID int64     `json:"purchase_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewPurchaseExportMessage(purchaseID int64) *PurchaseExportMessage {
	return &PurchaseExportMessage{
		PurchaseID: purchaseID,
		Timestamp:  time.Now(),
	}
}

func (m *PurchaseExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PurchaseExportMessageFromJSON(data []byte) (*PurchaseExportMessage, error) {
	var msg PurchaseExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
