package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action tells the consumer what happened to an invoice.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// InvoiceSyncMessage is a lightweight notification that an invoice changed.
// It carries only the id; consumers fetch the current invoice themselves.
type InvoiceSyncMessage struct {
	Action    Action    `json:"action"`
	InvoiceID string    `json:"invoice_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInvoiceSyncMessage(id string) *InvoiceSyncMessage {
	return &InvoiceSyncMessage{Action: ActionUpsert, InvoiceID: id, Timestamp: time.Now()}
}

func NewInvoiceDeleteMessage(id string) *InvoiceSyncMessage {
	return &InvoiceSyncMessage{Action: ActionDelete, InvoiceID: id, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes
func (m *InvoiceSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvoiceSyncMessageFromJSON decodes and validates a message.
func InvoiceSyncMessageFromJSON(data []byte) (*InvoiceSyncMessage, error) {
	var msg InvoiceSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.InvoiceID == "" {
		return nil, fmt.Errorf("missing invoice_id")
	}
	switch msg.Action {
	case ActionUpsert, ActionDelete:
	case "":
		msg.Action = ActionUpsert
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return &msg, nil
}
