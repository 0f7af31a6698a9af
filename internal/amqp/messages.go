package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DocumentSyncMessage announces that a stored document changed.
// It carries only the key and version; the worker reads the document itself.
type DocumentSyncMessage struct {
	MessageID string    `json:"message_id"`
	Key       string    `json:"key"`
	Version   int64     `json:"version"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDocumentSyncMessage creates a sync message with a fresh message id
func NewDocumentSyncMessage(key string, version int64, operation string) *DocumentSyncMessage {
	return &DocumentSyncMessage{
		MessageID: uuid.New().String(),
		Key:       key,
		Version:   version,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DocumentSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DocumentSyncMessageFromJSON creates a message from JSON bytes
func DocumentSyncMessageFromJSON(data []byte) (*DocumentSyncMessage, error) {
	var msg DocumentSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
