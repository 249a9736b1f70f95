package streaming

import (
	"encoding/json"
	"errors"
	"time"
)

type MessageType string

const (
	MessageTypeValidators   MessageType = "validators"
	MessageTypeThroughput   MessageType = "throughput"
	MessageTypeTransactions MessageType = "transactions"
	MessageTypeNetwork      MessageType = "network"
)

// Message carries one published snapshot of a dashboard query.
type Message struct {
	Type      MessageType     `json:"type"`
	FetchedAt time.Time       `json:"fetched_at"`
	Height    uint64          `json:"height,omitempty"`
	Failed    bool            `json:"failed,omitempty"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeValidators, MessageTypeThroughput, MessageTypeTransactions, MessageTypeNetwork:
		return true
	}
	return false
}

func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	if !msg.Type.Valid() {
		return nil, errors.New("unknown message type " + string(msg.Type))
	}
	if len(msg.Payload) == 0 {
		msg.Payload = json.RawMessage("null")
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, errors.New("message type is missing")
	}
	return msg, nil
}
