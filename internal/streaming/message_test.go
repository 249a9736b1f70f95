package streaming

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEncodeDecode(t *testing.T) {
	fetched := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload, err := Encode(Message{
		Type:      MessageTypeThroughput,
		FetchedAt: fetched,
		Height:    42,
		Payload:   json.RawMessage(`[{"height":42,"transactionCount":3}]`),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Type != MessageTypeThroughput || msg.Height != 42 || !msg.FetchedAt.Equal(fetched) {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Failed || msg.Error != "" {
		t.Errorf("unexpected failure flag %+v", msg)
	}
}

func TestEncodeRejectsUnknownType(t *testing.T) {
	if _, err := Encode(Message{}); err == nil {
		t.Error("expected error for empty type")
	}
	if _, err := Encode(Message{Type: "blocks"}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestEncodeNilPayload(t *testing.T) {
	payload, err := Encode(Message{Type: MessageTypeNetwork, Failed: true, Error: "transport"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(msg.Payload) != "null" || !msg.Failed {
		t.Errorf("unexpected message %+v payload=%s", msg, msg.Payload)
	}
}

func TestDecodeMissingType(t *testing.T) {
	if _, err := Decode([]byte(`{"payload":null}`)); err == nil {
		t.Error("expected error for missing type")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid json")
	}
}
