package amqp

import (
	"testing"

	"pennywise/internal/core"
)

func TestOccurrenceMessageRoundtrip(t *testing.T) {
	msg := NewOccurrenceMessage(core.KindInstallment, "rec-123", "loan-456")
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := OccurrenceMessageFromJSON(data)
	if err != nil {
		t.Fatalf("OccurrenceMessageFromJSON: %v", err)
	}
	if got.Kind != core.KindInstallment {
		t.Errorf("kind = %q, want emi", got.Kind)
	}
	if got.RecordID != "rec-123" || got.RecurringID != "loan-456" {
		t.Errorf("ids lost: %+v", got)
	}
}

func TestOccurrenceMessageFromJSONInvalid(t *testing.T) {
	if _, err := OccurrenceMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
