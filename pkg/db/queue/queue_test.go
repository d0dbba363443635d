package queue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/silvermoon-h/matching-engine-2/pkg/messaging"
)

func TestSendDealMessagePublishesJSONPayload(t *testing.T) {
	producer := &mockProducer{}
	sender := newSenderWithProducer(producer)

	deal := &messaging.DealMessage{
		ProductID: 1,
		Sequence:  7,
		Price:     "100.50",
		Quantity:  "3",
		MakerSide: "SELL",
	}

	if err := sender.SendDealMessage(deal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(producer.sentMessages) != 1 {
		t.Fatalf("expected 1 message sent, got %d", len(producer.sentMessages))
	}

	body, err := producer.sentMessages[0].Value.Encode()
	if err != nil {
		t.Fatalf("failed to encode message value: %v", err)
	}
	var decoded messaging.DealMessage
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("failed to unmarshal published payload: %v", err)
	}
	if decoded != *deal {
		t.Errorf("published payload mismatch: got %+v, want %+v", decoded, *deal)
	}
}

func TestSendDealMessagePropagatesProducerError(t *testing.T) {
	producer := &mockProducer{sendErr: errors.New("broker unreachable")}
	sender := newSenderWithProducer(producer)

	err := sender.SendDealMessage(&messaging.DealMessage{ProductID: 1})
	if err == nil {
		t.Fatal("expected an error when the producer fails")
	}
}
