package escrow

import (
	"encoding/hex"
	"math/big"
	"testing"
)

func TestCreatedEventPayload(t *testing.T) {
	esc := sampleEscrow()
	esc.ProjectID = 42
	esc.Quorum = 2
	esc.PriceSnapshot = 1_250_000

	evt := NewCreatedEvent(esc)
	if evt.Type != EventTypeCreated {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if evt.Attributes["id"] != hex.EncodeToString(esc.ID[:]) {
		t.Fatalf("unexpected id attr: %q", evt.Attributes["id"])
	}
	if evt.Attributes["projectId"] != "42" {
		t.Fatalf("unexpected project attr: %q", evt.Attributes["projectId"])
	}
	if evt.Attributes["amount"] != "1000000" {
		t.Fatalf("unexpected amount attr: %q", evt.Attributes["amount"])
	}
	if evt.Attributes["quorum"] != "2" {
		t.Fatalf("unexpected quorum attr: %q", evt.Attributes["quorum"])
	}
	if evt.Attributes["priceSnapshot1e6"] != "1250000" {
		t.Fatalf("unexpected snapshot attr: %q", evt.Attributes["priceSnapshot1e6"])
	}
}

func TestPayoutEventAttributes(t *testing.T) {
	esc := sampleEscrow()
	payout := ComputePayout(big.NewInt(1_000_000), 250, 100, 1000, true)

	evt := NewPaymentReleasedEvent(esc, payout)
	if evt.Attributes["gross"] != "1000000" {
		t.Fatalf("unexpected gross attr: %q", evt.Attributes["gross"])
	}
	if evt.Attributes["fee"] != "25000" {
		t.Fatalf("unexpected fee attr: %q", evt.Attributes["fee"])
	}
	if evt.Attributes["insurance"] != "10000" {
		t.Fatalf("unexpected insurance attr: %q", evt.Attributes["insurance"])
	}
	if evt.Attributes["penalty"] != "96500" {
		t.Fatalf("unexpected penalty attr: %q", evt.Attributes["penalty"])
	}
	if evt.Attributes["sellerReceived"] != "868500" {
		t.Fatalf("unexpected seller attr: %q", evt.Attributes["sellerReceived"])
	}
}

func TestDisputeResolvedEventPayload(t *testing.T) {
	esc := sampleEscrow()
	evt := NewDisputeResolvedEvent(esc, OutcomeSplit, big.NewInt(400_000), big.NewInt(579_000), big.NewInt(15_000), big.NewInt(6_000))
	if evt.Attributes["outcome"] != "split" {
		t.Fatalf("unexpected outcome attr: %q", evt.Attributes["outcome"])
	}
	if evt.Attributes["buyerReceived"] != "400000" || evt.Attributes["sellerReceived"] != "579000" {
		t.Fatalf("unexpected share attrs: %+v", evt.Attributes)
	}
}

func TestEventTypeAccessor(t *testing.T) {
	evt := escrowEvent{evt: NewProgressMarkedEvent(sampleEscrow(), 123)}
	if evt.EventType() != EventTypeProgressMarked {
		t.Fatalf("unexpected event type %q", evt.EventType())
	}
	var empty escrowEvent
	if empty.EventType() != "" {
		t.Fatalf("expected empty type for nil payload")
	}
}
