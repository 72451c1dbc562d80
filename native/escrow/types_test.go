package escrow

import (
	"errors"
	"math/big"
	"testing"
)

func sampleEscrow() *Escrow {
	return &Escrow{
		ID:     [32]byte{0x01},
		Buyer:  testBuyer,
		Seller: testSeller,
		Asset:  "usdc",
		Amount: big.NewInt(1_000_000),
		FeeBps: 250,
		Quorum: 1,
		State:  StateOpen,
	}
}

func TestSanitizeEscrowNormalizes(t *testing.T) {
	original := sampleEscrow()
	sanitized, err := SanitizeEscrow(original)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Asset != "USDC" {
		t.Fatalf("expected canonical asset, got %q", sanitized.Asset)
	}
	if original.Asset != "usdc" {
		t.Fatalf("sanitize must not mutate the input")
	}
}

func TestSanitizeEscrowRejections(t *testing.T) {
	zeroAmount := sampleEscrow()
	zeroAmount.Amount = big.NewInt(0)
	if _, err := SanitizeEscrow(zeroAmount); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected zero amount rejection, got %v", err)
	}

	badQuorum := sampleEscrow()
	badQuorum.Quorum = 0
	if _, err := SanitizeEscrow(badQuorum); !errors.Is(err, ErrBadQuorum) {
		t.Fatalf("expected quorum rejection, got %v", err)
	}

	badBps := sampleEscrow()
	badBps.RetentionBps = BpsDenominator + 1
	if _, err := SanitizeEscrow(badBps); !errors.Is(err, ErrBadBps) {
		t.Fatalf("expected bps rejection, got %v", err)
	}

	overSum := sampleEscrow()
	overSum.Milestones = []*Milestone{{ID: 0, Amount: big.NewInt(2_000_000)}}
	if _, err := SanitizeEscrow(overSum); !errors.Is(err, ErrMilestoneOverTotal) {
		t.Fatalf("expected milestone sum rejection, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := sampleEscrow()
	original.Oracles = [][20]byte{testOracleA}
	original.Milestones = []*Milestone{{ID: 0, Amount: big.NewInt(100)}}
	requester := testBuyer
	original.CancelRequestedBy = &requester

	clone := original.Clone()
	clone.Amount.SetInt64(5)
	clone.Oracles[0] = testOracleB
	clone.Milestones[0].Amount.SetInt64(7)
	*clone.CancelRequestedBy = testSeller

	if original.Amount.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("amount aliased between clone and original")
	}
	if original.Oracles[0] != testOracleA {
		t.Fatalf("oracle set aliased between clone and original")
	}
	if original.Milestones[0].Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("milestone aliased between clone and original")
	}
	if *original.CancelRequestedBy != testBuyer {
		t.Fatalf("cancel requester aliased between clone and original")
	}
}

func TestStateTransitionsTerminal(t *testing.T) {
	for _, s := range []EscrowState{StateOpen, StateVerified, StatePartiallyReleased, StateDispute} {
		if s.Terminal() {
			t.Fatalf("state %s must not be terminal", s)
		}
	}
	for _, s := range []EscrowState{StateReleased, StateRefunded} {
		if !s.Terminal() {
			t.Fatalf("state %s must be terminal", s)
		}
	}
	if EscrowState(0).Valid() || EscrowState(7).Valid() {
		t.Fatalf("out-of-range states must be invalid")
	}
}

func TestEscrowIDDeterministic(t *testing.T) {
	a := EscrowID(1, testBuyer, testSeller, "USDC")
	b := EscrowID(1, testBuyer, testSeller, "USDC")
	if a != b {
		t.Fatalf("identifier derivation must be deterministic")
	}
	if EscrowID(2, testBuyer, testSeller, "USDC") == a {
		t.Fatalf("distinct projects must derive distinct identifiers")
	}
	if EscrowID(1, testBuyer, testSeller, "DAI") == a {
		t.Fatalf("distinct assets must derive distinct identifiers")
	}
}
