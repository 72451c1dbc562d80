package escrow

import "testing"

func quorumEscrow(oracles ...[20]byte) *Escrow {
	return &Escrow{Oracles: oracles, Quorum: 2}
}

func TestCountQuorumVotes(t *testing.T) {
	esc := quorumEscrow(testOracleA, testOracleB, testOracleC)

	if got := CountQuorumVotes(esc, nil); got != 0 {
		t.Fatalf("expected zero votes for no voters, got %d", got)
	}
	if got := CountQuorumVotes(esc, [][20]byte{testOracleA}); got != 1 {
		t.Fatalf("expected one vote, got %d", got)
	}
	if got := CountQuorumVotes(esc, [][20]byte{testOracleA, testOracleB, testOracleC}); got != 3 {
		t.Fatalf("expected three votes, got %d", got)
	}
}

func TestCountQuorumVotesDeduplicates(t *testing.T) {
	esc := quorumEscrow(testOracleA, testOracleB)

	// The same signer repeated contributes exactly one vote.
	voters := [][20]byte{testOracleA, testOracleA, testOracleA}
	if got := CountQuorumVotes(esc, voters); got != 1 {
		t.Fatalf("expected duplicate voter counted once, got %d", got)
	}
}

func TestCountQuorumVotesIgnoresOutsiders(t *testing.T) {
	esc := quorumEscrow(testOracleA, testOracleB)

	voters := [][20]byte{testBuyer, testSeller, testOracleC, testOracleB}
	if got := CountQuorumVotes(esc, voters); got != 1 {
		t.Fatalf("expected only registered oracles counted, got %d", got)
	}
}

func TestCountQuorumVotesSkipsZeroIdentity(t *testing.T) {
	var zero [20]byte
	esc := quorumEscrow(testOracleA, zero)

	voters := [][20]byte{zero, zero, testOracleA}
	if got := CountQuorumVotes(esc, voters); got != 1 {
		t.Fatalf("expected zero identity never counted, got %d", got)
	}
}

func TestCountQuorumVotesDuplicateOracleSlots(t *testing.T) {
	// Two slots holding the same oracle still yield one vote per distinct
	// signer appearance, never a double count from a single signature.
	esc := quorumEscrow(testOracleA, testOracleA)

	if got := CountQuorumVotes(esc, [][20]byte{testOracleA}); got != 1 {
		t.Fatalf("expected one vote for one signer, got %d", got)
	}
}

func TestCountQuorumVotesEmptyOracleSet(t *testing.T) {
	esc := &Escrow{Quorum: 1}
	if got := CountQuorumVotes(esc, [][20]byte{testOracleA}); got != 0 {
		t.Fatalf("expected zero votes without oracle set, got %d", got)
	}
}
