package escrow

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	// MaxOracles bounds the oracle set registered on a single escrow.
	MaxOracles = 8
	// MaxMilestones bounds the milestone ledger of a single escrow.
	MaxMilestones = 10
	// QuorumMin is the smallest acceptable quorum threshold.
	QuorumMin = 1
	// EvidenceURIPrefixLen bounds the cached evidence URI prefix.
	EvidenceURIPrefixLen = 96
)

// EscrowState enumerates the lifecycle states of a construction escrow.
type EscrowState uint8

const (
	StateOpen EscrowState = iota + 1
	StateVerified
	StatePartiallyReleased
	StateReleased
	StateRefunded
	StateDispute
)

// Valid reports whether the state value is within the supported range.
func (s EscrowState) Valid() bool {
	switch s {
	case StateOpen, StateVerified, StatePartiallyReleased, StateReleased, StateRefunded, StateDispute:
		return true
	default:
		return false
	}
}

// Terminal reports whether the escrow can never leave this state.
func (s EscrowState) Terminal() bool {
	return s == StateReleased || s == StateRefunded
}

func (s EscrowState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateVerified:
		return "verified"
	case StatePartiallyReleased:
		return "partially_released"
	case StateReleased:
		return "released"
	case StateRefunded:
		return "refunded"
	case StateDispute:
		return "dispute"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// DisputeOutcome is the arbiter-chosen settlement of an open dispute.
type DisputeOutcome uint8

const (
	OutcomeRefund DisputeOutcome = iota + 1
	OutcomeRelease
	OutcomeSplit
)

// Valid reports whether the outcome value is within the supported range.
func (o DisputeOutcome) Valid() bool {
	switch o {
	case OutcomeRefund, OutcomeRelease, OutcomeSplit:
		return true
	default:
		return false
	}
}

func (o DisputeOutcome) String() string {
	switch o {
	case OutcomeRefund:
		return "refund"
	case OutcomeRelease:
		return "release"
	case OutcomeSplit:
		return "split"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(o))
	}
}

// Escrow captures the configuration snapshot, oracle set, milestone ledger and
// lifecycle status of a single construction project escrow.
type Escrow struct {
	ID        [32]byte `json:"id"`
	ProjectID uint64   `json:"projectId"`
	Buyer     [20]byte `json:"buyer"`
	Seller    [20]byte `json:"seller"`
	Asset     string   `json:"asset"`

	// Economics, snapshotted from the market config at creation.
	Amount         *big.Int `json:"amount"`
	FeeBps         uint32   `json:"feeBps"`
	InsuranceBps   uint32   `json:"insuranceBps"`
	RetentionBps   uint32   `json:"retentionBps"`
	LatePenaltyBps uint32   `json:"latePenaltyBps"`
	PriceSnapshot  uint64   `json:"priceSnapshot1e6"`

	// Oracle set and quorum threshold. Slots are occupied, never sentinel
	// placeholders: len(Oracles) is the registered count.
	Oracles [][20]byte `json:"oracles"`
	Quorum  uint8      `json:"quorum"`

	// Lifecycle.
	State         EscrowState `json:"state"`
	CreatedTs     int64       `json:"createdTs"`
	VerifiedTs    int64       `json:"verifiedTs"`
	ReleasedTs    int64       `json:"releasedTs"`
	VerifyByTs    int64       `json:"verifyByTs"`
	DeliverByTs   int64       `json:"deliverByTs"`
	WarrantyEndTs int64       `json:"warrantyEndTs"`
	InProgress    bool        `json:"inProgress"`

	Milestones []*Milestone `json:"milestones"`

	// Evidence cache and attestation counter. Informational; never read by
	// payout logic.
	LastEvidenceHash  [32]byte `json:"lastEvidenceHash"`
	LastEvidenceURI   []byte   `json:"lastEvidenceUri"`
	AttestationsCount uint32   `json:"attestationsCount"`

	// Cancellation and dispute.
	CancelRequestedBy *[20]byte `json:"cancelRequestedBy,omitempty"`
	DisputeOpen       bool      `json:"disputeOpen"`

	// Optional receipt token reference.
	ReceiptEnabled bool `json:"receiptEnabled"`
	ReceiptMinted  bool `json:"receiptMinted"`

	// Guards and replay bookkeeping.
	InTransfer        bool   `json:"inTransfer"`
	RetentionReleased bool   `json:"retentionReleased"`
	LastNonce         uint64 `json:"lastNonce"`
}

// Clone returns a deep copy so callers can mutate freely without affecting the
// stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if len(e.Oracles) > 0 {
		clone.Oracles = make([][20]byte, len(e.Oracles))
		copy(clone.Oracles, e.Oracles)
	}
	if len(e.Milestones) > 0 {
		clone.Milestones = make([]*Milestone, len(e.Milestones))
		for i, m := range e.Milestones {
			clone.Milestones[i] = m.Clone()
		}
	}
	if len(e.LastEvidenceURI) > 0 {
		clone.LastEvidenceURI = append([]byte(nil), e.LastEvidenceURI...)
	}
	if e.CancelRequestedBy != nil {
		requester := *e.CancelRequestedBy
		clone.CancelRequestedBy = &requester
	}
	return &clone
}

// MilestoneSum returns the cumulative amount of all ledger entries.
func (e *Escrow) MilestoneSum() *big.Int {
	sum := big.NewInt(0)
	if e == nil {
		return sum
	}
	for _, m := range e.Milestones {
		if m != nil && m.Amount != nil {
			sum.Add(sum, m.Amount)
		}
	}
	return sum
}

// Milestone returns the ledger entry with the given ordinal id.
func (e *Escrow) Milestone(id uint8) (*Milestone, error) {
	if e == nil || int(id) >= len(e.Milestones) {
		return nil, ErrBadMilestoneID
	}
	m := e.Milestones[id]
	if m == nil {
		return nil, ErrBadMilestoneID
	}
	return m, nil
}

func (e *Escrow) isBuyer(caller [20]byte) bool  { return e != nil && e.Buyer == caller }
func (e *Escrow) isSeller(caller [20]byte) bool { return e != nil && e.Seller == caller }

func (e *Escrow) isParty(caller [20]byte) bool {
	return e.isBuyer(caller) || e.isSeller(caller)
}

// NormalizeAsset canonicalises a funding asset symbol. Symbols are opaque to
// the engine beyond being non-empty uppercase identifiers.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", ErrBadAsset
	}
	return trimmed, nil
}

// SanitizeEscrow validates and normalises an escrow definition, returning a
// clone with canonical asset casing and a non-nil amount. The original value
// is never mutated.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow: nil escrow")
	}
	clone := e.Clone()
	asset, err := NormalizeAsset(clone.Asset)
	if err != nil {
		return nil, err
	}
	clone.Asset = asset
	if clone.Amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if clone.Quorum < QuorumMin {
		return nil, ErrBadQuorum
	}
	if len(clone.Oracles) > MaxOracles {
		return nil, ErrTooManyOracles
	}
	if len(clone.Milestones) > MaxMilestones {
		return nil, ErrTooManyMilestones
	}
	if clone.MilestoneSum().Cmp(clone.Amount) > 0 {
		return nil, ErrMilestoneOverTotal
	}
	for _, bps := range []uint32{clone.FeeBps, clone.InsuranceBps, clone.RetentionBps, clone.LatePenaltyBps} {
		if bps > BpsDenominator {
			return nil, ErrBadBps
		}
	}
	if !clone.State.Valid() {
		return nil, fmt.Errorf("escrow: invalid state: %d", clone.State)
	}
	if len(clone.LastEvidenceURI) > EvidenceURIPrefixLen {
		clone.LastEvidenceURI = clone.LastEvidenceURI[:EvidenceURIPrefixLen]
	}
	return clone, nil
}

// Attestation is an append-only inspector note attached to an escrow. It is
// purely informational and never consulted by payout logic.
type Attestation struct {
	EscrowID [32]byte `json:"escrowId"`
	Attester [20]byte `json:"attester"`
	Hash     [32]byte `json:"hash"`
	URI      []byte   `json:"uri"`
	Ts       int64    `json:"ts"`
}

// Clone returns a copy safe for modification.
func (a *Attestation) Clone() *Attestation {
	if a == nil {
		return nil
	}
	clone := *a
	if len(a.URI) > 0 {
		clone.URI = append([]byte(nil), a.URI...)
	}
	return &clone
}
