package escrow

import (
	"math/big"
)

// Milestone is a named portion of the escrow total, independently verifiable
// and independently payable.
type Milestone struct {
	ID           uint8    `json:"id"`
	Amount       *big.Int `json:"amount"`
	Verified     bool     `json:"verified"`
	Released     bool     `json:"released"`
	VerifyTs     int64    `json:"verifyTs"`
	EvidenceHash [32]byte `json:"evidenceHash"`
}

// Clone returns a deep copy of the milestone.
func (m *Milestone) Clone() *Milestone {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Amount != nil {
		clone.Amount = new(big.Int).Set(m.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// appendMilestone inserts a new ledger entry after checking the capacity and
// the sum-over-total invariant. The invariant is checked at insertion only;
// it is never re-evaluated retroactively.
func (e *Escrow) appendMilestone(amount *big.Int, evidenceHash [32]byte) (*Milestone, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if len(e.Milestones) >= MaxMilestones {
		return nil, ErrTooManyMilestones
	}
	sum := e.MilestoneSum()
	sum.Add(sum, amount)
	if sum.Cmp(e.Amount) > 0 {
		return nil, ErrMilestoneOverTotal
	}
	m := &Milestone{
		ID:           uint8(len(e.Milestones)),
		Amount:       new(big.Int).Set(amount),
		EvidenceHash: evidenceHash,
	}
	e.Milestones = append(e.Milestones, m)
	return m, nil
}
