package escrow

import (
	"math/big"
	"time"
)

// AddMilestone appends a ledger entry. Buyer or seller only, while the escrow
// is still Open or Verified. The insert is rejected when the ledger is full
// or the cumulative amount would exceed the escrow total; prior entries are
// left untouched.
func (e *Engine) AddMilestone(id [32]byte, caller [20]byte, amount *big.Int, evidenceHash [32]byte) (_ *Milestone, err error) {
	defer e.observe("add_milestone", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if !esc.isParty(caller) {
		return nil, ErrUnauthorized
	}
	if esc.State != StateOpen && esc.State != StateVerified {
		return nil, ErrInvalidState
	}
	m, err := esc.appendMilestone(amount, evidenceHash)
	if err != nil {
		return nil, err
	}
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewMilestoneAddedEvent(esc, m))
	return m.Clone(), nil
}

// VerifyMilestone records an oracle-quorum verification for one milestone.
// A verified milestone promotes an Open escrow to Verified.
func (e *Engine) VerifyMilestone(id [32]byte, milestoneID uint8, voters [][20]byte) (err error) {
	defer e.observe("verify_milestone", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	m, err := esc.Milestone(milestoneID)
	if err != nil {
		return err
	}
	votes := CountQuorumVotes(esc, voters)
	if votes < esc.Quorum {
		return ErrQuorumNotMet
	}
	if m.Verified {
		return ErrAlreadyVerified
	}
	m.Verified = true
	m.VerifyTs = e.now()
	if esc.State == StateOpen {
		esc.State = StateVerified
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewMilestoneVerifiedEvent(esc, m))
	return nil
}

// ReleaseForMilestone pays out one verified, unreleased milestone. The fee
// and insurance cuts are computed on the milestone amount, and a late penalty
// applies when the deliver-by deadline has passed. Payout destinations come
// from the recorded identities, so any caller may trigger the release.
func (e *Engine) ReleaseForMilestone(id [32]byte, milestoneID uint8) (err error) {
	defer e.observe("release_milestone", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	m, err := esc.Milestone(milestoneID)
	if err != nil {
		return err
	}
	if !m.Verified || m.Released {
		return ErrMilestoneNotReleasable
	}
	balance, err := e.vaultBalance(esc)
	if err != nil {
		return err
	}
	if balance.Cmp(m.Amount) < 0 {
		return ErrVaultBalanceLow
	}
	now := e.now()
	late := esc.DeliverByTs > 0 && now > esc.DeliverByTs
	payout := ComputePayout(m.Amount, esc.FeeBps, esc.InsuranceBps, esc.LatePenaltyBps, late)
	release, err := e.lockTransfers(esc)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()
	if err := e.routePayout(esc, payout); err != nil {
		return err
	}
	m.Released = true
	esc.State = StatePartiallyReleased
	esc.ReleasedTs = now
	if err := release(); err != nil {
		return err
	}
	e.emit(NewMilestoneReleasedEvent(esc, m, payout))
	return nil
}
