package escrow

import (
	"math/big"
	"time"
)

// RequestCancel records a cancellation request by the buyer or seller. Only
// one request may be pending at a time.
func (e *Engine) RequestCancel(id [32]byte, caller [20]byte) (err error) {
	defer e.observe("request_cancel", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if !esc.isParty(caller) {
		return ErrUnauthorized
	}
	if esc.CancelRequestedBy != nil {
		return ErrCancelAlreadyRequested
	}
	requester := caller
	esc.CancelRequestedBy = &requester
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewCancelRequestedEvent(esc, caller))
	return nil
}

// ApproveCancel lets the counterparty of the original requester approve the
// cancellation, refunding the full remaining vault balance to the buyer.
func (e *Engine) ApproveCancel(id [32]byte, caller [20]byte) (err error) {
	defer e.observe("approve_cancel", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if esc.CancelRequestedBy == nil {
		return ErrCancelNotRequested
	}
	if !esc.isParty(caller) || caller == *esc.CancelRequestedBy {
		return ErrUnauthorized
	}
	balance, err := e.vaultBalance(esc)
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return ErrNothingToRelease
	}
	vault, err := e.state.EscrowVaultAddress(esc.ID)
	if err != nil {
		return err
	}
	release, err := e.lockTransfers(esc)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()
	if err := e.transfer(vault, esc.Buyer, esc.Asset, balance); err != nil {
		return err
	}
	if err := e.state.EscrowDebit(esc.ID, esc.Asset, balance); err != nil {
		return err
	}
	esc.State = StateRefunded
	esc.ReleasedTs = e.now()
	if err := release(); err != nil {
		return err
	}
	e.emit(NewCancelApprovedEvent(esc, balance))
	return nil
}

// OpenDispute flags the escrow as disputed. Buyer or seller only; any state
// with unresolved funds qualifies, terminal states do not.
func (e *Engine) OpenDispute(id [32]byte, caller [20]byte, reasonCode uint16, evidenceHash [32]byte) (err error) {
	defer e.observe("open_dispute", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if !esc.isParty(caller) {
		return ErrUnauthorized
	}
	if esc.DisputeOpen {
		return ErrDisputeAlreadyOpen
	}
	if esc.State.Terminal() || esc.State == StateDispute {
		return ErrInvalidState
	}
	esc.DisputeOpen = true
	esc.State = StateDispute
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewDisputeOpenedEvent(esc, reasonCode, evidenceHash))
	return nil
}

// ResolveDispute applies the arbiter-chosen outcome to the remaining vault
// balance. Fees and the insurance cut are deducted from the seller-bound
// portion only; the buyer's share is never fee-bearing. Transfer order is
// buyer, seller net, fee, insurance cut.
func (e *Engine) ResolveDispute(id [32]byte, caller [20]byte, outcome DisputeOutcome, sellerPctBps uint32) (err error) {
	defer e.observe("resolve_dispute", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if e.market == nil {
		return errNilMarket
	}
	arbiter, err := e.market.Arbiter()
	if err != nil {
		return err
	}
	if caller != arbiter {
		return ErrUnauthorized
	}
	if !esc.DisputeOpen {
		return ErrNoOpenDispute
	}
	if !outcome.Valid() {
		return ErrInvalidState
	}
	if sellerPctBps > BpsDenominator {
		return ErrBadBps
	}
	total, err := e.vaultBalance(esc)
	if err != nil {
		return err
	}
	if total.Sign() == 0 {
		return ErrNothingToRelease
	}
	var buyerAmt, sellerGross *big.Int
	switch outcome {
	case OutcomeRefund:
		buyerAmt, sellerGross = new(big.Int).Set(total), big.NewInt(0)
	case OutcomeRelease:
		buyerAmt, sellerGross = big.NewInt(0), new(big.Int).Set(total)
	case OutcomeSplit:
		buyerAmt, sellerGross = SplitDispute(total, sellerPctBps)
	}
	var fee, insurance *big.Int
	if sellerGross.Sign() > 0 {
		fee, insurance = FeeSplit(sellerGross, esc.FeeBps, esc.InsuranceBps)
	} else {
		fee, insurance = big.NewInt(0), big.NewInt(0)
	}
	sellerNet := SubSat(sellerGross, new(big.Int).Add(fee, insurance))

	vault, err := e.state.EscrowVaultAddress(esc.ID)
	if err != nil {
		return err
	}
	treasury, err := e.market.Treasury()
	if err != nil {
		return err
	}
	insuranceTreasury, err := e.market.InsuranceTreasury()
	if err != nil {
		return err
	}
	release, err := e.lockTransfers(esc)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()
	if err := e.transfer(vault, esc.Buyer, esc.Asset, buyerAmt); err != nil {
		return err
	}
	if err := e.transfer(vault, esc.Seller, esc.Asset, sellerNet); err != nil {
		return err
	}
	if err := e.transfer(vault, treasury, esc.Asset, fee); err != nil {
		return err
	}
	if err := e.transfer(vault, insuranceTreasury, esc.Asset, insurance); err != nil {
		return err
	}
	if err := e.state.EscrowDebit(esc.ID, esc.Asset, total); err != nil {
		return err
	}
	esc.DisputeOpen = false
	if sellerGross.Sign() > 0 {
		esc.State = StateReleased
	} else {
		esc.State = StateRefunded
	}
	esc.ReleasedTs = e.now()
	if err := release(); err != nil {
		return err
	}
	e.emit(NewDisputeResolvedEvent(esc, outcome, buyerAmt, sellerNet, fee, insurance))
	return nil
}
