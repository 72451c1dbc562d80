package escrow

import (
	"math/big"
	"time"
)

// routePayout issues the transfer sequence for a computed payout: penalty to
// the buyer, fee to the treasury, insurance cut to the insurance treasury and
// the remainder to the seller, each leg skipped when zero. The vault ledger is
// debited by the gross amount once all legs have moved.
func (e *Engine) routePayout(esc *Escrow, p Payout) error {
	if e.market == nil {
		return errNilMarket
	}
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
	if err := e.transfer(vault, esc.Buyer, esc.Asset, p.Penalty); err != nil {
		return err
	}
	if err := e.transfer(vault, treasury, esc.Asset, p.Fee); err != nil {
		return err
	}
	if err := e.transfer(vault, insuranceTreasury, esc.Asset, p.Insurance); err != nil {
		return err
	}
	if err := e.transfer(vault, esc.Seller, esc.Asset, p.Seller); err != nil {
		return err
	}
	return e.state.EscrowDebit(esc.ID, esc.Asset, p.Gross)
}

// ReleasePayment pays out the remaining vault balance at escrow scope,
// withholding the retention amount while the warranty window is still open.
// Allowed only once delivery has been verified.
func (e *Engine) ReleasePayment(id [32]byte) (err error) {
	defer e.observe("release_payment", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if esc.State != StateVerified && esc.State != StatePartiallyReleased {
		return ErrInvalidState
	}
	balance, err := e.vaultBalance(esc)
	if err != nil {
		return err
	}
	remaining := new(big.Int).Set(balance)
	if !esc.RetentionReleased {
		retention := RetentionDue(esc.Amount, esc.RetentionBps)
		if retention.Cmp(remaining) > 0 {
			retention = remaining
		}
		remaining = SubSat(remaining, retention)
	}
	if remaining.Sign() == 0 {
		return ErrNothingToRelease
	}
	now := e.now()
	late := esc.DeliverByTs > 0 && now > esc.DeliverByTs
	payout := ComputePayout(remaining, esc.FeeBps, esc.InsuranceBps, esc.LatePenaltyBps, late)
	release, err := e.lockTransfers(esc)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()
	if err := e.routePayout(esc, payout); err != nil {
		return err
	}
	esc.State = StateReleased
	esc.ReleasedTs = now
	if err := release(); err != nil {
		return err
	}
	e.emit(NewPaymentReleasedEvent(esc, payout))
	return nil
}

// ReleaseRetention pays out the withheld retention once the warranty window
// has ended. The fee split applies but no late penalty; the lifecycle state
// is left unchanged. Succeeds exactly once.
func (e *Engine) ReleaseRetention(id [32]byte) (err error) {
	defer e.observe("release_retention", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if esc.RetentionReleased {
		return ErrRetentionReleased
	}
	if e.now() < esc.WarrantyEndTs {
		return ErrWarrantyNotEnded
	}
	retention := RetentionDue(esc.Amount, esc.RetentionBps)
	balance, err := e.vaultBalance(esc)
	if err != nil {
		return err
	}
	if balance.Cmp(retention) < 0 {
		return ErrVaultBalanceLow
	}
	payout := ComputePayout(retention, esc.FeeBps, esc.InsuranceBps, 0, false)
	release, err := e.lockTransfers(esc)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()
	if err := e.routePayout(esc, payout); err != nil {
		return err
	}
	esc.RetentionReleased = true
	if err := release(); err != nil {
		return err
	}
	e.emit(NewRetentionReleasedEvent(esc, payout))
	return nil
}
