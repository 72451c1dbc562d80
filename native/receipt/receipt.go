package receipt

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyMinted = errors.New("receipt: already minted")
	ErrNotMinted     = errors.New("receipt: not minted")
	ErrBurned        = errors.New("receipt: already burned")
)

// Receipt is the ledger entry backing an escrow's optional receipt token. The
// token is minted frozen to the buyer at escrow creation and either burned or
// thawed once the escrow settles. Never consulted by payout logic.
type Receipt struct {
	EscrowID [32]byte `json:"escrowId"`
	Owner    [20]byte `json:"owner"`
	MintedAt int64    `json:"mintedAt"`
	Frozen   bool     `json:"frozen"`
	Burned   bool     `json:"burned"`
}

// Clone returns a copy safe for modification.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// StoreState captures the state manager capabilities the ledger needs.
type StoreState interface {
	ReceiptPut(*Receipt) error
	ReceiptGet(escrowID [32]byte) (*Receipt, bool, error)
}

// Ledger issues and finalizes receipt entries. It satisfies the settlement
// engine's ReceiptIssuer interface.
type Ledger struct {
	state StoreState
	nowFn func() int64
}

// NewLedger constructs a receipt ledger bound to the supplied state backend.
func NewLedger(state StoreState) *Ledger {
	return &Ledger{
		state: state,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source, primarily for tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func (l *Ledger) withState() (StoreState, error) {
	if l == nil || l.state == nil {
		return nil, fmt.Errorf("receipt: state not configured")
	}
	return l.state, nil
}

// Mint writes a frozen receipt entry for the escrow's buyer.
func (l *Ledger) Mint(escrowID [32]byte, owner [20]byte) error {
	state, err := l.withState()
	if err != nil {
		return err
	}
	if _, ok, err := state.ReceiptGet(escrowID); err != nil {
		return err
	} else if ok {
		return ErrAlreadyMinted
	}
	return state.ReceiptPut(&Receipt{
		EscrowID: escrowID,
		Owner:    owner,
		MintedAt: l.nowFn(),
		Frozen:   true,
	})
}

// Finalize burns the receipt, or thaws it so the owner keeps a transferable
// record of the settled escrow.
func (l *Ledger) Finalize(escrowID [32]byte, burn bool) error {
	state, err := l.withState()
	if err != nil {
		return err
	}
	rec, ok, err := state.ReceiptGet(escrowID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMinted
	}
	if rec.Burned {
		return ErrBurned
	}
	rec.Frozen = false
	rec.Burned = burn
	return state.ReceiptPut(rec)
}

// Lookup returns the receipt entry for an escrow when present.
func (l *Ledger) Lookup(escrowID [32]byte) (*Receipt, bool, error) {
	state, err := l.withState()
	if err != nil {
		return nil, false, err
	}
	rec, ok, err := state.ReceiptGet(escrowID)
	if err != nil || !ok {
		return nil, ok, err
	}
	return rec.Clone(), true, nil
}
