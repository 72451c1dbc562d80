package escrow

// lockTransfers engages the escrow's reentrancy guard before any outbound
// transfer is issued. The flag is persisted immediately so external logic
// invoked by the transfer gateway cannot re-enter a transfer-capable
// operation on the same escrow while one is mid-flight.
//
// The returned release function clears the flag and persists the record with
// whatever mutations the operation applied; callers defer it so the guard is
// released on every exit path. Operations that move no funds (quorum checks,
// milestone inserts, evidence writes) stay unguarded: the gateway is the only
// interface that can call out.
func (e *Engine) lockTransfers(esc *Escrow) (func() error, error) {
	if esc.InTransfer {
		return nil, ErrReentrancy
	}
	esc.InTransfer = true
	if err := e.storeEscrow(esc); err != nil {
		esc.InTransfer = false
		return nil, err
	}
	done := false
	release := func() error {
		if done {
			return nil
		}
		done = true
		esc.InTransfer = false
		return e.storeEscrow(esc)
	}
	return release, nil
}
