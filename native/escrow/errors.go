package escrow

import "errors"

// Validation errors: the caller supplied inputs that can never be accepted.
var (
	ErrZeroAmount         = errors.New("escrow: amount must be greater than zero")
	ErrBadQuorum          = errors.New("escrow: quorum must be at least 1")
	ErrTooManyOracles     = errors.New("escrow: too many oracles")
	ErrTooManyMilestones  = errors.New("escrow: too many milestones")
	ErrMilestoneOverTotal = errors.New("escrow: milestones exceed total escrow amount")
	ErrBadMilestoneID     = errors.New("escrow: bad milestone id")
	ErrBadNonce           = errors.New("escrow: nonce must increase")
	ErrBadAsset           = errors.New("escrow: invalid funding asset")
	ErrBadBps             = errors.New("escrow: basis points out of range")
)

// State errors: the operation is not valid for the escrow's current shape.
var (
	ErrInvalidState           = errors.New("escrow: wrong state for this action")
	ErrAlreadyVerified        = errors.New("escrow: already verified")
	ErrMilestoneNotReleasable = errors.New("escrow: milestone not releasable")
	ErrRetentionReleased      = errors.New("escrow: retention already released")
	ErrDisputeAlreadyOpen     = errors.New("escrow: dispute already open")
	ErrNoOpenDispute          = errors.New("escrow: no open dispute")
	ErrCancelAlreadyRequested = errors.New("escrow: cancel already requested")
	ErrCancelNotRequested     = errors.New("escrow: cancel not requested")
	ErrReceiptDisabled        = errors.New("escrow: receipt token not enabled")
)

// Timing errors: the condition will clear once enough time passes.
var (
	ErrNotExpired       = errors.New("escrow: verify deadline not reached")
	ErrWarrantyNotEnded = errors.New("escrow: warranty not ended")
)

// Authorization, balance, concurrency and gateway failures.
var (
	ErrUnauthorized     = errors.New("escrow: unauthorized caller")
	ErrQuorumNotMet     = errors.New("escrow: oracle quorum not met")
	ErrProjectMismatch  = errors.New("escrow: project id does not match escrow")
	ErrVaultBalanceLow  = errors.New("escrow: vault balance too low")
	ErrNothingToRelease = errors.New("escrow: nothing to release")
	ErrReentrancy       = errors.New("escrow: reentrancy detected")
	ErrTransferFailed   = errors.New("escrow: transfer failed")
	ErrNotFound         = errors.New("escrow: escrow not found")
)
