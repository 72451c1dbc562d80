package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"cescrow/core/types"
)

const (
	EventTypeCreated           = "escrow.created"
	EventTypeDeadlinesSet      = "escrow.deadlines_set"
	EventTypeProgressMarked    = "escrow.progress_marked"
	EventTypeExpiredRefunded   = "escrow.expired_refunded"
	EventTypeDeliveryVerified  = "escrow.delivery_verified"
	EventTypeMilestoneAdded    = "escrow.milestone_added"
	EventTypeMilestoneVerified = "escrow.milestone_verified"
	EventTypeMilestoneReleased = "escrow.milestone_released"
	EventTypePaymentReleased   = "escrow.payment_released"
	EventTypeRetentionReleased = "escrow.retention_released"
	EventTypeCancelRequested   = "escrow.cancel_requested"
	EventTypeCancelApproved    = "escrow.cancel_approved"
	EventTypeDisputeOpened     = "escrow.dispute_opened"
	EventTypeDisputeResolved   = "escrow.dispute_resolved"
	EventTypeEvidenceAttached  = "escrow.evidence_attached"
	EventTypeAttested          = "escrow.attested"
	EventTypeOraclesUpdated    = "escrow.oracles_updated"
	EventTypeSellerUpdated     = "escrow.seller_updated"
	EventTypeReceiptFinalized  = "escrow.receipt_finalized"
)

func baseAttrs(e *Escrow) map[string]string {
	attrs := make(map[string]string)
	if e == nil {
		return attrs
	}
	attrs["id"] = hex.EncodeToString(e.ID[:])
	attrs["projectId"] = strconv.FormatUint(e.ProjectID, 10)
	return attrs
}

func amountAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func payoutAttrs(attrs map[string]string, p Payout) {
	attrs["gross"] = amountAttr(p.Gross)
	attrs["fee"] = amountAttr(p.Fee)
	attrs["insurance"] = amountAttr(p.Insurance)
	attrs["penalty"] = amountAttr(p.Penalty)
	attrs["sellerReceived"] = amountAttr(p.Seller)
}

// NewCreatedEvent returns the canonical payload for a newly created escrow.
func NewCreatedEvent(e *Escrow) *types.Event {
	attrs := baseAttrs(e)
	if e != nil {
		attrs["buyer"] = hex.EncodeToString(e.Buyer[:])
		attrs["seller"] = hex.EncodeToString(e.Seller[:])
		attrs["asset"] = e.Asset
		attrs["amount"] = amountAttr(e.Amount)
		attrs["quorum"] = strconv.FormatUint(uint64(e.Quorum), 10)
		attrs["priceSnapshot1e6"] = strconv.FormatUint(e.PriceSnapshot, 10)
	}
	return &types.Event{Type: EventTypeCreated, Attributes: attrs}
}

// NewDeadlinesSetEvent reports the recorded verify-by and deliver-by deadlines.
func NewDeadlinesSetEvent(e *Escrow) *types.Event {
	attrs := baseAttrs(e)
	if e != nil {
		attrs["verifyByTs"] = strconv.FormatInt(e.VerifyByTs, 10)
		attrs["deliverByTs"] = strconv.FormatInt(e.DeliverByTs, 10)
	}
	return &types.Event{Type: EventTypeDeadlinesSet, Attributes: attrs}
}

// NewProgressMarkedEvent reports the seller flagging work as underway.
func NewProgressMarkedEvent(e *Escrow, ts int64) *types.Event {
	attrs := baseAttrs(e)
	attrs["ts"] = strconv.FormatInt(ts, 10)
	return &types.Event{Type: EventTypeProgressMarked, Attributes: attrs}
}

// NewExpiredRefundEvent reports a lapsed verify deadline refund.
func NewExpiredRefundEvent(e *Escrow, amount *big.Int) *types.Event {
	attrs := baseAttrs(e)
	attrs["amount"] = amountAttr(amount)
	return &types.Event{Type: EventTypeExpiredRefunded, Attributes: attrs}
}

// NewDeliveryVerifiedEvent reports a successful oracle quorum verification.
func NewDeliveryVerifiedEvent(e *Escrow, votes uint8) *types.Event {
	attrs := baseAttrs(e)
	attrs["quorumVotes"] = strconv.FormatUint(uint64(votes), 10)
	if e != nil {
		attrs["when"] = strconv.FormatInt(e.VerifiedTs, 10)
	}
	return &types.Event{Type: EventTypeDeliveryVerified, Attributes: attrs}
}

// NewMilestoneAddedEvent reports a new milestone ledger entry.
func NewMilestoneAddedEvent(e *Escrow, m *Milestone) *types.Event {
	attrs := baseAttrs(e)
	if m != nil {
		attrs["milestoneId"] = strconv.FormatUint(uint64(m.ID), 10)
		attrs["amount"] = amountAttr(m.Amount)
		attrs["evidenceHash"] = hex.EncodeToString(m.EvidenceHash[:])
	}
	return &types.Event{Type: EventTypeMilestoneAdded, Attributes: attrs}
}

// NewMilestoneVerifiedEvent reports an oracle-verified milestone.
func NewMilestoneVerifiedEvent(e *Escrow, m *Milestone) *types.Event {
	attrs := baseAttrs(e)
	if m != nil {
		attrs["milestoneId"] = strconv.FormatUint(uint64(m.ID), 10)
		attrs["when"] = strconv.FormatInt(m.VerifyTs, 10)
	}
	return &types.Event{Type: EventTypeMilestoneVerified, Attributes: attrs}
}

// NewMilestoneReleasedEvent reports a milestone payout with its breakdown.
func NewMilestoneReleasedEvent(e *Escrow, m *Milestone, p Payout) *types.Event {
	attrs := baseAttrs(e)
	if m != nil {
		attrs["milestoneId"] = strconv.FormatUint(uint64(m.ID), 10)
	}
	payoutAttrs(attrs, p)
	return &types.Event{Type: EventTypeMilestoneReleased, Attributes: attrs}
}

// NewPaymentReleasedEvent reports a full release with its breakdown.
func NewPaymentReleasedEvent(e *Escrow, p Payout) *types.Event {
	attrs := baseAttrs(e)
	if e != nil {
		attrs["seller"] = hex.EncodeToString(e.Seller[:])
		attrs["when"] = strconv.FormatInt(e.ReleasedTs, 10)
	}
	payoutAttrs(attrs, p)
	return &types.Event{Type: EventTypePaymentReleased, Attributes: attrs}
}

// NewRetentionReleasedEvent reports the warranty retention payout.
func NewRetentionReleasedEvent(e *Escrow, p Payout) *types.Event {
	attrs := baseAttrs(e)
	payoutAttrs(attrs, p)
	return &types.Event{Type: EventTypeRetentionReleased, Attributes: attrs}
}

// NewCancelRequestedEvent reports a pending cancellation request.
func NewCancelRequestedEvent(e *Escrow, by [20]byte) *types.Event {
	attrs := baseAttrs(e)
	attrs["by"] = hex.EncodeToString(by[:])
	return &types.Event{Type: EventTypeCancelRequested, Attributes: attrs}
}

// NewCancelApprovedEvent reports an approved cancellation and the refunded
// amount.
func NewCancelApprovedEvent(e *Escrow, amount *big.Int) *types.Event {
	attrs := baseAttrs(e)
	attrs["amount"] = amountAttr(amount)
	return &types.Event{Type: EventTypeCancelApproved, Attributes: attrs}
}

// NewDisputeOpenedEvent reports a newly opened dispute.
func NewDisputeOpenedEvent(e *Escrow, reasonCode uint16, evidenceHash [32]byte) *types.Event {
	attrs := baseAttrs(e)
	attrs["reasonCode"] = strconv.FormatUint(uint64(reasonCode), 10)
	attrs["evidenceHash"] = hex.EncodeToString(evidenceHash[:])
	return &types.Event{Type: EventTypeDisputeOpened, Attributes: attrs}
}

// NewDisputeResolvedEvent reports the arbiter outcome and receipts.
func NewDisputeResolvedEvent(e *Escrow, outcome DisputeOutcome, buyerAmt, sellerNet, fee, insurance *big.Int) *types.Event {
	attrs := baseAttrs(e)
	attrs["outcome"] = outcome.String()
	attrs["buyerReceived"] = amountAttr(buyerAmt)
	attrs["sellerReceived"] = amountAttr(sellerNet)
	attrs["fee"] = amountAttr(fee)
	attrs["insurance"] = amountAttr(insurance)
	return &types.Event{Type: EventTypeDisputeResolved, Attributes: attrs}
}

// NewEvidenceAttachedEvent reports the cached evidence hash and URI prefix.
func NewEvidenceAttachedEvent(e *Escrow) *types.Event {
	attrs := baseAttrs(e)
	if e != nil {
		attrs["hash"] = hex.EncodeToString(e.LastEvidenceHash[:])
		attrs["uriPrefix"] = string(e.LastEvidenceURI)
	}
	return &types.Event{Type: EventTypeEvidenceAttached, Attributes: attrs}
}

// NewAttestedEvent reports an appended attestation record.
func NewAttestedEvent(e *Escrow, a *Attestation) *types.Event {
	attrs := baseAttrs(e)
	if a != nil {
		attrs["attester"] = hex.EncodeToString(a.Attester[:])
		attrs["hash"] = hex.EncodeToString(a.Hash[:])
		attrs["uriPrefix"] = string(a.URI)
	}
	return &types.Event{Type: EventTypeAttested, Attributes: attrs}
}

// NewOraclesUpdatedEvent reports the replaced oracle set and quorum.
func NewOraclesUpdatedEvent(e *Escrow) *types.Event {
	attrs := baseAttrs(e)
	if e != nil {
		attrs["quorum"] = strconv.FormatUint(uint64(e.Quorum), 10)
		attrs["count"] = strconv.Itoa(len(e.Oracles))
	}
	return &types.Event{Type: EventTypeOraclesUpdated, Attributes: attrs}
}

// NewSellerUpdatedEvent reports the new seller payout destination.
func NewSellerUpdatedEvent(e *Escrow) *types.Event {
	attrs := baseAttrs(e)
	if e != nil {
		attrs["newSeller"] = hex.EncodeToString(e.Seller[:])
	}
	return &types.Event{Type: EventTypeSellerUpdated, Attributes: attrs}
}

// NewReceiptFinalizedEvent reports the receipt token being burned or thawed.
func NewReceiptFinalizedEvent(e *Escrow, burned bool) *types.Event {
	attrs := baseAttrs(e)
	attrs["burned"] = strconv.FormatBool(burned)
	return &types.Event{Type: EventTypeReceiptFinalized, Attributes: attrs}
}
