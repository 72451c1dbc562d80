package market

import (
	"encoding/hex"
	"strconv"

	"cescrow/core/types"
)

const (
	EventTypeConfigUpdated        = "market.config_updated"
	EventTypeAuthorityProposed    = "market.authority_proposed"
	EventTypeAuthorityTransferred = "market.authority_transferred"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// NewConfigUpdatedEvent reports the economic knobs after a config write.
func NewConfigUpdatedEvent(cfg *Config) *types.Event {
	attrs := make(map[string]string)
	if cfg != nil {
		attrs["feeBps"] = strconv.FormatUint(uint64(cfg.FeeBps), 10)
		attrs["insuranceBps"] = strconv.FormatUint(uint64(cfg.InsuranceBps), 10)
		attrs["retentionBps"] = strconv.FormatUint(uint64(cfg.RetentionBps), 10)
		attrs["warrantyDays"] = strconv.FormatInt(cfg.WarrantyDays, 10)
		attrs["quorumDefault"] = strconv.FormatUint(uint64(cfg.QuorumDefault), 10)
	}
	return &types.Event{Type: EventTypeConfigUpdated, Attributes: attrs}
}

// NewAuthorityProposedEvent reports a staged authority transfer.
func NewAuthorityProposedEvent(proposed [20]byte) *types.Event {
	return &types.Event{Type: EventTypeAuthorityProposed, Attributes: map[string]string{
		"proposed": hex.EncodeToString(proposed[:]),
	}}
}

// NewAuthorityTransferredEvent reports a completed authority transfer.
func NewAuthorityTransferredEvent(authority [20]byte) *types.Event {
	return &types.Event{Type: EventTypeAuthorityTransferred, Attributes: map[string]string{
		"newAuthority": hex.EncodeToString(authority[:]),
	}}
}
