package market

import (
	"errors"
	"fmt"

	"cescrow/core/events"
	"cescrow/core/types"
	"cescrow/native/escrow"
)

var (
	ErrNotInitialized     = errors.New("market: config not initialized")
	ErrAlreadyInitialized = errors.New("market: config already initialized")
	ErrUnauthorized       = errors.New("market: unauthorized caller")
	ErrBadQuorum          = errors.New("market: quorum default must be at least 1")
	ErrBadBps             = errors.New("market: basis points out of range")
	ErrBadAuthorityAccept = errors.New("market: caller is not the pending authority")
)

// Config is the process-wide market configuration. It is mutated only by its
// designated authority; escrows snapshot the basis points they need at
// creation, so later changes never apply retroactively.
type Config struct {
	Authority         [20]byte  `json:"authority"`
	PendingAuthority  *[20]byte `json:"pendingAuthority,omitempty"`
	Treasury          [20]byte  `json:"treasury"`
	InsuranceTreasury [20]byte  `json:"insuranceTreasury"`
	Arbiter           [20]byte  `json:"arbiter"`
	FeeBps            uint32    `json:"feeBps"`
	InsuranceBps      uint32    `json:"insuranceBps"`
	RetentionBps      uint32    `json:"retentionBps"`
	WarrantyDays      int64     `json:"warrantyDays"`
	QuorumDefault     uint8     `json:"quorumDefault"`
}

// Clone returns a copy safe for modification.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.PendingAuthority != nil {
		pending := *c.PendingAuthority
		clone.PendingAuthority = &pending
	}
	return &clone
}

// Validate checks the bps bounds and quorum floor. Fee plus insurance may
// never exceed the full payout base.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNotInitialized
	}
	if c.QuorumDefault < escrow.QuorumMin {
		return ErrBadQuorum
	}
	if c.FeeBps > escrow.BpsDenominator || c.InsuranceBps > escrow.BpsDenominator {
		return ErrBadBps
	}
	// Each addend is bounded above, so the sum cannot wrap.
	if c.FeeBps+c.InsuranceBps > escrow.BpsDenominator {
		return ErrBadBps
	}
	if c.RetentionBps > escrow.BpsDenominator {
		return ErrBadBps
	}
	if c.WarrantyDays < 0 {
		return fmt.Errorf("market: warranty days must not be negative")
	}
	return nil
}

// StoreState captures the state manager capabilities the market store needs.
type StoreState interface {
	MarketConfigPut(*Config) error
	MarketConfigGet() (*Config, bool, error)
}

// Store provides the market configuration lifecycle: initialization, fee
// split updates and the two-phase authority transfer. It also implements
// escrow.MarketView for the settlement engine.
type Store struct {
	state   StoreState
	emitter events.Emitter
}

// NewStore constructs a market store bound to the supplied state backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (s *Store) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *Store) emit(evt *types.Event) {
	if s == nil || s.emitter == nil || evt == nil {
		return
	}
	s.emitter.Emit(marketEvent{evt: evt})
}

func (s *Store) load() (*Config, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("market: state not configured")
	}
	cfg, ok, err := s.state.MarketConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// InitConfig persists the initial market configuration. It can only run once.
func (s *Store) InitConfig(cfg Config) error {
	if s == nil || s.state == nil {
		return fmt.Errorf("market: state not configured")
	}
	if _, ok, err := s.state.MarketConfigGet(); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInitialized
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.PendingAuthority = nil
	if err := s.state.MarketConfigPut(&cfg); err != nil {
		return err
	}
	s.emit(NewConfigUpdatedEvent(&cfg))
	return nil
}

// UpdateFeeSplits changes the platform fee and insurance basis points applied
// to escrows created from now on. Authority only.
func (s *Store) UpdateFeeSplits(caller [20]byte, feeBps, insuranceBps uint32) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	if feeBps > escrow.BpsDenominator || insuranceBps > escrow.BpsDenominator {
		return ErrBadBps
	}
	if feeBps+insuranceBps > escrow.BpsDenominator {
		return ErrBadBps
	}
	cfg.FeeBps = feeBps
	cfg.InsuranceBps = insuranceBps
	if err := s.state.MarketConfigPut(cfg); err != nil {
		return err
	}
	s.emit(NewConfigUpdatedEvent(cfg))
	return nil
}

// ProposeAuthority stages a new authority. The transfer only completes when
// the named party accepts it.
func (s *Store) ProposeAuthority(caller, newAuthority [20]byte) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	pending := newAuthority
	cfg.PendingAuthority = &pending
	if err := s.state.MarketConfigPut(cfg); err != nil {
		return err
	}
	s.emit(NewAuthorityProposedEvent(newAuthority))
	return nil
}

// AcceptAuthority completes a staged transfer. The caller must be the pending
// authority named in the proposal.
func (s *Store) AcceptAuthority(caller [20]byte) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	if cfg.PendingAuthority == nil || caller != *cfg.PendingAuthority {
		return ErrBadAuthorityAccept
	}
	cfg.Authority = *cfg.PendingAuthority
	cfg.PendingAuthority = nil
	if err := s.state.MarketConfigPut(cfg); err != nil {
		return err
	}
	s.emit(NewAuthorityTransferredEvent(cfg.Authority))
	return nil
}

// Config returns a copy of the current configuration.
func (s *Store) Config() (*Config, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Terms implements escrow.MarketView.
func (s *Store) Terms() (escrow.Terms, error) {
	cfg, err := s.load()
	if err != nil {
		return escrow.Terms{}, err
	}
	return escrow.Terms{
		FeeBps:        cfg.FeeBps,
		InsuranceBps:  cfg.InsuranceBps,
		RetentionBps:  cfg.RetentionBps,
		WarrantyDays:  cfg.WarrantyDays,
		QuorumDefault: cfg.QuorumDefault,
	}, nil
}

// Treasury implements escrow.MarketView.
func (s *Store) Treasury() ([20]byte, error) {
	cfg, err := s.load()
	if err != nil {
		return [20]byte{}, err
	}
	return cfg.Treasury, nil
}

// InsuranceTreasury implements escrow.MarketView.
func (s *Store) InsuranceTreasury() ([20]byte, error) {
	cfg, err := s.load()
	if err != nil {
		return [20]byte{}, err
	}
	return cfg.InsuranceTreasury, nil
}

// Arbiter implements escrow.MarketView.
func (s *Store) Arbiter() ([20]byte, error) {
	cfg, err := s.load()
	if err != nil {
		return [20]byte{}, err
	}
	return cfg.Arbiter, nil
}
