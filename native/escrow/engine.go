package escrow

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"cescrow/core/events"
	"cescrow/core/types"
	nativecommon "cescrow/native/common"
	"cescrow/observability/metrics"
)

const moduleName = "escrow"

var (
	errNilState   = errors.New("escrow engine: state not configured")
	errNilGateway = errors.New("escrow engine: transfer gateway not configured")
	errNilMarket  = errors.New("escrow engine: market view not configured")
)

type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(id [32]byte) (*Escrow, bool)
	ProjectIndexPut(projectID uint64, id [32]byte) error
	ProjectIndexGet(projectID uint64) ([32]byte, bool)
	EscrowCredit(id [32]byte, asset string, amt *big.Int) error
	EscrowDebit(id [32]byte, asset string, amt *big.Int) error
	EscrowBalance(id [32]byte, asset string) (*big.Int, error)
	EscrowVaultAddress(id [32]byte) ([20]byte, error)
	AttestationPut(*Attestation) error
}

// TransferGateway moves funds between balances. The engine never implements
// balance storage itself; every deposit, payout and refund goes through this
// interface. A failing move aborts the whole operation.
type TransferGateway interface {
	Move(from, to [20]byte, asset string, amount *big.Int) error
}

// Terms is the market-level economic configuration snapshotted onto each
// escrow at creation. Later market changes never affect existing escrows.
type Terms struct {
	FeeBps        uint32
	InsuranceBps  uint32
	RetentionBps  uint32
	WarrantyDays  int64
	QuorumDefault uint8
}

// MarketView exposes the slice of the market configuration the engine needs:
// the creation-time terms snapshot and the payout routing identities.
type MarketView interface {
	Terms() (Terms, error)
	Treasury() ([20]byte, error)
	InsuranceTreasury() ([20]byte, error)
	Arbiter() ([20]byte, error)
}

// ReceiptIssuer mints and finalizes the optional per-escrow receipt token.
// Purely additive; the engine only records the reference.
type ReceiptIssuer interface {
	Mint(escrowID [32]byte, owner [20]byte) error
	Finalize(escrowID [32]byte, burn bool) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine wires the escrow lifecycle state machine with external state, the
// transfer gateway and event emission. Every operation validates its
// preconditions before any mutation or transfer, relies on the execution
// host's atomic-commit guarantee for rollback, and emits one event on
// success.
type Engine struct {
	state     engineState
	gateway   TransferGateway
	market    MarketView
	receipts  ReceiptIssuer
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	nowFn     func() int64
	telemetry *metrics.EscrowMetrics
}

// NewEngine creates an escrow engine with a no-op emitter. Callers configure
// the collaborators via the setters before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		telemetry: metrics.Escrow(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGateway configures the transfer gateway that moves funds.
func (e *Engine) SetGateway(gateway TransferGateway) { e.gateway = gateway }

// SetMarket configures the market configuration view.
func (e *Engine) SetMarket(view MarketView) { e.market = view }

// SetReceipts configures the optional receipt-token issuer.
func (e *Engine) SetReceipts(issuer ReceiptIssuer) { e.receipts = issuer }

// SetPauses configures the module pause view consulted by every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

// observe records the duration of one public operation and, when the pointed-to
// error is non-nil at return time, counts the failure. Deferred at the top of
// every mutating operation.
func (e *Engine) observe(operation string, start time.Time, errp *error) {
	if e == nil || e.telemetry == nil {
		return
	}
	e.telemetry.ObserveOperation(operation, time.Since(start))
	if errp != nil && *errp != nil {
		e.telemetry.OperationError(operation)
	}
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) guard() error {
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) loadEscrow(id [32]byte) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return esc, nil
}

// LookupByProject resolves the escrow registered for a project id.
func (e *Engine) LookupByProject(projectID uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	id, ok := e.state.ProjectIndexGet(projectID)
	if !ok {
		return nil, ErrNotFound
	}
	return e.loadEscrow(id)
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.EscrowPut(esc)
}

func (e *Engine) transfer(from, to [20]byte, asset string, amount *big.Int) error {
	if e == nil || e.gateway == nil {
		return errNilGateway
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrTransferFailed)
	}
	if err := e.gateway.Move(from, to, asset, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) vaultBalance(esc *Escrow) (*big.Int, error) {
	balance, err := e.state.EscrowBalance(esc.ID, esc.Asset)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	return balance, nil
}

// EscrowID derives the deterministic identifier for a project escrow.
func EscrowID(projectID uint64, buyer, seller [20]byte, asset string) [32]byte {
	var pid [8]byte
	binary.BigEndian.PutUint64(pid[:], projectID)
	hash := ethcrypto.Keccak256Hash([]byte("escrow"), pid[:], buyer[:], seller[:], []byte(asset))
	return hash
}

// CreateParams carries the caller-supplied inputs for escrow creation.
type CreateParams struct {
	ProjectID      uint64
	Buyer          [20]byte
	Seller         [20]byte
	Asset          string
	Amount         *big.Int
	Nonce          uint64
	Oracles        [][20]byte
	Quorum         uint8
	LatePenaltyBps uint32
	PriceSnapshot  uint64
	ReceiptEnabled bool
}

// Create initialises a new escrow, pulls the deposit from the buyer into the
// derived vault and writes the project index entry. The caller must be the
// buyer; identity authentication happens at the host boundary. A zero quorum
// falls back to the market default.
func (e *Engine) Create(caller [20]byte, p CreateParams) (_ *Escrow, err error) {
	defer e.observe("create", time.Now(), &err)
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.market == nil {
		return nil, errNilMarket
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if caller != p.Buyer {
		return nil, ErrUnauthorized
	}
	asset, err := NormalizeAsset(p.Asset)
	if err != nil {
		return nil, err
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if len(p.Oracles) > MaxOracles {
		return nil, ErrTooManyOracles
	}
	if p.Nonce == 0 {
		return nil, ErrBadNonce
	}
	terms, err := e.market.Terms()
	if err != nil {
		return nil, err
	}
	quorum := p.Quorum
	if quorum == 0 {
		quorum = terms.QuorumDefault
	}
	if quorum < QuorumMin {
		return nil, ErrBadQuorum
	}
	if p.LatePenaltyBps > BpsDenominator {
		return nil, ErrBadBps
	}
	id := EscrowID(p.ProjectID, p.Buyer, p.Seller, asset)
	if _, ok := e.state.EscrowGet(id); ok {
		return nil, fmt.Errorf("escrow: identifier already exists")
	}
	if _, ok := e.state.ProjectIndexGet(p.ProjectID); ok {
		return nil, fmt.Errorf("escrow: project %d already indexed", p.ProjectID)
	}
	now := e.now()
	esc := &Escrow{
		ID:             id,
		ProjectID:      p.ProjectID,
		Buyer:          p.Buyer,
		Seller:         p.Seller,
		Asset:          asset,
		Amount:         new(big.Int).Set(p.Amount),
		FeeBps:         terms.FeeBps,
		InsuranceBps:   terms.InsuranceBps,
		RetentionBps:   terms.RetentionBps,
		LatePenaltyBps: p.LatePenaltyBps,
		PriceSnapshot:  p.PriceSnapshot,
		Oracles:        append([][20]byte(nil), p.Oracles...),
		Quorum:         quorum,
		State:          StateOpen,
		CreatedTs:      now,
		WarrantyEndTs:  now + terms.WarrantyDays*86_400,
		ReceiptEnabled: p.ReceiptEnabled,
		LastNonce:      p.Nonce,
	}
	vault, err := e.state.EscrowVaultAddress(id)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(esc.Buyer, vault, asset, esc.Amount); err != nil {
		return nil, err
	}
	if err := e.state.EscrowCredit(id, asset, esc.Amount); err != nil {
		return nil, err
	}
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	if err := e.state.ProjectIndexPut(p.ProjectID, id); err != nil {
		return nil, err
	}
	if esc.ReceiptEnabled && e.receipts != nil {
		if err := e.receipts.Mint(id, esc.Buyer); err != nil {
			return nil, err
		}
		esc.ReceiptMinted = true
		if err := e.storeEscrow(esc); err != nil {
			return nil, err
		}
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// SetDeadlines records the verify-by and deliver-by deadlines. Buyer or
// seller only, and only while funds can still be claimed against them.
func (e *Engine) SetDeadlines(id [32]byte, caller [20]byte, verifyBy, deliverBy int64) (err error) {
	defer e.observe("set_deadlines", time.Now(), &err)
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
	if esc.State != StateOpen && esc.State != StatePartiallyReleased {
		return ErrInvalidState
	}
	esc.VerifyByTs = verifyBy
	esc.DeliverByTs = deliverBy
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewDeadlinesSetEvent(esc))
	return nil
}

// MarkInProgress flags the project as underway. Informational only; the
// lifecycle state does not change.
func (e *Engine) MarkInProgress(id [32]byte, caller [20]byte) (err error) {
	defer e.observe("mark_in_progress", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if !esc.isSeller(caller) {
		return ErrUnauthorized
	}
	esc.InProgress = true
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewProgressMarkedEvent(esc, e.now()))
	return nil
}

// ExpireAndRefund refunds the full vault balance to the buyer once the
// verify-by deadline has lapsed without verification. Anyone may invoke it.
func (e *Engine) ExpireAndRefund(id [32]byte) (err error) {
	defer e.observe("expire_refund", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if esc.State != StateOpen {
		return ErrInvalidState
	}
	now := e.now()
	if esc.VerifyByTs <= 0 || now <= esc.VerifyByTs {
		return ErrNotExpired
	}
	balance, err := e.vaultBalance(esc)
	if err != nil {
		return err
	}
	if balance.Cmp(esc.Amount) < 0 {
		return ErrVaultBalanceLow
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
	esc.ReleasedTs = now
	if err := release(); err != nil {
		return err
	}
	e.emit(NewExpiredRefundEvent(esc, balance))
	return nil
}

// VerifyDelivery recomputes the oracle quorum for the project's escrow and
// records the verification. An already partially released escrow keeps its
// state but records the verification timestamp.
func (e *Engine) VerifyDelivery(projectID uint64, voters [][20]byte) (err error) {
	defer e.observe("verify_delivery", time.Now(), &err)
	esc, err := e.LookupByProject(projectID)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if esc.ProjectID != projectID {
		return ErrProjectMismatch
	}
	if esc.State != StateOpen && esc.State != StatePartiallyReleased {
		return ErrInvalidState
	}
	votes := CountQuorumVotes(esc, voters)
	if votes < esc.Quorum {
		return ErrQuorumNotMet
	}
	if esc.State == StateOpen {
		esc.State = StateVerified
	}
	esc.VerifiedTs = e.now()
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewDeliveryVerifiedEvent(esc, votes))
	return nil
}

// UpdateOracles replaces the oracle set and quorum threshold. Buyer or seller
// only; lifecycle-state checks are deliberately bypassed. The nonce must be
// strictly increasing.
func (e *Engine) UpdateOracles(id [32]byte, caller [20]byte, nonce uint64, oracles [][20]byte, quorum uint8) (err error) {
	defer e.observe("update_oracles", time.Now(), &err)
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
	if nonce <= esc.LastNonce {
		return ErrBadNonce
	}
	if len(oracles) > MaxOracles {
		return ErrTooManyOracles
	}
	if quorum < QuorumMin {
		return ErrBadQuorum
	}
	esc.Oracles = append([][20]byte(nil), oracles...)
	esc.Quorum = quorum
	esc.LastNonce = nonce
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewOraclesUpdatedEvent(esc))
	return nil
}

// UpdateSellerDestination changes the seller payout destination. Seller only;
// any lifecycle state. The nonce must be strictly increasing.
func (e *Engine) UpdateSellerDestination(id [32]byte, caller [20]byte, nonce uint64, newSeller [20]byte) (err error) {
	defer e.observe("update_seller", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if !esc.isSeller(caller) {
		return ErrUnauthorized
	}
	if nonce <= esc.LastNonce {
		return ErrBadNonce
	}
	esc.Seller = newSeller
	esc.LastNonce = nonce
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewSellerUpdatedEvent(esc))
	return nil
}

// AttachEvidence caches an evidence hash and a bounded URI prefix on the
// escrow record. Buyer or seller only.
func (e *Engine) AttachEvidence(id [32]byte, caller [20]byte, hash [32]byte, uri []byte) (err error) {
	defer e.observe("attach_evidence", time.Now(), &err)
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
	if len(uri) > EvidenceURIPrefixLen {
		uri = uri[:EvidenceURIPrefixLen]
	}
	esc.LastEvidenceHash = hash
	esc.LastEvidenceURI = append([]byte(nil), uri...)
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewEvidenceAttachedEvent(esc))
	return nil
}

// AddAttestation persists an append-only attestation record and bumps the
// escrow's counter. Any authenticated attester may file one.
func (e *Engine) AddAttestation(id [32]byte, attester [20]byte, hash [32]byte, uri []byte) (_ *Attestation, err error) {
	defer e.observe("add_attestation", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if len(uri) > EvidenceURIPrefixLen {
		uri = uri[:EvidenceURIPrefixLen]
	}
	att := &Attestation{
		EscrowID: esc.ID,
		Attester: attester,
		Hash:     hash,
		URI:      append([]byte(nil), uri...),
		Ts:       e.now(),
	}
	if err := e.state.AttestationPut(att); err != nil {
		return nil, err
	}
	esc.AttestationsCount++
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	e.emit(NewAttestedEvent(esc, att))
	return att.Clone(), nil
}

// FinalizeReceipt burns or thaws the receipt token once the escrow reached
// its released terminal state.
func (e *Engine) FinalizeReceipt(id [32]byte, burn bool) (err error) {
	defer e.observe("finalize_receipt", time.Now(), &err)
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.guard(); err != nil {
		return err
	}
	if !esc.ReceiptEnabled || !esc.ReceiptMinted {
		return ErrReceiptDisabled
	}
	if esc.State != StateReleased {
		return ErrInvalidState
	}
	if e.receipts == nil {
		return ErrReceiptDisabled
	}
	if err := e.receipts.Finalize(esc.ID, burn); err != nil {
		return err
	}
	e.emit(NewReceiptFinalizedEvent(esc, burn))
	return nil
}
