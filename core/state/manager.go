package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"cescrow/native/escrow"
	"cescrow/native/market"
	"cescrow/native/receipt"
	"cescrow/storage"
)

var (
	escrowPrefix       = []byte("escrow/record/")
	projectPrefix      = []byte("escrow/project/")
	vaultBalancePrefix = []byte("escrow/vault-balance/")
	vaultAddrPrefix    = []byte("escrow-vault")
	attestPrefix       = []byte("escrow/attest/")
	attestSeqPrefix    = []byte("escrow/attest-seq/")
	receiptPrefix      = []byte("escrow/receipt/")
	marketConfigKey    = []byte("market/config")
	accountPrefix      = []byte("account/balance/")
)

// ErrInsufficientBalance is returned by Move when the source account cannot
// cover the transfer.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

// Manager provides typed access to module state over a raw key/value store.
// It backs the escrow engine, the market store and the receipt ledger, and
// acts as the value-transfer gateway between accounts.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func hashKey(parts ...[]byte) []byte {
	return ethcrypto.Keccak256(parts...)
}

func uint64Key(prefix []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return hashKey(prefix, buf[:])
}

func (m *Manager) putJSON(key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, raw)
}

func (m *Manager) getJSON(key []byte, v interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

// EscrowPut persists a sanitized copy of the escrow record.
func (m *Manager) EscrowPut(e *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(e)
	if err != nil {
		return err
	}
	return m.putJSON(hashKey(escrowPrefix, sanitized.ID[:]), sanitized)
}

// EscrowGet loads an escrow record by identifier.
func (m *Manager) EscrowGet(id [32]byte) (*escrow.Escrow, bool) {
	var rec escrow.Escrow
	ok, err := m.getJSON(hashKey(escrowPrefix, id[:]), &rec)
	if err != nil || !ok {
		return nil, false
	}
	return &rec, true
}

// ProjectIndexPut records the escrow bound to a project identifier.
func (m *Manager) ProjectIndexPut(projectID uint64, id [32]byte) error {
	return m.db.Put(uint64Key(projectPrefix, projectID), id[:])
}

// ProjectIndexGet resolves the escrow identifier registered for a project.
func (m *Manager) ProjectIndexGet(projectID uint64) ([32]byte, bool) {
	raw, err := m.db.Get(uint64Key(projectPrefix, projectID))
	if err != nil || len(raw) != 32 {
		return [32]byte{}, false
	}
	var id [32]byte
	copy(id[:], raw)
	return id, true
}

func vaultBalanceKey(id [32]byte, asset string) []byte {
	return hashKey(vaultBalancePrefix, id[:], []byte(asset))
}

// EscrowBalance reports the funds tracked for an escrow's vault in the given
// asset. Missing entries read as zero.
func (m *Manager) EscrowBalance(id [32]byte, asset string) (*big.Int, error) {
	raw, err := m.db.Get(vaultBalanceKey(id, asset))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// EscrowCredit adds to the tracked vault balance for an escrow.
func (m *Manager) EscrowCredit(id [32]byte, asset string, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("state: invalid credit amount")
	}
	balance, err := m.EscrowBalance(id, asset)
	if err != nil {
		return err
	}
	balance.Add(balance, amt)
	return m.db.Put(vaultBalanceKey(id, asset), balance.Bytes())
}

// EscrowDebit removes from the tracked vault balance for an escrow.
func (m *Manager) EscrowDebit(id [32]byte, asset string, amt *big.Int) error {
	if amt == nil || amt.Sign() < 0 {
		return fmt.Errorf("state: invalid debit amount")
	}
	balance, err := m.EscrowBalance(id, asset)
	if err != nil {
		return err
	}
	if balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, amt)
	return m.db.Put(vaultBalanceKey(id, asset), balance.Bytes())
}

// EscrowVaultAddress derives the deterministic vault account for an escrow.
func (m *Manager) EscrowVaultAddress(id [32]byte) ([20]byte, error) {
	digest := hashKey(vaultAddrPrefix, id[:])
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr, nil
}

// AttestationPut appends an attestation record under a per-escrow sequence.
func (m *Manager) AttestationPut(att *escrow.Attestation) error {
	if att == nil {
		return fmt.Errorf("state: nil attestation")
	}
	seqKey := hashKey(attestSeqPrefix, att.EscrowID[:])
	var seq uint64
	if raw, err := m.db.Get(seqKey); err == nil {
		if len(raw) != 8 {
			return fmt.Errorf("state: corrupt attestation sequence")
		}
		seq = binary.BigEndian.Uint64(raw)
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		return err
	}
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	if err := m.putJSON(hashKey(attestPrefix, att.EscrowID[:], seqBuf[:]), att.Clone()); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(seqBuf[:], seq+1)
	return m.db.Put(seqKey, seqBuf[:])
}

// AttestationList returns the attestations recorded for an escrow in insert
// order.
func (m *Manager) AttestationList(id [32]byte) ([]*escrow.Attestation, error) {
	seqKey := hashKey(attestSeqPrefix, id[:])
	raw, err := m.db.Get(seqKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(raw) != 8 {
		return nil, fmt.Errorf("state: corrupt attestation sequence")
	}
	count := binary.BigEndian.Uint64(raw)
	out := make([]*escrow.Attestation, 0, count)
	for i := uint64(0); i < count; i++ {
		var seqBuf [8]byte
		binary.BigEndian.PutUint64(seqBuf[:], i)
		var att escrow.Attestation
		ok, err := m.getJSON(hashKey(attestPrefix, id[:], seqBuf[:]), &att)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: missing attestation %d", i)
		}
		out = append(out, &att)
	}
	return out, nil
}

// MarketConfigPut persists the market configuration.
func (m *Manager) MarketConfigPut(cfg *market.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil market config")
	}
	return m.putJSON(hashKey(marketConfigKey), cfg.Clone())
}

// MarketConfigGet loads the market configuration when present.
func (m *Manager) MarketConfigGet() (*market.Config, bool, error) {
	var cfg market.Config
	ok, err := m.getJSON(hashKey(marketConfigKey), &cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return &cfg, true, nil
}

// ReceiptPut persists a receipt ledger entry.
func (m *Manager) ReceiptPut(rec *receipt.Receipt) error {
	if rec == nil {
		return fmt.Errorf("state: nil receipt")
	}
	return m.putJSON(hashKey(receiptPrefix, rec.EscrowID[:]), rec.Clone())
}

// ReceiptGet loads the receipt entry for an escrow when present.
func (m *Manager) ReceiptGet(escrowID [32]byte) (*receipt.Receipt, bool, error) {
	var rec receipt.Receipt
	ok, err := m.getJSON(hashKey(receiptPrefix, escrowID[:]), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rec, true, nil
}

func accountKey(addr [20]byte, asset string) []byte {
	return hashKey(accountPrefix, addr[:], []byte(asset))
}

// Balance reports an account's holding in the given asset. Missing entries
// read as zero.
func (m *Manager) Balance(addr [20]byte, asset string) (*big.Int, error) {
	raw, err := m.db.Get(accountKey(addr, asset))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// SetBalance overwrites an account's holding in the given asset.
func (m *Manager) SetBalance(addr [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid balance")
	}
	return m.db.Put(accountKey(addr, asset), amount.Bytes())
}

// Move debits one account and credits another. A zero amount is a no-op.
func (m *Manager) Move(from, to [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	src, err := m.Balance(from, asset)
	if err != nil {
		return err
	}
	if src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	dst, err := m.Balance(to, asset)
	if err != nil {
		return err
	}
	src.Sub(src, amount)
	dst.Add(dst, amount)
	if err := m.SetBalance(from, asset, src); err != nil {
		return err
	}
	return m.SetBalance(to, asset, dst)
}
