package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"cescrow/native/escrow"
	"cescrow/native/market"
	"cescrow/native/receipt"
	"cescrow/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func testEscrow() *escrow.Escrow {
	return &escrow.Escrow{
		ID:        [32]byte{0x01},
		ProjectID: 7,
		Buyer:     [20]byte{0x02},
		Seller:    [20]byte{0x03},
		Asset:     "USDC",
		Amount:    big.NewInt(1_000_000),
		Quorum:    1,
		State:     escrow.StateOpen,
	}
}

func TestEscrowRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	esc := testEscrow()
	esc.Asset = "usdc"

	require.NoError(t, manager.EscrowPut(esc))
	loaded, ok := manager.EscrowGet(esc.ID)
	require.True(t, ok)
	require.Equal(t, "USDC", loaded.Asset)
	require.Equal(t, 0, loaded.Amount.Cmp(big.NewInt(1_000_000)))
	require.Equal(t, escrow.StateOpen, loaded.State)

	_, ok = manager.EscrowGet([32]byte{0xFF})
	require.False(t, ok)
}

func TestEscrowPutRejectsInvalid(t *testing.T) {
	manager := newTestManager(t)
	esc := testEscrow()
	esc.Amount = big.NewInt(0)
	require.ErrorIs(t, manager.EscrowPut(esc), escrow.ErrZeroAmount)
}

func TestProjectIndexRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	id := [32]byte{0x42}

	require.NoError(t, manager.ProjectIndexPut(7, id))
	got, ok := manager.ProjectIndexGet(7)
	require.True(t, ok)
	require.Equal(t, id, got)

	_, ok = manager.ProjectIndexGet(8)
	require.False(t, ok)
}

func TestVaultBalanceAccounting(t *testing.T) {
	manager := newTestManager(t)
	id := [32]byte{0x01}

	balance, err := manager.EscrowBalance(id, "USDC")
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, manager.EscrowCredit(id, "USDC", big.NewInt(500)))
	require.NoError(t, manager.EscrowDebit(id, "USDC", big.NewInt(200)))
	balance, err = manager.EscrowBalance(id, "USDC")
	require.NoError(t, err)
	require.Equal(t, 0, balance.Cmp(big.NewInt(300)))

	require.ErrorIs(t, manager.EscrowDebit(id, "USDC", big.NewInt(301)), ErrInsufficientBalance)
}

func TestVaultAddressDeterministic(t *testing.T) {
	manager := newTestManager(t)
	a, err := manager.EscrowVaultAddress([32]byte{0x01})
	require.NoError(t, err)
	b, err := manager.EscrowVaultAddress([32]byte{0x01})
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := manager.EscrowVaultAddress([32]byte{0x02})
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestAttestationSequence(t *testing.T) {
	manager := newTestManager(t)
	id := [32]byte{0x01}

	first := &escrow.Attestation{EscrowID: id, Attester: [20]byte{0x0A}, Ts: 100}
	second := &escrow.Attestation{EscrowID: id, Attester: [20]byte{0x0B}, Ts: 200}
	require.NoError(t, manager.AttestationPut(first))
	require.NoError(t, manager.AttestationPut(second))

	list, err := manager.AttestationList(id)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.Attester, list[0].Attester)
	require.Equal(t, second.Attester, list[1].Attester)

	empty, err := manager.AttestationList([32]byte{0xFF})
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestMarketConfigRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	_, ok, err := manager.MarketConfigGet()
	require.NoError(t, err)
	require.False(t, ok)

	cfg := &market.Config{Authority: [20]byte{0x01}, FeeBps: 250, QuorumDefault: 1}
	require.NoError(t, manager.MarketConfigPut(cfg))
	loaded, ok, err := manager.MarketConfigGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cfg.Authority, loaded.Authority)
	require.Equal(t, uint32(250), loaded.FeeBps)
}

func TestReceiptRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	rec := &receipt.Receipt{EscrowID: [32]byte{0x01}, Owner: [20]byte{0x02}, MintedAt: 10, Frozen: true}

	require.NoError(t, manager.ReceiptPut(rec))
	loaded, ok, err := manager.ReceiptGet(rec.EscrowID)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, loaded.Frozen)
	require.Equal(t, rec.Owner, loaded.Owner)
}

func TestMoveTransfersBetweenAccounts(t *testing.T) {
	manager := newTestManager(t)
	from := [20]byte{0x01}
	to := [20]byte{0x02}

	require.NoError(t, manager.SetBalance(from, "USDC", big.NewInt(1_000)))
	require.NoError(t, manager.Move(from, to, "USDC", big.NewInt(400)))

	src, err := manager.Balance(from, "USDC")
	require.NoError(t, err)
	require.Equal(t, 0, src.Cmp(big.NewInt(600)))
	dst, err := manager.Balance(to, "USDC")
	require.NoError(t, err)
	require.Equal(t, 0, dst.Cmp(big.NewInt(400)))

	require.ErrorIs(t, manager.Move(from, to, "USDC", big.NewInt(601)), ErrInsufficientBalance)
	require.NoError(t, manager.Move(from, to, "USDC", big.NewInt(0)))
}
