package receipt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type mockStoreState struct {
	receipts map[[32]byte]*Receipt
}

func newMockStoreState() *mockStoreState {
	return &mockStoreState{receipts: make(map[[32]byte]*Receipt)}
}

func (m *mockStoreState) ReceiptPut(rec *Receipt) error {
	m.receipts[rec.EscrowID] = rec.Clone()
	return nil
}

func (m *mockStoreState) ReceiptGet(escrowID [32]byte) (*Receipt, bool, error) {
	rec, ok := m.receipts[escrowID]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func TestMintOnce(t *testing.T) {
	ledger := NewLedger(newMockStoreState())
	ledger.SetNowFunc(func() int64 { return 5_000 })
	id := [32]byte{0x01}
	owner := [20]byte{0x02}

	require.NoError(t, ledger.Mint(id, owner))
	rec, ok, err := ledger.Lookup(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, owner, rec.Owner)
	require.Equal(t, int64(5_000), rec.MintedAt)
	require.True(t, rec.Frozen)
	require.False(t, rec.Burned)

	require.ErrorIs(t, ledger.Mint(id, owner), ErrAlreadyMinted)
}

func TestFinalizeBurn(t *testing.T) {
	ledger := NewLedger(newMockStoreState())
	id := [32]byte{0x01}

	require.ErrorIs(t, ledger.Finalize(id, true), ErrNotMinted)
	require.NoError(t, ledger.Mint(id, [20]byte{0x02}))
	require.NoError(t, ledger.Finalize(id, true))

	rec, ok, err := ledger.Lookup(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, rec.Burned)
	require.False(t, rec.Frozen)

	require.ErrorIs(t, ledger.Finalize(id, true), ErrBurned)
}

func TestFinalizeThaw(t *testing.T) {
	ledger := NewLedger(newMockStoreState())
	id := [32]byte{0x01}

	require.NoError(t, ledger.Mint(id, [20]byte{0x02}))
	require.NoError(t, ledger.Finalize(id, false))

	rec, ok, err := ledger.Lookup(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, rec.Burned)
	require.False(t, rec.Frozen)
}
