package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)

	key := []byte("escrow:1")
	require.NoError(t, db.Put(key, []byte("payload")))

	ok, err := db.Has(key)
	require.NoError(t, err)
	require.True(t, ok)

	value, err := db.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), value)

	require.NoError(t, db.Delete(key))
	_, err = db.Get(key)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(db.Close)

	payload := []byte{0x01, 0x02}
	require.NoError(t, db.Put([]byte("k"), payload))
	payload[0] = 0xFF

	stored, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, stored)

	stored[1] = 0xFF
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, again)
}
