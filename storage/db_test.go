package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("acct:b"), []byte("2")))
	require.NoError(t, db.Put([]byte("acct:a"), []byte("1")))
	require.NoError(t, db.Put([]byte("meta:slot"), []byte("9")))

	value, err := db.Get([]byte("acct:a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	ok, err := db.Has([]byte("acct:b"))
	require.NoError(t, err)
	require.True(t, ok)

	var seen []string
	require.NoError(t, db.Iterate([]byte("acct:"), func(key, value []byte) bool {
		seen = append(seen, string(key)+"="+string(value))
		return true
	}))
	require.Equal(t, []string{"acct:a=1", "acct:b=2"}, seen)

	seen = nil
	require.NoError(t, db.Iterate([]byte("acct:"), func(key, _ []byte) bool {
		seen = append(seen, string(key))
		return false
	}))
	require.Len(t, seen, 1)

	require.NoError(t, db.Delete([]byte("acct:a")))
	ok, err = db.Has([]byte("acct:a"))
	require.NoError(t, err)
	require.False(t, ok)

	batch := new(Batch)
	batch.Put([]byte("acct:c"), []byte("3"))
	batch.Delete([]byte("acct:b"))
	batch.Put([]byte("meta:slot"), []byte("10"))
	require.Equal(t, 3, batch.Len())
	require.NoError(t, db.Write(batch))

	value, err = db.Get([]byte("acct:c"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), value)
	ok, err = db.Has([]byte("acct:b"))
	require.NoError(t, err)
	require.False(t, ok)
	value, err = db.Get([]byte("meta:slot"))
	require.NoError(t, err)
	require.Equal(t, []byte("10"), value)

	require.NoError(t, db.Write(new(Batch)))
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestBatchCopiesStagedValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	batch := new(Batch)
	batch.Put([]byte("k"), value)
	value[0] = 'z'
	require.NoError(t, db.Write(batch))

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}
