package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_MigratesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "valuations.db")

	db, err := NewDB(NewConfig(path))
	require.NoError(t, err)

	var fk int
	require.NoError(t, db.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)
	require.NoError(t, db.Close())

	cfg := NewConfig(path)
	cfg.ReadOnly = true
	ro, err := NewDB(cfg)
	require.NoError(t, err)
	var n int
	require.NoError(t, ro.Get(&n, "SELECT COUNT(*) FROM valuation_categories"))
	assert.Positive(t, n)
	_, err = ro.Exec("DELETE FROM valuation_categories")
	assert.Error(t, err)
	require.NoError(t, ro.Close())

	require.NoError(t, DeleteDB(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
