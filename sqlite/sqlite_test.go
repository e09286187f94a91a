package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/fwojciec/docsync/sqlite"
	"github.com/fwojciec/docsync/sqlite/sqlitetest"
	"github.com/stretchr/testify/require"
)

func TestDB_Open(t *testing.T) {
	t.Parallel()

	t.Run("opens existing dataset file", func(t *testing.T) {
		t.Parallel()

		path := sqlitetest.CreateSample(t, "sample.db")
		db := sqlite.NewDB(path)
		require.NoError(t, db.Open())
		defer db.Close()

		require.Equal(t, path, db.Path())
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		t.Parallel()

		db := sqlite.NewDB(filepath.Join(t.TempDir(), "missing.db"))
		err := db.Open()
		require.Error(t, err)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		t.Parallel()

		db := sqlite.NewDB(sqlitetest.CreateSample(t, "sample.db"))
		require.NoError(t, db.Open())
		require.NoError(t, db.Close())
		require.NoError(t, db.Close())
	})
}
