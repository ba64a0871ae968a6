package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"app.db", "app.db?_txlock=immediate&_busy_timeout=5000"},
		{"app.db?_foreign_keys=1", "app.db?_foreign_keys=1&_txlock=immediate&_busy_timeout=5000"},
		{"app.db?_busy_timeout=100&_txlock=exclusive", "app.db?_busy_timeout=100&_txlock=exclusive"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SQLiteDSN(tt.in))
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x", 1)
	assert.Error(t, err)
}

func TestOpenMigratesFileDatabase(t *testing.T) {
	gdb, err := Open("sqlite", filepath.Join(t.TempDir(), "app.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	for _, table := range []string{"users", "products", "stock_records", "orders", "order_items"} {
		assert.True(t, gdb.Migrator().HasTable(table), table)
	}
}
