package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cargomesh/cargomesh/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), "vehicles(plate TEXT, status TEXT)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	err = s.Init(context.Background(), `CREATE TABLE vehicles (plate TEXT PRIMARY KEY, status TEXT)`)
	require.NoError(t, err)
	return s
}

func TestStore_ReadWrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.ExecuteWrite(ctx,
		backend.Statement{
			Query:  `INSERT INTO vehicles (plate, status) VALUES (:plate, :status)`,
			Params: map[string]any{"plate": "12A-3456", "status": "active"},
		},
		backend.Statement{
			Query:  `INSERT INTO vehicles (plate, status) VALUES (:plate, :status)`,
			Params: map[string]any{"plate": "34B-7890", "status": "maintenance"},
		},
	)
	require.NoError(t, err)

	rows, err := s.ExecuteRead(ctx, `SELECT plate, status FROM vehicles WHERE status = :status ORDER BY plate`,
		map[string]any{"status": "maintenance"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "34B-7890", rows[0]["plate"])
}

func TestStore_WriteBatchRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.ExecuteWrite(ctx,
		backend.Statement{
			Query:  `INSERT INTO vehicles (plate, status) VALUES (:plate, :status)`,
			Params: map[string]any{"plate": "12A-3456", "status": "active"},
		},
		backend.Statement{Query: `INSERT INTO nonexistent (x) VALUES (1)`},
	)
	require.Error(t, err)

	rows, err := s.ExecuteRead(ctx, `SELECT plate FROM vehicles`, nil)
	require.NoError(t, err)
	assert.Empty(t, rows, "first statement must have rolled back")
}

func TestStore_SchemaDescription(t *testing.T) {
	s := openTestStore(t)
	desc, err := s.SchemaDescription(context.Background())
	require.NoError(t, err)
	assert.Contains(t, desc, "vehicles")
}
