// Package memdb is a volatile Backend implementation storing records in
// process-local tables. It understands a deliberately tiny query convention
// and exists for tests and demo wiring; production deployments use the
// sqlite backend or an external store.
//
// Query convention:
//   - reads: the query string names a table; params are equality filters.
//   - writes: "insert <table>" appends params as a record,
//     "delete <table>" removes records matching params.
package memdb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cargomesh/cargomesh/backend"
)

// Store is an in-memory Backend. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]backend.Record
	schema string
}

// New constructs an empty store with the given schema description.
func New(schema string) *Store {
	return &Store{tables: make(map[string][]backend.Record), schema: schema}
}

// Seed inserts records into a table without transaction bookkeeping.
// Intended for test fixtures.
func (s *Store) Seed(table string, records ...backend.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], records...)
}

// ExecuteRead implements backend.Backend.
func (s *Store) ExecuteRead(ctx context.Context, query string, params map[string]any) ([]backend.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	table := strings.TrimSpace(query)
	rows, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("memdb: unknown table %q", table)
	}
	var out []backend.Record
	for _, row := range rows {
		if matches(row, params) {
			cp := make(backend.Record, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

// ExecuteWrite implements backend.Backend. The batch is applied to a copy of
// the affected tables and swapped in only if every statement succeeds.
func (s *Store) ExecuteWrite(ctx context.Context, stmts ...backend.Statement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string][]backend.Record)
	tableOf := func(name string) []backend.Record {
		if rows, ok := staged[name]; ok {
			return rows
		}
		return append([]backend.Record(nil), s.tables[name]...)
	}

	for _, stmt := range stmts {
		op, table, ok := strings.Cut(strings.TrimSpace(stmt.Query), " ")
		if !ok {
			return fmt.Errorf("memdb: malformed statement %q", stmt.Query)
		}
		switch op {
		case "insert":
			rec := make(backend.Record, len(stmt.Params))
			for k, v := range stmt.Params {
				rec[k] = v
			}
			staged[table] = append(tableOf(table), rec)
		case "delete":
			var kept []backend.Record
			for _, row := range tableOf(table) {
				if !matches(row, stmt.Params) {
					kept = append(kept, row)
				}
			}
			staged[table] = kept
		default:
			return fmt.Errorf("memdb: unsupported operation %q", op)
		}
	}
	for table, rows := range staged {
		s.tables[table] = rows
	}
	return nil
}

// SchemaDescription implements backend.Backend.
func (s *Store) SchemaDescription(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.schema, nil
}

func matches(row backend.Record, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprintf("%v", row[k]) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
