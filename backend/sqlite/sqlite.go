// Package sqlite implements backend.Backend on an embedded SQLite database
// via the pure-Go modernc.org/sqlite driver. Write batches run inside a
// single transaction with automatic rollback on any statement error.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cargomesh/cargomesh/backend"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed Backend.
type Store struct {
	db     *sql.DB
	schema string
}

// Open opens (or creates) the database at path. The schema description is
// returned verbatim by SchemaDescription; pass the DDL or a natural-language
// summary, whichever the agents should see in their prompts.
func Open(path, schema string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// The driver is single-writer; serialize access to avoid SQLITE_BUSY
	// under concurrent agent tools.
	db.SetMaxOpenConns(1)
	return &Store{db: db, schema: schema}, nil
}

// Init executes DDL statements, typically at startup.
func (s *Store) Init(ctx context.Context, ddl string) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// ExecuteRead implements backend.Backend. Params bind to named placeholders
// (:name) in the query.
func (s *Store) ExecuteRead(ctx context.Context, query string, params map[string]any) ([]backend.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, namedArgs(params)...)
	if err != nil {
		return nil, fmt.Errorf("execute read: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []backend.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec := make(backend.Record, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ExecuteWrite implements backend.Backend: all statements succeed or the
// transaction rolls back.
func (s *Store) ExecuteWrite(ctx context.Context, stmts ...backend.Statement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write transaction: %w", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt.Query, namedArgs(stmt.Params)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute write %q: %w", firstWords(stmt.Query, 4), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write transaction: %w", err)
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

func namedArgs(params map[string]any) []any {
	args := make([]any, 0, len(params))
	for k, v := range params {
		args = append(args, sql.Named(k, v))
	}
	return args
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
