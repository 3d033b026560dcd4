// Package backend abstracts the external knowledge store queried and
// mutated by domain agent tools. The orchestration core treats the store as
// opaque: it issues structured read queries, atomic write batches, and asks
// for a schema description to inject into agent prompts. Storage schema
// ownership stays with the backend.
package backend

import "context"

// Record is one result row: an ordered, string-keyed map materialized by the
// store. Key iteration order is not guaranteed; callers needing determinism
// sort keys themselves.
type Record map[string]any

// Statement pairs a structured query with its parameters.
type Statement struct {
	Query  string
	Params map[string]any
}

// Backend is the knowledge-store handle shared by every agent tool. Callers
// bound each call with their own context deadline.
type Backend interface {
	// ExecuteRead runs a read query and returns the matching records in
	// store order.
	ExecuteRead(ctx context.Context, query string, params map[string]any) ([]Record, error)

	// ExecuteWrite applies the statements inside a single transaction:
	// either every statement commits or none does.
	ExecuteWrite(ctx context.Context, stmts ...Statement) error

	// SchemaDescription returns a human-readable description of the store's
	// schema for prompt injection.
	SchemaDescription(ctx context.Context) (string, error)
}
