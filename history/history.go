// Package history records per-session conversation turns. The orchestrator
// appends one (query, answer) pair per request; the router consults a short
// summary of recent turns as classification context. Session lifetime and
// eviction are store concerns (the Redis store applies a TTL, the in-memory
// store keeps a bounded tail).
package history

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cargomesh/cargomesh/core"
)

// ConversationHistory is the append-only per-session turn log. Appends to
// different sessions must not block each other; appends to the same session
// are serialized by the implementation.
type ConversationHistory interface {
	// Append records a turn against its session.
	Append(ctx context.Context, turn core.ConversationTurn) error

	// Recent returns up to n most recent turns for a session, oldest first.
	Recent(ctx context.Context, sessionID string, n int) ([]core.ConversationTurn, error)
}

// Summarize renders recent turns into the compact text block injected into
// the classification prompt. Returns "" for an empty history.
func Summarize(turns []core.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", t.Query, truncate(t.Answer, 200))
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncate cuts s to at most max bytes, backing off to a rune boundary so
// multi-byte answers never produce invalid UTF-8 in the summary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
