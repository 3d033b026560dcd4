package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cargomesh/cargomesh/backend"
)

// Argument extraction helpers shared by the concrete agents' tools. JSON
// decoding produces float64 for every number, so integer arguments are
// normalized here.

func strArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// formatRecords renders backend rows as a compact bulleted listing the
// oracle can fold into its answer. Keys are sorted for determinism.
func formatRecords(title string, records []backend.Record) string {
	if len(records) == 0 {
		return "No matching records."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%d)\n", title, len(records))
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			v := rec[k]
			if v == nil {
				v = "N/A"
			}
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		fmt.Fprintf(&b, "- %s\n", strings.Join(parts, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
