package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParameters(t *testing.T) {
	schema := ObjectSchema(map[string]any{
		"plate": StringProp("license plate"),
		"limit": IntProp("max results"),
		"all":   BoolProp("include all"),
	}, "plate")

	err := ValidateParameters(map[string]any{"plate": "12A", "limit": float64(5)}, schema)
	require.NoError(t, err)

	err = ValidateParameters(map[string]any{"limit": 5}, schema)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "plate", ve.Field)

	err = ValidateParameters(map[string]any{"plate": "12A", "limit": "five"}, schema)
	require.Error(t, err)

	// float64 5.5 is not a valid integer
	err = ValidateParameters(map[string]any{"plate": "12A", "limit": float64(5.5)}, schema)
	require.Error(t, err)

	// extra fields pass through
	err = ValidateParameters(map[string]any{"plate": "12A", "unknown": 1}, schema)
	require.NoError(t, err)
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Query: {{.query}}\nHistory: {{.history}}", map[string]any{
		"query":   "where is my parcel",
		"history": "none",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Query: where is my parcel")
	assert.Contains(t, out, "History: none")

	out, err = RenderTemplate("no markers here", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers here", out)
}
