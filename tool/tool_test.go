package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/cargomesh/cargomesh/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoTool() *FunctionTool {
	return NewFunctionTool(
		"echo",
		"Echo the input back",
		util.ObjectSchema(map[string]any{
			"text": util.StringProp("text to echo"),
		}, "text"),
		func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	)
}

func TestFunctionTool_Call(t *testing.T) {
	tl := newEchoTool()
	out, err := tl.Call(context.Background(), map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	tl := newEchoTool()
	_, err := tl.Call(context.Background(), map[string]any{})
	require.Error(t, err)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeValidation, te.Code)
	assert.Equal(t, "echo", te.Tool)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	tl := NewFunctionTool("boom", "always fails", util.ObjectSchema(nil),
		func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("backend unavailable")
		})
	_, err := tl.Call(context.Background(), map[string]any{})
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeExecution, te.Code)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("custom", "quota exceeded", "QUOTA")
	tl := NewFunctionTool("custom", "custom failure", util.ObjectSchema(nil),
		func(ctx context.Context, args map[string]any) (string, error) {
			return "", custom
		})
	_, err := tl.Call(context.Background(), map[string]any{})
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "QUOTA", te.Code)
}
