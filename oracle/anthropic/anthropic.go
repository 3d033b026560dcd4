// Package anthropic implements oracle.Oracle on the Anthropic Messages API
// with function/tool calling. Requests asking for streaming are served with
// a single final response; token-level streaming is handled upstream by the
// orchestrator's event layer.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/oracle"
)

// Options configure the Anthropic oracle adapter.
type Options struct {
	Model       sdk.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Oracle wraps the Anthropic Messages API behind oracle.Oracle.
type Oracle struct {
	client *sdk.Client
	opts   Options
}

// New creates an Anthropic oracle using the official client.
func New(optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:       sdk.ModelClaude3_5Sonnet20241022,
		Temperature: 0,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := sdk.NewClient(clientOpts...)
	return &Oracle{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic oracle from an existing client.
func NewFromClient(client *sdk.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:       sdk.ModelClaude3_5Sonnet20241022,
		Temperature: 0,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Complete implements oracle.Oracle.
func (o *Oracle) Complete(ctx context.Context, req oracle.Request) (<-chan oracle.Response, <-chan error) {
	out := make(chan oracle.Response, 4)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := sdk.MessageNewParams{
			Model:       o.opts.Model,
			Messages:    buildMessages(req.Messages),
			MaxTokens:   o.opts.MaxTokens,
			Temperature: sdk.Float(o.opts.Temperature),
		}
		if req.Instructions != "" {
			params.System = []sdk.TextBlockParam{{Text: req.Instructions}}
		}
		if len(req.Tools) > 0 {
			tools := make([]sdk.ToolUnionParam, len(req.Tools))
			for i, td := range req.Tools {
				var props any
				if p, ok := td.Parameters["properties"]; ok {
					props = p
				}
				var required []string
				if r, ok := td.Parameters["required"].([]string); ok {
					required = r
				}
				tools[i] = sdk.ToolUnionParam{
					OfTool: &sdk.ToolParam{
						Name:        td.Name,
						Description: sdk.String(td.Description),
						InputSchema: sdk.ToolInputSchemaParam{
							Properties: props,
							Required:   required,
						},
					},
				}
			}
			params.Tools = tools
		}

		resp, err := o.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		final := oracle.Response{FinishReason: "stop"}
		if resp.StopReason != "" {
			final.FinishReason = string(resp.StopReason)
		}
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				final.Text += block.AsText().Text
			case "tool_use":
				tu := block.AsToolUse()
				args := ""
				if tu.Input != nil {
					if b, err := json.Marshal(tu.Input); err == nil {
						args = string(b)
					}
				}
				final.ToolCalls = append(final.ToolCalls, oracle.ToolCall{
					ID:        tu.ID,
					Name:      tu.Name,
					Arguments: args,
				})
			}
		}
		if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
			final.Usage = &core.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			}
		}
		out <- final
	}()
	return out, errCh
}

// buildMessages converts normalized messages to the Anthropic format. Tool
// results become user-authored tool_result blocks answering the preceding
// assistant tool_use blocks.
func buildMessages(messages []oracle.Message) []sdk.MessageParam {
	var out []sdk.MessageParam
	for _, m := range messages {
		switch m.Role {
		case oracle.RoleSystem:
			// Handled via params.System by the caller.
		case oracle.RoleUser:
			if m.Text != "" {
				out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
			}
		case oracle.RoleAssistant:
			var blocks []sdk.ContentBlockParamUnion
			if m.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Text))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, json.RawMessage(tc.Arguments), tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, sdk.NewAssistantMessage(blocks...))
			}
		case oracle.RoleTool:
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Text, false)))
		default:
			if m.Text != "" {
				out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
			}
		}
	}
	return out
}

// Info implements oracle.Oracle.
func (o *Oracle) Info() oracle.Info {
	return oracle.Info{Name: string(o.opts.Model), Provider: "anthropic", SupportsTools: true}
}
