// Package openai implements oracle.Oracle on the OpenAI Chat Completions
// API, including streaming and function/tool calling. It adapts CargoMesh's
// normalized Request/Response structures into the SDK's message format and
// back.
package openai

import (
	"context"
	"fmt"

	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/oracle"
	sdk "github.com/openai/openai-go"
)

// aggCall aggregates partial tool call streaming deltas (id, name,
// arguments) so complete calls can be reconstructed at finish time.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI oracle adapter. Fields mirror a deliberately
// small subset of Chat Completion parameters.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Oracle wraps the OpenAI Chat Completions API behind oracle.Oracle.
type Oracle struct {
	client *sdk.Client
	opts   Options
}

// New creates an OpenAI oracle using the default client (API key from env).
func New(optFns ...func(o *Options)) *Oracle {
	client := sdk.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI oracle from an existing client.
func NewFromClient(client *sdk.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:               sdk.ChatModelGPT4oMini,
		Temperature:         0,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Complete implements oracle.Oracle for both streaming and non-streaming
// requests.
func (o *Oracle) Complete(ctx context.Context, req oracle.Request) (<-chan oracle.Response, <-chan error) {
	out := make(chan oracle.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := o.buildParams(req)
		if req.Stream {
			o.handleStreaming(ctx, params, out, errCh)
			return
		}
		o.handleNonStreaming(ctx, params, out, errCh)
	}()
	return out, errCh
}

// buildParams assembles the SDK request from the normalized one.
func (o *Oracle) buildParams(req oracle.Request) sdk.ChatCompletionNewParams {
	var messages []sdk.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, sdk.SystemMessage(req.Instructions))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case oracle.RoleSystem:
			messages = append(messages, sdk.SystemMessage(m.Text))
		case oracle.RoleUser:
			messages = append(messages, sdk.UserMessage(m.Text))
		case oracle.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				messages = append(messages, sdk.AssistantMessage(m.Text))
				continue
			}
			toolCalls := make([]sdk.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				toolCalls[i] = sdk.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: sdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			messages = append(messages, sdk.ChatCompletionMessageParamUnion{
				OfAssistant: &sdk.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case oracle.RoleTool:
			messages = append(messages, sdk.ToolMessage(m.Text, m.ToolCallID))
		default:
			if m.Text != "" {
				messages = append(messages, sdk.UserMessage(m.Text))
			}
		}
	}

	params := sdk.ChatCompletionNewParams{
		Messages:            messages,
		Model:               o.opts.Model,
		Temperature:         sdk.Float(o.opts.Temperature),
		MaxCompletionTokens: sdk.Int(o.opts.MaxCompletionTokens),
	}
	if len(req.Tools) > 0 {
		tools := make([]sdk.ChatCompletionToolParam, len(req.Tools))
		for i, td := range req.Tools {
			tools[i] = sdk.ChatCompletionToolParam{
				Type: "function",
				Function: sdk.FunctionDefinitionParam{
					Name:        td.Name,
					Description: sdk.String(td.Description),
					Parameters:  td.Parameters,
				},
			}
		}
		params.Tools = tools
	}
	return params
}

// handleStreaming forwards text deltas as partial responses and emits the
// reconstructed final response when the provider reports a finish reason.
func (o *Oracle) handleStreaming(
	ctx context.Context,
	params sdk.ChatCompletionNewParams,
	out chan<- oracle.Response,
	errCh chan<- error,
) {
	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	var text string
	toolAgg := map[int64]*aggCall{}
	var usage *core.TokenUsage
	for stream.Next() {
		ck := stream.Current()
		if ck.Usage.TotalTokens > 0 {
			usage = &core.TokenUsage{
				PromptTokens:     int(ck.Usage.PromptTokens),
				CompletionTokens: int(ck.Usage.CompletionTokens),
				TotalTokens:      int(ck.Usage.TotalTokens),
			}
		}
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				text += ch.Delta.Content
				out <- oracle.Response{Partial: true, Text: ch.Delta.Content}
			}
			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}
			if ch.FinishReason != "" {
				final := oracle.Response{
					Text:         text,
					FinishReason: ch.FinishReason,
					Usage:        usage,
				}
				for _, ac := range toolAgg {
					final.ToolCalls = append(final.ToolCalls, oracle.ToolCall{
						ID:        ac.id,
						Name:      ac.name,
						Arguments: ac.args,
					})
				}
				out <- final
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

// handleNonStreaming performs a normal completion.
func (o *Oracle) handleNonStreaming(
	ctx context.Context,
	params sdk.ChatCompletionNewParams,
	out chan<- oracle.Response,
	errCh chan<- error,
) {
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("openai: no choices returned")
		return
	}
	ch0 := resp.Choices[0]
	final := oracle.Response{
		Text:         ch0.Message.Content,
		FinishReason: ch0.FinishReason,
	}
	for _, tc := range ch0.Message.ToolCalls {
		final.ToolCalls = append(final.ToolCalls, oracle.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if resp.Usage.TotalTokens > 0 {
		final.Usage = &core.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}
	out <- final
}

// Info implements oracle.Oracle.
func (o *Oracle) Info() oracle.Info {
	return oracle.Info{Name: o.opts.Model, Provider: "openai", SupportsTools: true}
}
