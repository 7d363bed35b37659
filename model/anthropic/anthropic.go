// Package anthropic adapts the Anthropic Messages API to the core.Agent
// contract used by the scenario runner.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/model"
)

// Options configures the Anthropic agent adapter.
type Options struct {
	Model        anthropic.Model
	Temperature  float64
	MaxTokens    int64
	APIKey       string
	SystemPrompt string
}

// Agent wraps the Anthropic Messages API behind core.Agent.
type Agent struct {
	client *anthropic.Client
	opts   Options
}

var _ core.Agent = (*Agent)(nil)

// New creates an Anthropic agent using the official client.
func New(optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Agent{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic agent from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Agent{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// Name implements core.Agent.
func (a *Agent) Name() string {
	return fmt.Sprintf("anthropic:%s", a.opts.Model)
}

// Run implements core.Agent. The session's prior turns are replayed as
// conversation history ahead of the new input.
func (a *Agent) Run(ctx context.Context, input string, sctx *core.Context) (*core.AgentResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       a.opts.Model,
		Messages:    buildMessages(model.ConversationHistory(sctx), input),
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
	}
	if a.opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.opts.SystemPrompt}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return nil, &core.ModelError{Message: "anthropic api rejected the request", Cause: err}
		}
		return nil, &core.NetworkError{Message: "anthropic api unreachable", Cause: err}
	}

	out := &core.AgentResponse{
		Model: string(resp.Model),
		Usage: &core.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			out.ToolsInvoked = append(out.ToolsInvoked, block.AsToolUse().Name)
		}
	}
	out.Output = text.String()

	if out.Output == "" && len(out.ToolsInvoked) == 0 {
		return nil, &core.ModelError{Message: "response contained no usable content"}
	}
	return out, nil
}

func buildMessages(history []model.Exchange, input string) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, 2*len(history)+1)
	for _, ex := range history {
		messages = append(messages,
			anthropic.NewUserMessage(anthropic.NewTextBlock(ex.Input)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock(ex.Output)),
		)
	}
	return append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(input)))
}
