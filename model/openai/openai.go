// Package openai adapts the OpenAI Chat Completions API to the core.Agent
// contract used by the scenario runner.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/tracebench/core"
	"github.com/hupe1980/tracebench/model"
)

// Options configures the OpenAI agent adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	SystemPrompt        string
}

// Agent wraps the OpenAI Chat Completions API behind core.Agent.
type Agent struct {
	client *openai.Client
	opts   Options
}

var _ core.Agent = (*Agent)(nil)

// New creates an OpenAI agent using the official client.
func New(optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return &Agent{client: &client, opts: opts}
}

// NewFromClient creates an OpenAI agent from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Agent {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Agent{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
}

// Name implements core.Agent.
func (a *Agent) Name() string {
	return fmt.Sprintf("openai:%s", a.opts.Model)
}

// Run implements core.Agent. The session's prior turns are replayed as
// conversation history ahead of the new input.
func (a *Agent) Run(ctx context.Context, input string, sctx *core.Context) (*core.AgentResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:               a.opts.Model,
		Messages:            buildMessages(a.opts.SystemPrompt, model.ConversationHistory(sctx), input),
		Temperature:         openai.Float(a.opts.Temperature),
		MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return nil, &core.ModelError{Message: "openai api rejected the request", Cause: err}
		}
		return nil, &core.NetworkError{Message: "openai api unreachable", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &core.ModelError{Message: "response contained no choices"}
	}

	choice := resp.Choices[0]
	out := &core.AgentResponse{
		Output: choice.Message.Content,
		Model:  resp.Model,
		Usage: &core.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolsInvoked = append(out.ToolsInvoked, tc.Function.Name)
	}

	if out.Output == "" && len(out.ToolsInvoked) == 0 {
		return nil, &core.ModelError{Message: "response contained no usable content"}
	}
	return out, nil
}

func buildMessages(systemPrompt string, history []model.Exchange, input string) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2*len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, ex := range history {
		messages = append(messages,
			openai.UserMessage(ex.Input),
			openai.AssistantMessage(ex.Output),
		)
	}
	return append(messages, openai.UserMessage(input))
}
