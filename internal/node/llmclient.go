package node

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/agentfleet/conductor/pkg/types"
)

// SingleShotClient performs one provider request and reports its result
// in conductor's dialect-neutral shape. Implementations own their own
// retry policy for transient upstream failures.
type SingleShotClient interface {
	Complete(ctx context.Context, req SingleShotRequest) (types.SingleShotResult, error)
}

// SingleShotRequest is the dialect-neutral input a SingleShotClient
// translates into its provider's wire shape.
type SingleShotRequest struct {
	SystemPrompt     string
	Messages         []types.ChatMessage
	Tools            []types.ToolDefinition
	ToolChoice       string // "auto", "none", or a specific tool name
	ParallelToolCalls bool
	Model            string
	MaxTokens        int64
}

// NewSingleShotClient builds the client matching spec.APIFormat.
func NewSingleShotClient(spec types.ProviderSpec) (SingleShotClient, error) {
	switch spec.APIFormat {
	case types.FormatOpenAI:
		return newOpenAIClient(spec), nil
	default:
		return newAnthropicClient(spec), nil
	}
}

func retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// --- Anthropic dialect ---

type anthropicClient struct {
	client *anthropic.Client
	model  string
}

func newAnthropicClient(spec types.ProviderSpec) *anthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(spec.APIKey)}
	if spec.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(spec.BaseURL))
	}
	c := anthropic.NewClient(opts...)
	model := spec.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return &anthropicClient{client: &c, model: model}
}

func (a *anthropicClient) Complete(ctx context.Context, req SingleShotRequest) (types.SingleShotResult, error) {
	model := a.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := toAnthropicMessages(req.Messages)
	tools := toAnthropicTools(req.Tools)

	var result types.SingleShotResult
	op := func() error {
		msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: maxTokens,
			System:    systemBlocks(req.SystemPrompt),
			Messages:  messages,
			Tools:     tools,
		})
		if err != nil {
			return err
		}
		result = fromAnthropicMessage(msg)
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(retryPolicy(), ctx)); err != nil {
		return types.SingleShotResult{Success: false, Error: err.Error(), FinishReason: types.FinishError}, err
	}
	return result, nil
}

// --- OpenAI dialect ---

type openAIClient struct {
	client *openai.Client
	model  string
}

func newOpenAIClient(spec types.ProviderSpec) *openAIClient {
	opts := []openaioption.RequestOption{openaioption.WithAPIKey(spec.APIKey)}
	if spec.BaseURL != "" {
		opts = append(opts, openaioption.WithBaseURL(spec.BaseURL))
	}
	c := openai.NewClient(opts...)
	model := spec.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &openAIClient{client: &c, model: model}
}

func (o *openAIClient) Complete(ctx context.Context, req SingleShotRequest) (types.SingleShotResult, error) {
	model := o.model
	if req.Model != "" {
		model = req.Model
	}

	messages := toOpenAIMessages(req.SystemPrompt, req.Messages)
	tools := toOpenAITools(req.Tools)

	var result types.SingleShotResult
	op := func() error {
		completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return err
		}
		result = fromOpenAICompletion(completion)
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(retryPolicy(), ctx)); err != nil {
		return types.SingleShotResult{Success: false, Error: err.Error(), FinishReason: types.FinishError}, err
	}
	return result, nil
}

var (
	_ SingleShotClient = (*anthropicClient)(nil)
	_ SingleShotClient = (*openAIClient)(nil)
)
