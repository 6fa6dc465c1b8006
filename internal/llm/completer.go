// Package llm wraps the completion API used to price items.
package llm

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Completer sends one prompt and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is a single-turn completion request. ImageURL is optional; when
// set the image is attached ahead of the prompt text.
type Request struct {
	System    string
	Prompt    string
	ImageURL  string
	MaxTokens int64
}

// Response is the concatenated text of the reply.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Usage tracks token consumption for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// AnthropicCompleter implements Completer with the official SDK.
type AnthropicCompleter struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// Option customizes an AnthropicCompleter.
type Option func(*options)

type options struct {
	baseURL   string
	maxTokens int64
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithMaxTokens sets the default reply budget.
func WithMaxTokens(n int64) Option {
	return func(o *options) { o.maxTokens = n }
}

// NewAnthropicCompleter creates a completer for model.
func NewAnthropicCompleter(apiKey, model string, opts ...Option) *AnthropicCompleter {
	o := options{maxTokens: 1024}
	for _, fn := range opts {
		fn(&o)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}

	return &AnthropicCompleter{
		client:    sdk.NewClient(reqOpts...),
		model:     model,
		maxTokens: o.maxTokens,
	}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	blocks := make([]sdk.ContentBlockParamUnion, 0, 2)
	if req.ImageURL != "" {
		blocks = append(blocks, sdk.NewImageBlock(sdk.URLImageSourceParam{URL: req.ImageURL}))
	}
	blocks = append(blocks, sdk.NewTextBlock(req.Prompt))

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "llm: create message")
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return nil, eris.New("llm: reply contained no text")
	}

	return &Response{
		Text:  text.String(),
		Model: string(msg.Model),
		Usage: Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}
