// Package responder answers free-form questions with an OpenAI-compatible
// chat completion API (Groq or OpenAI).
package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/zulandar/leadbot/internal/lang"
	"github.com/zulandar/leadbot/internal/telegraph"
)

// completer is the slice of the chat completions service we use, enabling
// test mocks.
type completer interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// LLM implements telegraph.Responder.
type LLM struct {
	chat        completer
	model       string
	temperature float64
	maxTokens   int
	prompt      string
}

// Opts holds parameters for creating an LLM responder.
type Opts struct {
	APIKey      string
	BaseURL     string // empty for api.openai.com
	Model       string
	Temperature float64
	MaxTokens   int
	Profile     telegraph.Profile
	// For testing: inject a mock instead of the real client.
	Chat completer
}

// New creates an LLM responder.
func New(opts Opts) (*LLM, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("responder: model is required")
	}
	chat := opts.Chat
	if chat == nil {
		if opts.APIKey == "" {
			return nil, fmt.Errorf("responder: api key is required")
		}
		reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey), option.WithMaxRetries(1)}
		if opts.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
		}
		client := openai.NewClient(reqOpts...)
		chat = &client.Chat.Completions
	}
	return &LLM{
		chat:        chat,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		prompt:      SystemPrompt(opts.Profile),
	}, nil
}

// Respond implements telegraph.Responder.
func (r *LLM) Respond(ctx context.Context, req telegraph.ResponderRequest) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", fmt.Errorf("responder: empty question")
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(r.prompt),
			openai.SystemMessage(languageInstruction(req.Language)),
			openai.UserMessage(text),
		},
	}
	if r.temperature > 0 {
		params.Temperature = openai.Float(r.temperature)
	}
	if r.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(r.maxTokens))
	}

	resp, err := r.chat.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("responder: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("responder: no choices returned")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("responder: empty answer")
	}
	return answer, nil
}

// SystemPrompt describes the company and the assistant's role.
func SystemPrompt(p telegraph.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the customer assistant of %s, a software company in %s, Uzbekistan.\n", p.Name, p.CityEn)
	b.WriteString("The company builds websites, mobile apps, Telegram bots, CRM and ERP systems, and provides IT consulting.\n")
	fmt.Fprintf(&b, "Office: %s, %s. Phone: %s. Email: %s. Website: %s.\n", p.Address, p.CityEn, p.Phone, p.Email, p.Website)
	if p.Stats.Clients > 0 {
		fmt.Fprintf(&b, "Portfolio: %d websites, %d mobile apps, %d bots, %d clients.\n",
			p.Stats.Websites, p.Stats.MobileApps, p.Stats.Bots, p.Stats.Clients)
	}
	b.WriteString("Answer briefly and politely in plain text, at most a few sentences. ")
	b.WriteString("Never invent prices or deadlines; suggest /order to request a quote and /contact for a manager.")
	return b.String()
}

func languageInstruction(l lang.Language) string {
	if l == lang.Secondary {
		return "Reply in English."
	}
	return "Reply in Uzbek (Latin script)."
}
