package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient condenses announcement text using the Chat Completions API.
// It satisfies announce.Condenser.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional
}

func NewOpenAI(cfg Config) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("openai: model must be specified")
	}
	var c *openai.Client
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(cfg.APIKey)
	}
	return &OpenAIClient{client: c, model: cfg.Model}, nil
}

// Condense rewrites text to fit in maxRunes, keeping dates, versions and
// maintenance windows intact.
func (o *OpenAIClient) Condense(ctx context.Context, title, text string, maxRunes int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	// leave headroom, the model does not count runes exactly
	target := maxRunes * 4 / 5
	sys := fmt.Sprintf(`
		You shorten game announcements for a chat channel.
		Rewrite the text in its original language in at most %d characters.
		Keep every date, time, version number and reward amount exactly as written.
		Output plain text only, no links, no markdown headings.
		`, target)
	user := fmt.Sprintf("Title: %s\nText: %s", title, text)
	out, err := o.create(ctx, sys, user)
	if err != nil {
		slog.Error("openai: condense error", "err", err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (o *OpenAIClient) create(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
