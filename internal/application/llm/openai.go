package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel streams chat completions from the OpenAI API or a compatible provider.
type OpenAIModel struct {
	Client      *openai.Client
	Model       string
	Temperature float32
}

// NewOpenAIModel builds a client for apiKey; baseURL is optional.
func NewOpenAIModel(apiKey, model, baseURL string) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4
	}
	return &OpenAIModel{
		Client:      openai.NewClientWithConfig(cfg),
		Model:       model,
		Temperature: 0.7,
	}
}

func (m *OpenAIModel) Name() string {
	return m.Model
}

// Stream sends prompt as a single user message and forwards content deltas in arrival order.
func (m *OpenAIModel) Stream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	stream, err := m.Client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       m.Model,
		Temperature: m.Temperature,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: start stream: %w", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				log.Error().Err(err).Str("model", m.Model).Msg("openai: stream failed")
				send(ctx, out, Chunk{Err: fmt.Errorf("openai: %w", err)})
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !send(ctx, out, Chunk{Token: choice.Delta.Content}) {
					return
				}
			}
		}
	}()
	return out, nil
}
