package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"

	defaultChatModel = "llama-3.1-8b-instant"
	maxOutputTokens  = 1024

	// A hung upstream call must not pin the request connection forever.
	completionTimeout = 120 * time.Second
)

// CompletionClient produces one reply for an ordered list of role/content
// messages. Implementations stream internally; callers always get the full
// concatenated text or an error, never a partial response.
type CompletionClient interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// LLMService talks to Groq through its OpenAI-compatible chat completion API.
type LLMService struct {
	client *openai.Client
	logger *zap.Logger
}

func NewLLMService(apiKey string, logger *zap.Logger) *LLMService {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	cfg.HTTPClient = &http.Client{Timeout: completionTimeout}

	return &LLMService{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

func (s *LLMService) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       defaultChatModel,
		Messages:    messages,
		Temperature: 1,
		MaxTokens:   maxOutputTokens,
		TopP:        1,
		Stream:      true,
	}

	start := time.Now()
	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("groq completion request failed: %w", err)
	}
	defer stream.Close()

	var response strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("groq stream read failed: %w", err)
		}
		if len(chunk.Choices) > 0 {
			response.WriteString(chunk.Choices[0].Delta.Content)
		}
	}

	s.logger.Debug("completion finished",
		zap.String("model", defaultChatModel),
		zap.Duration("elapsed", time.Since(start)))

	return response.String(), nil
}
