// Package openai implements the Responder interface using the OpenAI Chat
// Completions API. Streaming mode assembles the reply token-by-token so a
// slow tail token does not add head latency elsewhere; sync mode is kept
// for environments where streaming connections are flaky.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/talmor-labs/callflow/internal/config"
	"github.com/talmor-labs/callflow/internal/llm"
	"github.com/talmor-labs/callflow/internal/memory"
)

// Responder generates replies via the OpenAI API.
type Responder struct {
	client      *goopenai.Client
	model       string
	temperature float32
	maxTokens   int
	streaming   bool
	agentName   string
	timeout     time.Duration
}

// New creates an OpenAI responder from config.
func New(cfg config.LLMConfig, agentName string) *Responder {
	model := cfg.Model
	if model == "" {
		model = goopenai.GPT4o
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Responder{
		client:      goopenai.NewClient(cfg.OpenAIAPIKey),
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		streaming:   cfg.Streaming,
		agentName:   agentName,
		timeout:     timeout,
	}
}

// Name returns the backend identifier.
func (r *Responder) Name() string { return "openai" }

// Reply generates the agent's next line.
func (r *Responder) Reply(ctx context.Context, userText string, pc memory.PromptContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := goopenai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    r.buildMessages(userText, pc),
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	}

	if r.streaming {
		return r.replyStreaming(ctx, req)
	}
	return r.replySync(ctx, req)
}

func (r *Responder) replySync(ctx context.Context, req goopenai.ChatCompletionRequest) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from chat API")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (r *Responder) replyStreaming(ctx context.Context, req goopenai.ChatCompletionRequest) (string, error) {
	req.Stream = true
	stream, err := r.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep whatever arrived; a half reply beats dead air.
			if sb.Len() > 0 {
				slog.Warn("chat stream interrupted, using partial reply", "error", err)
				break
			}
			return "", fmt.Errorf("chat stream: %w", err)
		}
		if len(chunk.Choices) > 0 {
			sb.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func (r *Responder) buildMessages(userText string, pc memory.PromptContext) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(pc.RecentMessages)+2)
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: llm.BuildSystemPrompt(r.agentName, pc),
	})
	recent := pc.RecentMessages
	// The snapshot is taken after the utterance is recorded, so the last
	// entry is usually userText itself. Don't send it twice.
	if n := len(recent); n > 0 && recent[n-1].Role == memory.RoleCustomer && recent[n-1].Text == userText {
		recent = recent[:n-1]
	}
	for _, m := range recent {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    llm.HistoryRoles(m.Role),
			Content: m.Text,
		})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: userText,
	})
	return msgs
}
