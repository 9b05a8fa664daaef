// Package local implements the Responder interface against a self-hosted
// chat endpoint (Ollama, vLLM, llama.cpp server) speaking the OpenAI
// chat-completions dialect.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/talmor-labs/callflow/internal/config"
	"github.com/talmor-labs/callflow/internal/llm"
	"github.com/talmor-labs/callflow/internal/memory"
)

// Responder generates replies via a local model server.
type Responder struct {
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	agentName   string
	client      *http.Client
	timeout     time.Duration
}

// New creates a local responder from config.
func New(cfg config.LLMConfig, agentName string) *Responder {
	model := cfg.LocalModel
	if model == "" {
		model = "llama3"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Responder{
		endpoint:    strings.TrimRight(cfg.LocalEndpoint, "/"),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		agentName:   agentName,
		client:      &http.Client{},
		timeout:     timeout,
	}
}

// Name returns the backend identifier.
func (r *Responder) Name() string { return "local" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Reply generates the agent's next line.
func (r *Responder) Reply(ctx context.Context, userText string, pc memory.PromptContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msgs := []chatMessage{{Role: "system", Content: llm.BuildSystemPrompt(r.agentName, pc)}}
	recent := pc.RecentMessages
	if n := len(recent); n > 0 && recent[n-1].Role == memory.RoleCustomer && recent[n-1].Text == userText {
		recent = recent[:n-1]
	}
	for _, m := range recent {
		msgs = append(msgs, chatMessage{Role: llm.HistoryRoles(m.Role), Content: m.Text})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: userText})

	reqBody := chatRequest{
		Model:       r.model,
		Messages:    msgs,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling chat request: %w", err)
	}

	url := r.endpoint + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("local chat failed (status %d): %s", resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from local chat API")
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
