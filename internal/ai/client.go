package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TokenUsage is the accounting reported by the completion service.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Completion is the accumulated output of one generation call.
type Completion struct {
	Content string
	Tokens  TokenUsage
}

// StreamFunc receives each content delta as it arrives.
type StreamFunc func(delta string)

// StreamOptions tunes a single generation call.
type StreamOptions struct {
	Temperature float64
	MaxTokens   int
}

// Completer is the external completion service contract: given a prompt it
// streams tokens and returns the accumulated result.
type Completer interface {
	Stream(ctx context.Context, prompt string, opts StreamOptions, onDelta StreamFunc) (*Completion, error)
}

// Options configures a chat-completion client.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	System     string
	HTTPClient *http.Client
	Fallback   Completer
	OnFallback func(reason string, err error)
}

// Client streams chat completions from a DeepSeek/OpenAI-compatible API.
// When the primary endpoint cannot be reached or rejects the request before
// any token is produced, an optional fallback completer takes over.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	system     string
	client     *http.Client
	fallback   Completer
	onFallback func(reason string, err error)
}

const defaultModel = "deepseek-chat"

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("completion api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		// no client timeout: streams run for the full stage duration and
		// the caller bounds them through ctx
		client = &http.Client{}
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		system:     opts.System,
		client:     client,
		fallback:   opts.Fallback,
		onFallback: opts.OnFallback,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) messages(prompt string) []chatMessage {
	var msgs []chatMessage
	if c.system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: c.system})
	}
	return append(msgs, chatMessage{Role: "user", Content: prompt})
}

func (c *Client) newRequest(ctx context.Context, payload chatRequest) (*http.Request, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// Stream runs a streaming completion, invoking onDelta for every content
// delta in arrival order.
func (c *Client) Stream(ctx context.Context, prompt string, opts StreamOptions, onDelta StreamFunc) (*Completion, error) {
	payload := chatRequest{
		Model:       c.model,
		Messages:    c.messages(prompt),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}
	req, err := c.newRequest(ctx, payload)
	if err != nil {
		return c.useFallback(ctx, prompt, opts, onDelta, "build_request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return c.useFallback(ctx, prompt, opts, onDelta, "http_request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return c.useFallback(ctx, prompt, opts, onDelta, fmt.Sprintf("http_%d", resp.StatusCode),
			fmt.Errorf("completion status %d", resp.StatusCode))
	}

	result := &Completion{}
	var content strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// tolerate individual malformed events, keep streaming
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			delta := chunk.Choices[0].Delta.Content
			content.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		if chunk.Usage != nil {
			result.Tokens = TokenUsage{
				Prompt:     chunk.Usage.PromptTokens,
				Completion: chunk.Usage.CompletionTokens,
				Total:      chunk.Usage.TotalTokens,
			}
		}
	}
	if err := scanner.Err(); err != nil {
		// partial output already forwarded; no fallback mid-stream
		return nil, fmt.Errorf("read stream: %w", err)
	}

	result.Content = content.String()
	return result, nil
}

// Complete runs a non-streaming completion.
func (c *Client) Complete(ctx context.Context, prompt string, opts StreamOptions) (*Completion, error) {
	payload := chatRequest{
		Model:       c.model,
		Messages:    c.messages(prompt),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	req, err := c.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("completion status %d", resp.StatusCode)
	}
	var out chatChunk
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}
	result := &Completion{Content: out.Choices[0].Message.Content}
	if out.Usage != nil {
		result.Tokens = TokenUsage{
			Prompt:     out.Usage.PromptTokens,
			Completion: out.Usage.CompletionTokens,
			Total:      out.Usage.TotalTokens,
		}
	}
	return result, nil
}

// useFallback recovers from a pre-stream failure: the secondary completer
// takes over when configured, otherwise one non-streaming attempt is made
// against the same backend (stream-endpoint failures do not always affect
// plain completions). The original cause wins when both fail.
func (c *Client) useFallback(ctx context.Context, prompt string, opts StreamOptions, onDelta StreamFunc, reason string, cause error) (*Completion, error) {
	if c.onFallback != nil {
		c.onFallback(reason, cause)
	}
	if c.fallback != nil {
		return c.fallback.Stream(ctx, prompt, opts, onDelta)
	}
	completion, err := c.Complete(ctx, prompt, opts)
	if err != nil {
		return nil, cause
	}
	if onDelta != nil && completion.Content != "" {
		onDelta(completion.Content)
	}
	return completion, nil
}

var _ Completer = (*Client)(nil)
