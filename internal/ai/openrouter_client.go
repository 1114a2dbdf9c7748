package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brody/brody-back/internal/logging"
	"github.com/brody/brody-back/internal/policy"
)

type OpenRouterClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Referrer   string
	Title      string
	Logger     *slog.Logger
}

// OpenRouterClient is the ChatInvoker for an OpenAI-compatible gateway. It
// calls /chat/completions first and falls back to /responses when the
// completion comes back empty.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	referrer   string
	title      string
	logger     *slog.Logger
}

func NewOpenRouterClient(config OpenRouterClientConfig) *OpenRouterClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://openrouter.ai/api/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	return &OpenRouterClient{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
		referrer:   strings.TrimSpace(config.Referrer),
		title:      strings.TrimSpace(config.Title),
		logger:     config.Logger,
	}
}

func (c *OpenRouterClient) Invoke(ctx context.Context, model string, request ChatRequest) ChatResult {
	logger := c.logger.With(logging.Model(model))
	if logger.Enabled(ctx, slog.LevelDebug) {
		logger.Debug("invoking model", slog.String("prompt", policy.RedactText(request.Prompt())))
	}

	text, err := c.chatCompletion(ctx, model, request)
	if err != nil {
		logger.Warn("chat completion failed", logging.Err(err))
		return NoContent()
	}
	if text != "" {
		return ChatResult{Text: text, Model: model}
	}

	logger.Debug("chat completion returned no content, trying responses endpoint")
	text, err = c.generateResponse(ctx, model, request)
	if err != nil {
		logger.Warn("responses call failed", logging.Err(err))
		return NoContent()
	}
	if text == "" {
		return NoContent()
	}
	return ChatResult{Text: text, Model: model}
}

func (c *OpenRouterClient) chatCompletion(ctx context.Context, model string, request ChatRequest) (string, error) {
	payload := map[string]any{
		"model":       model,
		"messages":    request.Messages(),
		"temperature": request.Temperature(),
		"max_tokens":  request.MaxTokens(),
	}

	var raw chatCompletionsResponse
	if err := c.post(ctx, "/chat/completions", payload, &raw); err != nil {
		return "", err
	}
	if len(raw.Choices) == 0 {
		return "", nil
	}
	return raw.Choices[0].Message.Content.Text(), nil
}

func (c *OpenRouterClient) generateResponse(ctx context.Context, model string, request ChatRequest) (string, error) {
	payload := map[string]any{
		"model":             model,
		"input":             request.Prompt(),
		"max_output_tokens": request.MaxTokens(),
	}

	var raw responsesResponse
	if err := c.post(ctx, "/responses", payload, &raw); err != nil {
		return "", err
	}
	text, ok := raw.extractText()
	if !ok {
		return "", nil
	}
	return text, nil
}

func (c *OpenRouterClient) post(ctx context.Context, path string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal openrouter payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create openrouter request: %w", err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")
	if c.referrer != "" {
		httpRequest.Header.Set("HTTP-Referer", c.referrer)
	}
	if c.title != "" {
		httpRequest.Header.Set("X-Title", c.title)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("openrouter timeout: %w", err)
		}
		return fmt.Errorf("openrouter transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return fmt.Errorf("read openrouter body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return &providerHTTPError{
			Provider:   "openrouter",
			StatusCode: httpResponse.StatusCode,
			Message:    message,
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode openrouter response: %w", err)
	}
	return nil
}

type chatCompletionsResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string      `json:"role"`
			Content chatContent `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatContent is a message content that is either a plain string or a list
// of typed parts.
type chatContent struct {
	plain string
	parts []contentPart
}

type contentPart struct {
	Type string       `json:"type"`
	Text responseText `json:"text"`
}

func (c *chatContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &c.plain)
	case '[':
		return json.Unmarshal(trimmed, &c.parts)
	default:
		return nil
	}
}

func (c chatContent) Text() string {
	if plain := strings.TrimSpace(c.plain); plain != "" {
		return plain
	}
	return joinParts(c.parts)
}

// responseText is a part's text: either a string or {"value": "..."}.
type responseText string

func (t *responseText) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*t = responseText(value)
		return nil
	}
	if trimmed[0] == '{' {
		var wrapped struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return err
		}
		*t = responseText(wrapped.Value)
	}
	return nil
}

type responsesResponse struct {
	OutputText string               `json:"output_text"`
	Output     []responseOutputItem `json:"output"`
}

type responseOutputItem struct {
	Type    string        `json:"type"`
	Content []contentPart `json:"content"`
}

// extractText returns the top-level output_text when present, otherwise the
// text parts of message items joined by newlines. ok is false when neither
// shape carries text.
func (r responsesResponse) extractText() (string, bool) {
	if text := strings.TrimSpace(r.OutputText); text != "" {
		return text, true
	}
	parts := make([]contentPart, 0)
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		parts = append(parts, item.Content...)
	}
	text := joinParts(parts)
	return text, text != ""
}

func joinParts(parts []contentPart) string {
	fragments := make([]string, 0, len(parts))
	for _, part := range parts {
		text := strings.TrimSpace(string(part.Text))
		if text == "" {
			continue
		}
		fragments = append(fragments, text)
	}
	return strings.TrimSpace(strings.Join(fragments, "\n"))
}

type providerHTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}
