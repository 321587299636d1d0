// Package gpt implements the YandexGPT rewrite collaborator over its
// HTTP completion API.
package gpt

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
)

// ErrUnavailable is returned when the rewriter is disabled, lacks
// credentials, or has been switched off after repeated failures.
var ErrUnavailable = errors.New("rewriter unavailable")

// maxResponseBytes caps how much of an API response is read.
const maxResponseBytes = 1 * 1024 * 1024

const systemPrompt = "Ты редактор новостного Telegram-канала. Перепиши заголовок и описание " +
	"новости: коротко, живо, без канцелярита и без выдуманных фактов. " +
	`Ответь строго в JSON: {"title": "...", "description": "..."}`

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ModelConfig selects the model and generation parameters.
type ModelConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Result is a rewritten title and summary.
type Result struct {
	Title   string
	Summary string
}

// Client calls the YandexGPT completion endpoint. Rewrite is only ever
// called from the controller goroutine, so the failure counter needs no
// locking.
type Client struct {
	client   HTTPClient
	endpoint string
	apiKey   string
	folderID string
	model    ModelConfig
	timeout  time.Duration
	log      *slog.Logger

	errorThreshold    int
	consecutiveErrors int
}

// NewClient creates a Client. errorThreshold consecutive failures switch
// the client off until restart; 0 or less keeps it on regardless.
func NewClient(client HTTPClient, endpoint, apiKey, folderID string, model ModelConfig, timeout time.Duration, errorThreshold int, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		client:         client,
		endpoint:       endpoint,
		apiKey:         apiKey,
		folderID:       folderID,
		model:          model,
		timeout:        timeout,
		log:            log,
		errorThreshold: errorThreshold,
	}
}

// Available reports whether the client will attempt a rewrite.
func (c *Client) Available() bool {
	if c.apiKey == "" || c.folderID == "" {
		return false
	}
	return c.errorThreshold <= 0 || c.consecutiveErrors < c.errorThreshold
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []message         `json:"messages"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message message `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// Rewrite asks the model for a fresher title and summary. Any failure is
// non-fatal to the pipeline; callers fall back to the original text.
func (c *Client) Rewrite(ctx context.Context, title, summary string) (Result, error) {
	if !c.Available() {
		return Result{}, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := completionRequest{
		ModelURI: modelURI(c.folderID, c.model.Model),
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: c.model.Temperature,
			MaxTokens:   c.model.MaxTokens,
		},
		Messages: []message{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: fmt.Sprintf("Заголовок: %s\nОписание: %s", sanitizePromptInput(title), sanitizePromptInput(summary))},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("x-folder-id", c.folderID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, c.fail(fmt.Errorf("http post: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, c.fail(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, c.fail(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, firstLine(body)))
	}

	var cr completionResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return Result{}, c.fail(fmt.Errorf("decode response: %w", err))
	}
	if len(cr.Result.Alternatives) == 0 {
		return Result{}, c.fail(fmt.Errorf("no alternatives in response"))
	}

	res, err := parseReply(cr.Result.Alternatives[0].Message.Text)
	if err != nil {
		return Result{}, c.fail(err)
	}
	if IsLowQuality(res.Title) || IsLowQuality(res.Summary) {
		return Result{}, c.fail(fmt.Errorf("low quality reply"))
	}

	c.consecutiveErrors = 0
	return res, nil
}

// fail counts a consecutive failure and disables the client once the
// threshold is reached.
func (c *Client) fail(err error) error {
	c.consecutiveErrors++
	if c.errorThreshold > 0 && c.consecutiveErrors == c.errorThreshold {
		c.log.Warn("rewriter disabled after repeated failures",
			"consecutive_errors", c.consecutiveErrors)
	}
	return err
}

// modelURI maps the configured model alias to a full model URI.
func modelURI(folderID, model string) string {
	switch model {
	case "", "lite":
		model = "yandexgpt-lite"
	case "pro", "yandexgpt":
		model = "yandexgpt"
	}
	return fmt.Sprintf("gpt://%s/%s/latest", folderID, model)
}

// parseReply extracts the rewritten title and summary. The model is
// asked for JSON but occasionally wraps it in prose or code fences.
func parseReply(text string) (Result, error) {
	content := strings.TrimSpace(text)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		var parsed struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err == nil &&
			parsed.Title != "" && parsed.Description != "" {
			return Result{Title: strings.TrimSpace(parsed.Title), Summary: strings.TrimSpace(parsed.Description)}, nil
		}
	}

	// Plain-text fallback: first line is the title, the rest the summary.
	lines := strings.SplitN(content, "\n", 2)
	title := strings.TrimSpace(lines[0])
	if title == "" {
		return Result{}, fmt.Errorf("empty reply")
	}
	summary := ""
	if len(lines) > 1 {
		summary = strings.TrimSpace(lines[1])
	}
	if summary == "" {
		return Result{}, fmt.Errorf("reply has no summary")
	}
	return Result{Title: title, Summary: summary}, nil
}

// sanitizePromptInput flattens whitespace and strips control characters
// so feed content cannot break out of the prompt structure.
func sanitizePromptInput(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case r < 0x20 || r == 0x7f:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}
	s := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(s); len(runes) > 5000 {
		s = string(runes[:5000])
	}
	return s
}

func firstLine(body []byte) string {
	s := strings.TrimSpace(string(body))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
