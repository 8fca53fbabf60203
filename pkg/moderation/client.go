package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/profepulse/profepulse-api/pkg/middleware/requestid"
)

// Instruction is sent with every classification request.
const Instruction = "You moderate student reviews of university professors. " +
	"Answer APPROVED if the review is respectful and on topic, or REJECTED if it contains insults, " +
	"harassment, hate speech, personal data or spam. Answer with a single word."

const (
	maxRetries   = 2
	initialDelay = 500 * time.Millisecond
	maxBodyBytes = 1 << 20
)

var (
	// ErrUnavailable means the classifier could not be reached or answered with an error status.
	ErrUnavailable = errors.New("moderation service unavailable")
	// ErrUnexpectedAnswer means the classifier replied with something other than a verdict.
	ErrUnexpectedAnswer = errors.New("unexpected moderation answer")
)

// Verdict is the categorical answer of the classifier.
type Verdict string

const (
	VerdictApproved Verdict = "APPROVED"
	VerdictRejected Verdict = "REJECTED"
)

// Config configures the outbound classifier.
type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	HTTPClient *http.Client
}

// Client talks to a chat-completions compatible classification endpoint.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retryDelay  time.Duration
}

// NewClient builds a rate limited client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		httpClient:  httpClient,
		rateLimiter: rate.NewLimiter(limit, cfg.RateBurst),
		retryDelay:  initialDelay,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify submits text with the fixed instruction and returns the verdict.
// Transport failures wrap ErrUnavailable; any other answer wraps ErrUnexpectedAnswer.
func (c *Client) Classify(ctx context.Context, text string) (Verdict, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: Instruction},
			{Role: "user", Content: text},
		},
		MaxTokens: 3,
	})
	if err != nil {
		return "", fmt.Errorf("encode moderation request: %w", err)
	}

	var resp chatResponse
	if err := c.doRequest(ctx, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUnexpectedAnswer)
	}
	return ParseVerdict(resp.Choices[0].Message.Content)
}

// ParseVerdict normalises a raw answer such as " approved." into a Verdict.
func ParseVerdict(raw string) (Verdict, error) {
	answer := strings.ToUpper(strings.Trim(strings.TrimSpace(raw), ".!\"'"))
	switch Verdict(answer) {
	case VerdictApproved, VerdictRejected:
		return Verdict(answer), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnexpectedAnswer, raw)
	}
}

func (c *Client) doRequest(ctx context.Context, payload []byte, out interface{}) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create moderation request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		if id := requestid.FromContext(ctx); id != "" {
			req.Header.Set(requestid.Header, id)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		res.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", res.StatusCode)
			continue
		case res.StatusCode >= 300:
			return fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, strings.TrimSpace(string(body)))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnexpectedAnswer, err)
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
