// Package completion talks to an OpenAI-compatible chat completions API.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatgate/internal/config"
	"chatgate/internal/constants"
	"chatgate/internal/logger"
	"chatgate/pkg/circuitbreaker"
	"chatgate/pkg/errors"
	"chatgate/pkg/metrics"
	"chatgate/pkg/retry"
)

const chatCompletionsPath = "/chat/completions"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Completer produces an answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Client struct {
	httpClient   *http.Client
	endpoint     string
	apiKey       string
	model        string
	systemPrompt string
	policy       retry.Policy
	cb           *circuitbreaker.Wrapper
	logger       logger.Logger
}

func NewClient(cfg config.CompletionConfig, cbCfg config.CircuitBreakerConfig, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		endpoint:     strings.TrimRight(cfg.BaseURL, "/") + chatCompletionsPath,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		policy:       retry.PolicyFromConfig(cfg.Retry),
		cb:           circuitbreaker.FromConfig("completion", cbCfg),
		logger:       log,
	}
}

// Breaker returns the client's circuit breaker, nil when breakers are disabled.
func (c *Client) Breaker() *circuitbreaker.Wrapper {
	return c.cb
}

// Complete sends prompt with the configured system prompt and returns the
// first choice. Failures surface as UNAVAILABLE.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveCompletionDuration(time.Since(start))
	}()

	messages := make([]Message, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: c.systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", errors.ErrInternal.WithCause(err)
	}

	var answer string
	err = retry.RetryWithCallback(ctx, c.policy, func() error {
		out, err := circuitbreaker.Execute(ctx, c.cb, func() (string, error) {
			return c.do(ctx, body)
		})
		if err != nil {
			return err
		}
		answer = out
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues("completion", "chat").Inc()
		c.logger.WarnwCtx(ctx, "Completion request failed, retrying",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues("error").Inc()
		return "", errors.ErrUnavailable.WithCause(err).WithDetail("service", "completion")
	}
	metrics.CompletionRequestsTotal.WithLabelValues("ok").Inc()
	return answer, nil
}

func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		statusErr := fmt.Errorf("completion api returned status: %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", statusErr
		}
		return "", retry.NewFatalError(statusErr)
	}

	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", retry.NewFatalError(fmt.Errorf("failed to decode response: %w", err))
	}
	if decoded.Error != nil {
		return "", retry.NewFatalError(fmt.Errorf("completion api error: %s", decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return "", retry.NewFatalError(fmt.Errorf("completion api returned no choices"))
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
