// Package client holds the outbound HTTP clients for services the assistant
// depends on.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/infra/resilience"
	"github.com/arkio/order-assistant-go/internal/port"
)

var tracer = otel.Tracer("client")

const completionService = "openrouter"

// CompletionOptions identifies the caller to the completion endpoint.
type CompletionOptions struct {
	BaseURL string // e.g. https://openrouter.ai/api/v1
	APIKey  string
	Referer string // sent as HTTP-Referer
	Title   string // sent as X-Title
}

// CompletionClient calls an OpenAI-compatible chat-completions endpoint.
type CompletionClient struct {
	httpClient *http.Client
	opts       CompletionOptions
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	tokens     port.TokenCounter
}

// NewCompletionClient creates a CompletionClient. tokens may be nil, in which
// case missing usage is reported as zero.
func NewCompletionClient(httpClient *http.Client, opts CompletionOptions, cb *gobreaker.CircuitBreaker, cfg resilience.Config, tokens port.TokenCounter) *CompletionClient {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if cfg.Retryable == nil {
		cfg.Retryable = isTransient
	}
	return &CompletionClient{
		httpClient: httpClient,
		opts:       opts,
		cb:         cb,
		cfg:        cfg,
		tokens:     tokens,
	}
}

type completionChoice struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

type completionBody struct {
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   *domain.TokenUsage `json:"usage"`
}

type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("completion API returned status %d: %s", e.StatusCode, e.Body)
}

// isTransient retries network failures and 5xx/429 responses only.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Complete sends req and returns the first choice. Non-2xx responses yield
// domain.ErrExternalService; a body without choices[0].message yields
// domain.ErrInvalidResponse.
func (c *CompletionClient) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	ctx, span := tracer.Start(ctx, "CompletionClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	var out *domain.CompletionResponse
	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			resp, err := c.call(ctx, payload)
			if err != nil {
				return err
			}
			out = resp
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var invalid *domain.ErrInvalidResponse
		if errors.As(err, &invalid) {
			return nil, err
		}
		if err = resilience.BreakerError(completionService, err); errors.As(err, new(*domain.ErrCircuitOpen)) {
			return nil, err
		}
		return nil, &domain.ErrExternalService{Service: completionService, Err: err}
	}

	if out.Usage.TotalTokens == 0 && c.tokens != nil {
		out.Usage = c.estimate(req, out.Content)
	}
	span.SetAttributes(attribute.Int("llm.total_tokens", out.Usage.TotalTokens))
	return out, nil
}

func (c *CompletionClient) call(ctx context.Context, payload []byte) (*domain.CompletionResponse, error) {
	url := c.opts.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.opts.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.opts.Referer)
	}
	if c.opts.Title != "" {
		httpReq.Header.Set("X-Title", c.opts.Title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http call to completion API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var decoded completionBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &domain.ErrInvalidResponse{Service: completionService, Reason: "undecodable body: " + err.Error()}
	}
	if len(decoded.Choices) == 0 {
		return nil, &domain.ErrInvalidResponse{Service: completionService, Reason: "missing choices[0]"}
	}
	msg := decoded.Choices[0].Message
	if msg == nil {
		return nil, &domain.ErrInvalidResponse{Service: completionService, Reason: "missing choices[0].message"}
	}

	out := &domain.CompletionResponse{Model: decoded.Model}
	if msg.Content != nil {
		out.Content = *msg.Content
	}
	if decoded.Usage != nil {
		out.Usage = *decoded.Usage
	}
	return out, nil
}

func (c *CompletionClient) estimate(req *domain.CompletionRequest, reply string) domain.TokenUsage {
	var prompt int
	for _, m := range req.Messages {
		prompt += c.tokens.Count(req.Model, m.Content)
	}
	completion := c.tokens.Count(req.Model, reply)
	return domain.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
