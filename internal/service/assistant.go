package service

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/port"
)

var tracer = otel.Tracer("service/assistant")

// Replies returned instead of a completion when the pipeline cannot produce one.
const (
	TimeoutReply = "I'm taking too long to respond. Please try again with a shorter message."
	ErrorReply   = "I'm experiencing some technical difficulties connecting to my neural network. Please try again in a moment, or ask me about a specific order ID or tracking number."
	EmptyReply   = "I apologize, but I couldn't generate a response. Please try again."
)

// AssistantConfig holds the completion parameters.
type AssistantConfig struct {
	Model         string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	HistoryWindow int
	Name          string
}

// Assistant orchestrates context aggregation, enrichment, prompt assembly
// and the completion call.
type Assistant struct {
	contexts   *ContextBuilder
	enrichers  *Enrichers
	completion port.CompletionCaller
	cfg        AssistantConfig
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAssistant creates the assistant service with all dependencies injected.
func NewAssistant(
	contexts *ContextBuilder,
	enrichers *Enrichers,
	completion port.CompletionCaller,
	cfg AssistantConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Assistant {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.HistoryWindow < 0 {
		cfg.HistoryWindow = 0
	}
	return &Assistant{
		contexts:   contexts,
		enrichers:  enrichers,
		completion: completion,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// BuildPrompt gathers the context blob and the enrichment sections for
// message and returns the system prompt.
func (a *Assistant) BuildPrompt(ctx context.Context, message string) string {
	blob := a.contexts.Build(ctx, message)

	return BuildSystemPrompt(a.cfg.Name, PromptSections{
		RelevantData: blob,
		DelayRisk:    a.enrichers.DelayRisk(ctx, blob),
		Business:     a.enrichers.Business(ctx, message),
		Visual:       a.enrichers.Visual(message),
	})
}

// GetReply answers message given the prior conversation. It never fails:
// any error from the completion call is turned into a fallback reply.
func (a *Assistant) GetReply(ctx context.Context, message string, history []domain.ConversationTurn) string {
	ctx, span := tracer.Start(ctx, "Assistant.GetReply")
	defer span.End()

	start := time.Now()
	defer func() {
		a.metrics.RecordRequestDuration("assistant", time.Since(start))
	}()

	prompt := a.BuildPrompt(ctx, message)

	req := &domain.CompletionRequest{
		Model:       a.cfg.Model,
		Messages:    a.messages(prompt, message, history),
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}

	callCtx := ctx
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	completionStart := time.Now()
	resp, err := a.completion.Complete(callCtx, req)
	a.metrics.RecordRequestDuration("completion", time.Since(completionStart))

	if err != nil {
		span.RecordError(err)
		a.logger.Error("completion call failed",
			zap.String("model", a.cfg.Model),
			zap.Error(err),
		)
		a.metrics.IncrExternalError("openrouter")
		if isTimeout(err) {
			return a.fallback(observability.FallbackTimeout, TimeoutReply)
		}
		return a.fallback(observability.FallbackError, ErrorReply)
	}

	a.metrics.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	span.SetAttributes(attribute.Int("llm.tokens", resp.Usage.TotalTokens))

	if strings.TrimSpace(resp.Content) == "" {
		return a.fallback(observability.FallbackEmpty, EmptyReply)
	}

	a.metrics.IncrRequest("success")
	return resp.Content
}

// messages builds [system, last N history turns, user].
func (a *Assistant) messages(prompt, message string, history []domain.ConversationTurn) []domain.ConversationTurn {
	if n := a.cfg.HistoryWindow; len(history) > n {
		history = history[len(history)-n:]
	}

	out := make([]domain.ConversationTurn, 0, len(history)+2)
	out = append(out, domain.ConversationTurn{Role: domain.RoleSystem, Content: prompt})
	out = append(out, history...)
	out = append(out, domain.ConversationTurn{Role: domain.RoleUser, Content: message})
	return out
}

func (a *Assistant) fallback(reason, reply string) string {
	a.metrics.IncrRequest("fallback")
	a.metrics.IncrFallback(reason)
	return reply
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te *domain.ErrTimeout
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
