package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/intent"
	"github.com/arkio/order-assistant-go/internal/service"
)

func TestGetReply_Success(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.completion.complete = func(context.Context) (*domain.CompletionResponse, error) {
		return &domain.CompletionResponse{
			Content: "Your order is on its way.",
			Usage:   domain.TokenUsage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
		}, nil
	}

	reply := f.assistant.GetReply(context.Background(), "hello there", nil)
	if reply != "Your order is on its way." {
		t.Fatalf("unexpected reply %q", reply)
	}

	if got := f.metrics.CounterValue("requests", "success"); got != 1 {
		t.Errorf("expected 1 successful request, got %v", got)
	}
	if got := f.metrics.CounterValue("tokens", "prompt"); got != 120 {
		t.Errorf("expected 120 prompt tokens, got %v", got)
	}

	req := f.completion.requests[0]
	if req.Model != "test/model" || req.MaxTokens != 1000 || req.Temperature != 0.7 {
		t.Errorf("unexpected completion parameters: %+v", req)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != domain.RoleSystem || req.Messages[1].Role != domain.RoleUser {
		t.Errorf("unexpected roles %q, %q", req.Messages[0].Role, req.Messages[1].Role)
	}
	if strings.Contains(req.Messages[0].Content, "RELEVANT DATA FROM DATABASE") {
		t.Error("expected no data section when nothing matched")
	}
	if f.store.calls() != 0 {
		t.Errorf("expected no store reads, got %d", f.store.calls())
	}
}

func TestGetReply_TimeoutFallback(t *testing.T) {
	cfg := defaultConfig()
	cfg.Timeout = 20 * time.Millisecond

	f := newFixture(t, intent.DefaultTable(), cfg)
	f.completion.complete = func(ctx context.Context) (*domain.CompletionResponse, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("completion call: %w", ctx.Err())
	}

	reply := f.assistant.GetReply(context.Background(), "hello", nil)
	if reply != service.TimeoutReply {
		t.Fatalf("expected timeout reply, got %q", reply)
	}
	if got := f.metrics.CounterValue("fallbacks", observability.FallbackTimeout); got != 1 {
		t.Errorf("expected 1 timeout fallback, got %v", got)
	}
	if got := f.metrics.CounterValue("requests", "fallback"); got != 1 {
		t.Errorf("expected 1 fallback request, got %v", got)
	}
}

func TestGetReply_ErrorFallback(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.completion.complete = func(context.Context) (*domain.CompletionResponse, error) {
		return nil, &domain.ErrExternalService{Service: "openrouter", Err: errors.New("status 502")}
	}

	reply := f.assistant.GetReply(context.Background(), "hello", nil)
	if reply != service.ErrorReply {
		t.Fatalf("expected error reply, got %q", reply)
	}
	if got := f.metrics.CounterValue("fallbacks", observability.FallbackError); got != 1 {
		t.Errorf("expected 1 error fallback, got %v", got)
	}
	if got := f.metrics.CounterValue("external_errors", "openrouter"); got != 1 {
		t.Errorf("expected 1 external error, got %v", got)
	}
}

func TestGetReply_CircuitOpenFallback(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.completion.complete = func(context.Context) (*domain.CompletionResponse, error) {
		return nil, &domain.ErrCircuitOpen{Service: "openrouter"}
	}

	if reply := f.assistant.GetReply(context.Background(), "hello", nil); reply != service.ErrorReply {
		t.Fatalf("expected error reply, got %q", reply)
	}
}

func TestGetReply_EmptyContentFallback(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.completion.complete = func(context.Context) (*domain.CompletionResponse, error) {
		return &domain.CompletionResponse{Content: "  "}, nil
	}

	reply := f.assistant.GetReply(context.Background(), "hello", nil)
	if reply != service.EmptyReply {
		t.Fatalf("expected empty reply fallback, got %q", reply)
	}
	if got := f.metrics.CounterValue("fallbacks", observability.FallbackEmpty); got != 1 {
		t.Errorf("expected 1 empty fallback, got %v", got)
	}
}

func TestGetReply_HistoryWindow(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())

	var history []domain.ConversationTurn
	for i := 0; i < 15; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history = append(history, domain.ConversationTurn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	f.assistant.GetReply(context.Background(), "latest question", history)

	msgs := f.completion.requests[0].Messages
	if len(msgs) != 12 {
		t.Fatalf("expected system + 10 history + user, got %d messages", len(msgs))
	}
	if msgs[1].Content != "turn 5" {
		t.Errorf("expected window to start at turn 5, got %q", msgs[1].Content)
	}
	if msgs[10].Content != "turn 14" {
		t.Errorf("expected window to end at turn 14, got %q", msgs[10].Content)
	}
	if last := msgs[11]; last.Role != domain.RoleUser || last.Content != "latest question" {
		t.Errorf("unexpected final message %+v", last)
	}
}

func TestGetReply_ShortHistoryKeptWhole(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}

	f.assistant.GetReply(context.Background(), "and now?", history)

	if n := len(f.completion.requests[0].Messages); n != 4 {
		t.Fatalf("expected 4 messages, got %d", n)
	}
}

func TestBuildPrompt_StatusOverflow(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.store.find = func(q domain.OrderQuery) (*domain.OrderPage, error) {
		rows := make([]domain.Order, q.Limit)
		for i := range rows {
			rows[i] = order(fmt.Sprintf("OD%d", 100+i), domain.StatusDelivered, 500)
		}
		return &domain.OrderPage{Orders: rows, Total: 7}, nil
	}

	prompt := f.assistant.BuildPrompt(context.Background(), "show me delivered orders")

	if !strings.Contains(prompt, `Found 7 orders with status "Delivered":`) {
		t.Errorf("expected status header with exact count, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, "...and 2 more orders.") {
		t.Errorf("expected overflow suffix, got:\n%s", prompt)
	}
	if got := f.metrics.CounterValue("intent_matches", string(intent.KindStatus)); got != 1 {
		t.Errorf("expected 1 status match, got %v", got)
	}
}

func TestBuildPrompt_Statistics(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.store.find = func(q domain.OrderQuery) (*domain.OrderPage, error) {
		return &domain.OrderPage{Orders: []domain.Order{
			order("OD1", domain.StatusDelivered, 100),
			order("OD2", domain.StatusInTransit, 200),
			order("OD3", domain.StatusCancelled, 300),
		}}, nil
	}

	prompt := f.assistant.BuildPrompt(context.Background(), "give me the order statistics")

	for _, want := range []string{"Total Orders: 3", "Total Revenue: ₹600", "Average Order Value: ₹200", "Footwear: 3"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected %q in prompt", want)
		}
	}
}

func TestBuildPrompt_StopWordsNeverSearched(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())

	f.assistant.BuildPrompt(context.Background(), "show me the brand Nike")

	if len(f.store.queries) != 1 {
		t.Fatalf("expected one product lookup, got %d", len(f.store.queries))
	}
	q := f.store.queries[0]
	if len(q.AnyOf) != 3 || q.AnyOf[0].Value != "Nike" {
		t.Errorf("expected lookup for Nike only, got %+v", q.AnyOf)
	}
}

func TestBuildPrompt_LookupFailureContributesNothing(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.store.find = func(q domain.OrderQuery) (*domain.OrderPage, error) {
		if q.CountExact {
			return nil, errors.New("connection refused")
		}
		return &domain.OrderPage{Orders: []domain.Order{order("OD9", domain.StatusPacked, 50)}}, nil
	}

	prompt := f.assistant.BuildPrompt(context.Background(), "show recent delivered orders")

	if strings.Contains(prompt, "with status") {
		t.Error("expected failed status lookup to be left out")
	}
	if !strings.Contains(prompt, "Recent orders:") {
		t.Error("expected recent section to survive a sibling failure")
	}
	if got := f.metrics.CounterValue("external_errors", "order_store"); got != 1 {
		t.Errorf("expected 1 order store error, got %v", got)
	}
}

func TestBuildPrompt_Idempotent(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.store.find = func(q domain.OrderQuery) (*domain.OrderPage, error) {
		return &domain.OrderPage{Orders: []domain.Order{
			order("OD1", domain.StatusDelivered, 100),
			order("OD2", domain.StatusDelivered, 250),
		}, Total: 2}, nil
	}

	msg := "recent delivered orders and stats"
	first := f.assistant.BuildPrompt(context.Background(), msg)
	second := f.assistant.BuildPrompt(context.Background(), msg)

	if first != second {
		t.Error("expected identical prompts for identical store state")
	}
	sections := strings.Count(first, service.SectionSeparator)
	if sections != 2 {
		t.Errorf("expected 3 sections joined by 2 separators, got %d", sections)
	}
}

func TestBuildPrompt_SectionsKeepEvaluationOrder(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.store.find = func(q domain.OrderQuery) (*domain.OrderPage, error) {
		if len(q.Filters) > 0 && q.Filters[0].Column == "order_id" {
			time.Sleep(50 * time.Millisecond)
			return &domain.OrderPage{Orders: []domain.Order{order("OD1001", domain.StatusShipped, 300)}, Total: 1}, nil
		}
		return &domain.OrderPage{Orders: []domain.Order{order("OD2002", domain.StatusDelivered, 120)}, Total: 1}, nil
	}

	prompt := f.assistant.BuildPrompt(context.Background(), "OD1001 and recent orders")

	found := strings.Index(prompt, "Found order:")
	recent := strings.Index(prompt, "Recent orders:")
	if found < 0 || recent < 0 {
		t.Fatalf("expected both sections, got:\n%s", prompt)
	}
	if found > recent {
		t.Error("expected identifier section before the faster recent section")
	}
	if f.store.calls() != 2 {
		t.Errorf("expected 2 store reads, got %d", f.store.calls())
	}
}

func TestBuildPrompt_EnrichmentFailureSwallowed(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.insights.err = errors.New("insights unavailable")

	prompt := f.assistant.BuildPrompt(context.Background(), "how is revenue trending")

	if strings.Contains(prompt, "BUSINESS INTELLIGENCE") {
		t.Error("expected dashboard to be left out")
	}
	if !strings.Contains(prompt, "RESPONSE GUIDELINES") {
		t.Error("expected prompt to still be built")
	}
	if got := f.metrics.CounterValue("enrichment_failures", service.EnricherBusiness); got != 1 {
		t.Errorf("expected 1 business enrichment failure, got %v", got)
	}
}

func TestBuildPrompt_VisualHelp(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())

	prompt := f.assistant.BuildPrompt(context.Background(), "can you scan my receipt")

	if !strings.Contains(prompt, "VISUAL") {
		t.Errorf("expected visual help block, got:\n%s", prompt)
	}
}

func storeWithOrder(id string) func(q domain.OrderQuery) (*domain.OrderPage, error) {
	return func(q domain.OrderQuery) (*domain.OrderPage, error) {
		if len(q.Filters) > 0 && q.Filters[0].Column == "order_id" {
			return &domain.OrderPage{Orders: []domain.Order{order(id, domain.StatusInTransit, 900)}}, nil
		}
		return &domain.OrderPage{}, nil
	}
}

func TestBuildPrompt_DefaultPredictionPatternIsInert(t *testing.T) {
	f := newFixture(t, intent.DefaultTable(), defaultConfig())
	f.store.find = storeWithOrder("OD1001")

	prompt := f.assistant.BuildPrompt(context.Background(), "details for OD1001")

	if !strings.Contains(prompt, "**Order: OD1001**") {
		t.Fatalf("expected order block in prompt, got:\n%s", prompt)
	}
	if len(f.predictor.ids) != 0 {
		t.Errorf("expected no prediction call, got %v", f.predictor.ids)
	}
	if strings.Contains(prompt, "PREDICTIVE INTELLIGENCE") {
		t.Error("expected no delay-risk block")
	}
}

func TestBuildPrompt_DelayRiskWithLabelPattern(t *testing.T) {
	table := intent.DefaultTable()
	table.PredictionIDPattern = `\*\*Order: ([^*\s]+)\*\*`

	f := newFixture(t, table, defaultConfig())
	f.store.find = storeWithOrder("OD1001")
	f.predictor.preds = []domain.DelayPrediction{{
		OrderID:               "OD1001",
		DelayProbability:      75,
		RiskFactors:           []domain.RiskFactor{{Type: "overdue", Weight: 45}},
		PredictedDeliveryDate: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
		Recommendations:       []string{"Contact the carrier"},
	}}

	prompt := f.assistant.BuildPrompt(context.Background(), "details for OD1001")

	if len(f.predictor.ids) != 1 || len(f.predictor.ids[0]) != 1 || f.predictor.ids[0][0] != "OD1001" {
		t.Fatalf("expected prediction for OD1001, got %v", f.predictor.ids)
	}
	if !strings.Contains(prompt, "PREDICTIVE INTELLIGENCE ALERT") || !strings.Contains(prompt, "Order OD1001: 75% delay risk") {
		t.Errorf("expected delay alert, got:\n%s", prompt)
	}
	if strings.Index(prompt, "RELEVANT DATA") > strings.Index(prompt, "PREDICTIVE INTELLIGENCE") {
		t.Error("expected data section before the delay-risk block")
	}
}

func TestBuildPrompt_DelayRiskFailureSwallowed(t *testing.T) {
	table := intent.DefaultTable()
	table.PredictionIDPattern = `\*\*Order: ([^*\s]+)\*\*`

	f := newFixture(t, table, defaultConfig())
	f.store.find = storeWithOrder("OD1001")
	f.predictor.err = errors.New("boom")

	prompt := f.assistant.BuildPrompt(context.Background(), "details for OD1001")

	if strings.Contains(prompt, "PREDICTIVE INTELLIGENCE") {
		t.Error("expected delay-risk block to be left out")
	}
	if got := f.metrics.CounterValue("enrichment_failures", service.EnricherDelayRisk); got != 1 {
		t.Errorf("expected 1 delay-risk enrichment failure, got %v", got)
	}
}
