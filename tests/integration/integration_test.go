package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/handler"
	"github.com/arkio/order-assistant-go/internal/infra/cache"
	"github.com/arkio/order-assistant-go/internal/infra/client"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/infra/resilience"
	"github.com/arkio/order-assistant-go/internal/infra/supabase"
	"github.com/arkio/order-assistant-go/internal/infra/tokens"
	"github.com/arkio/order-assistant-go/internal/intent"
	"github.com/arkio/order-assistant-go/internal/service"
)

func orderRow(id string, status domain.OrderStatus) map[string]any {
	return map[string]any{
		"order_id":          id,
		"customer_name":     "Asha Rao",
		"customer_email":    "asha@example.com",
		"product_name":      "Running Shoes",
		"product_category":  "Footwear",
		"product_brand":     "Nike",
		"product_price":     2499,
		"quantity":          1,
		"total_amount":      2499,
		"order_status":      string(status),
		"order_date":        "2026-10-01T10:00:00Z",
		"expected_delivery": "2026-10-08",
		"tracking_number":   "TRK" + id,
		"carrier_name":      "BlueDart",
		"payment_method":    "UPI",
		"payment_status":    "Completed",
		"seller_name":       "ShoeHub",
	}
}

// newSupabaseServer fakes the PostgREST orders endpoint: identifier lookups
// find OD1001, delivered-status lookups report 7 matches, everything else
// is empty.
func newSupabaseServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/orders" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("apikey") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		q := r.URL.Query()
		rows := []map[string]any{}
		switch {
		case strings.Contains(q.Get("order_id"), "OD1001"):
			rows = append(rows, orderRow("OD1001", domain.StatusInTransit))
		case q.Get("order_status") == "eq.Delivered":
			for i := 0; i < 5; i++ {
				rows = append(rows, orderRow(fmt.Sprintf("OD20%d", i), domain.StatusDelivered))
			}
			w.Header().Set("Content-Range", "0-4/7")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}))
}

type completionServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []domain.CompletionRequest
	headers  []http.Header
}

func newCompletionServer(t *testing.T, respond func(w http.ResponseWriter)) *completionServer {
	t.Helper()
	cs := &completionServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req domain.CompletionRequest
		json.Unmarshal(body, &req)

		cs.mu.Lock()
		cs.requests = append(cs.requests, req)
		cs.headers = append(cs.headers, r.Header.Clone())
		cs.mu.Unlock()

		respond(w)
	}))
	return cs
}

func reply(content string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"model":"test/model","choices":[{"message":{"role":"assistant","content":%q}}],"usage":{"prompt_tokens":900,"completion_tokens":40,"total_tokens":940}}`, content)
	}
}

func newRouter(t *testing.T, supabaseURL, completionURL string, timeout time.Duration) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := resilience.Config{MaxRetries: 0, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 4}

	store := supabase.NewClient(
		&http.Client{Timeout: 5 * time.Second},
		supabaseURL, "anon-key", "", "orders",
		resilience.NewCircuitBreaker(t.Name()+"-supabase", metrics.SetBreakerState),
		cfg, logger,
	)
	completion := client.NewCompletionClient(
		&http.Client{Timeout: 5 * time.Second},
		client.CompletionOptions{BaseURL: completionURL, APIKey: "test-key", Referer: "http://localhost", Title: "ARKIO Order Tracker"},
		resilience.NewCircuitBreaker(t.Name()+"-openrouter", metrics.SetBreakerState),
		cfg, tokens.NewCounter(),
	)

	table := intent.DefaultTable()
	table.PredictionIDPattern = `\*\*Order: ([^*\s]+)\*\*`
	matcher, err := intent.NewMatcher(table)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	insightsCache := cache.New[*domain.BusinessInsights](time.Minute)
	t.Cleanup(insightsCache.Close)

	predictor := service.NewDelayPredictionService(store, func() time.Time {
		return time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	})
	insights := service.NewInsightsService(store, insightsCache, metrics, nil)

	assistant := service.NewAssistant(
		service.NewContextBuilder(store, matcher, resilience.NewBulkhead(cfg.MaxConcurrency), metrics, logger),
		service.NewEnrichers(matcher, predictor, insights, metrics, logger),
		completion,
		service.AssistantConfig{Model: "test/model", MaxTokens: 1000, Temperature: 0.7, Timeout: timeout, HistoryWindow: 10, Name: "ARKIO"},
		metrics,
		logger,
	)

	return handler.NewRouter(handler.Services{
		Assistant: assistant,
		Orders:    service.NewOrderService(store),
		Insights:  insights,
		Predictor: predictor,
		Store:     store,
	}, handler.Options{}, metrics, logger)
}

func postChat(t *testing.T, router http.Handler, message string) domain.ChatResponse {
	t.Helper()
	body, _ := json.Marshal(domain.ChatRequest{Message: message})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d. Body: %s", rec.Code, rec.Body.String())
	}
	var resp domain.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// TestIntegration_FullFlow runs a chat message through the real Supabase and
// completion clients against fake upstreams.
func TestIntegration_FullFlow(t *testing.T) {
	db := newSupabaseServer(t)
	defer db.Close()
	llm := newCompletionServer(t, reply("OD1001 is in transit with BlueDart."))
	defer llm.Close()

	router := newRouter(t, db.URL, llm.URL, 5*time.Second)

	resp := postChat(t, router, "Where is OD1001?")

	if resp.Message.Content != "OD1001 is in transit with BlueDart." {
		t.Errorf("unexpected reply %q", resp.Message.Content)
	}
	if len(llm.requests) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(llm.requests))
	}

	sent := llm.requests[0]
	if sent.Model != "test/model" || sent.MaxTokens != 1000 {
		t.Errorf("unexpected completion parameters %+v", sent)
	}
	system := sent.Messages[0].Content
	for _, want := range []string{
		"**RELEVANT DATA FROM DATABASE:**",
		"Found order:",
		"📦 **Order: OD1001**",
		"PREDICTIVE INTELLIGENCE",
	} {
		if !strings.Contains(system, want) {
			t.Errorf("expected %q in system prompt", want)
		}
	}

	h := llm.headers[0]
	if h.Get("Authorization") != "Bearer test-key" || h.Get("X-Title") != "ARKIO Order Tracker" {
		t.Errorf("unexpected completion headers %v", h)
	}
}

func TestIntegration_StatusOverflow(t *testing.T) {
	db := newSupabaseServer(t)
	defer db.Close()
	llm := newCompletionServer(t, reply("Seven orders were delivered."))
	defer llm.Close()

	router := newRouter(t, db.URL, llm.URL, 5*time.Second)

	postChat(t, router, "show delivered orders")

	system := llm.requests[0].Messages[0].Content
	if !strings.Contains(system, `Found 7 orders with status "Delivered":`) {
		t.Errorf("expected exact count in status header")
	}
	if !strings.Contains(system, "...and 2 more orders.") {
		t.Errorf("expected overflow suffix")
	}
}

func TestIntegration_UpstreamErrorFallback(t *testing.T) {
	db := newSupabaseServer(t)
	defer db.Close()
	llm := newCompletionServer(t, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer llm.Close()

	router := newRouter(t, db.URL, llm.URL, 5*time.Second)

	resp := postChat(t, router, "hello")
	if resp.Message.Content != service.ErrorReply {
		t.Errorf("expected error fallback, got %q", resp.Message.Content)
	}
}

func TestIntegration_TimeoutFallback(t *testing.T) {
	db := newSupabaseServer(t)
	defer db.Close()
	llm := newCompletionServer(t, func(w http.ResponseWriter) {
		time.Sleep(300 * time.Millisecond)
		reply("too late")(w)
	})
	defer llm.Close()

	router := newRouter(t, db.URL, llm.URL, 50*time.Millisecond)

	resp := postChat(t, router, "hello")
	if resp.Message.Content != service.TimeoutReply {
		t.Errorf("expected timeout fallback, got %q", resp.Message.Content)
	}
}

func TestIntegration_EmptyContentFallback(t *testing.T) {
	db := newSupabaseServer(t)
	defer db.Close()
	llm := newCompletionServer(t, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":null}}]}`)
	})
	defer llm.Close()

	router := newRouter(t, db.URL, llm.URL, 5*time.Second)

	resp := postChat(t, router, "hello")
	if resp.Message.Content != service.EmptyReply {
		t.Errorf("expected empty-content fallback, got %q", resp.Message.Content)
	}
}

func TestIntegration_GetOrder(t *testing.T) {
	db := newSupabaseServer(t)
	defer db.Close()

	router := newRouter(t, db.URL, "http://127.0.0.1:0", time.Second)

	for path, want := range map[string]int{
		"/v1/orders/OD1001": http.StatusOK,
		"/v1/orders/OD9999": http.StatusNotFound,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: expected %d, got %d", path, want, rec.Code)
		}
	}
}
