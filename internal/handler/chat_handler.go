package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/port"
)

// ============================================================
// Chat — POST /v1/chat
// ============================================================

func chatHandler(svc Replier, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat")
		defer span.End()

		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "assistant unavailable")
			return
		}

		var req domain.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		for _, turn := range req.History {
			switch turn.Role {
			case domain.RoleSystem, domain.RoleUser, domain.RoleAssistant:
			default:
				writeError(w, http.StatusBadRequest, "history role must be system, user or assistant")
				return
			}
		}

		convID := req.ConversationID
		if convID == "" {
			convID = uuid.New().String()
		}
		span.SetAttributes(
			attribute.String("conversation.id", convID),
			attribute.Int("history.turns", len(req.History)),
		)

		start := time.Now()
		reply := svc.GetReply(ctx, req.Message, req.History)
		latency := time.Since(start)

		logger.Debug("chat reply sent",
			zap.String("conversation_id", convID),
			zap.String("subject", SubjectFromContext(ctx)),
			zap.Duration("latency", latency),
		)

		writeJSON(w, http.StatusOK, domain.ChatResponse{
			ConversationID: convID,
			Message: &domain.ChatMessage{
				ID:        uuid.New().String(),
				Role:      domain.RoleAssistant,
				Content:   reply,
				Timestamp: time.Now().Format(time.RFC3339),
				LatencyMs: latency.Milliseconds(),
			},
		})
	}
}

// ============================================================
// Orders — GET /v1/orders/{orderId}
// ============================================================

func getOrderHandler(svc OrderGetter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/orders/{orderId}")
		defer span.End()

		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "order store unavailable")
			return
		}

		orderID := chi.URLParam(r, "orderId")
		span.SetAttributes(attribute.String("order.id", orderID))

		o, err := svc.GetOrder(ctx, orderID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// ============================================================
// Insights — GET /v1/insights
// ============================================================

func insightsHandler(svc port.InsightsProvider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/insights")
		defer span.End()

		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "insights unavailable")
			return
		}

		in, err := svc.GetInsights(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, in)
	}
}

// ============================================================
// Predictions — POST /v1/predictions
// ============================================================

func predictionsHandler(svc port.DelayPredictor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/predictions")
		defer span.End()

		if svc == nil {
			writeError(w, http.StatusServiceUnavailable, "predictions unavailable")
			return
		}

		var req domain.PredictionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.OrderIDs) == 0 {
			writeError(w, http.StatusBadRequest, "orderIds is required")
			return
		}
		span.SetAttributes(attribute.Int("orders", len(req.OrderIDs)))

		preds, err := svc.PredictDelays(ctx, req.OrderIDs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if preds == nil {
			preds = []domain.DelayPrediction{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"predictions": preds})
	}
}
