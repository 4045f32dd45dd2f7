package domain

// ============================================================
// Conversation
// ============================================================

// Conversation roles accepted by the completion endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one message of the caller-owned chat history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ============================================================
// Chat API — request/response of POST /v1/chat
// ============================================================

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message        string             `json:"message"`
	History        []ConversationTurn `json:"history,omitempty"`
	ConversationID string             `json:"conversationId,omitempty"`
}

// ChatMessage is a single assistant message returned to the client.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
}

// ChatResponse is the body returned by POST /v1/chat.
type ChatResponse struct {
	ConversationID string       `json:"conversationId"`
	Message        *ChatMessage `json:"message"`
}

// PredictionRequest is the body of POST /v1/predictions.
type PredictionRequest struct {
	OrderIDs []string `json:"orderIds"`
}

// ============================================================
// Completion endpoint (OpenAI-compatible chat completions)
// ============================================================

// CompletionRequest is sent to the chat-completion endpoint.
type CompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []ConversationTurn `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

// TokenUsage tracks LLM token consumption for cost monitoring.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the reply extracted from the first choice.
type CompletionResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}
