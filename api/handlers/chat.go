package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/conversation"
	"github.com/BaSui01/voxflow/internal/metrics"
	"github.com/BaSui01/voxflow/llm"
	"github.com/BaSui01/voxflow/types"
)

// =============================================================================
// 💬 文本对话 Handler
// =============================================================================

// ChatRequest 对话请求
type ChatRequest struct {
	// 用户文本
	Text string `json:"text"`
	// 会话 ID,为空时自动创建新会话
	SessionID string `json:"session_id,omitempty"`
	// 是否使用回复缓存,默认 true
	UseCache *bool `json:"use_cache,omitempty"`
}

// ChatResponse 对话响应
type ChatResponse struct {
	Response  string         `json:"response"`
	SessionID string         `json:"session_id"`
	CacheHit  bool           `json:"cache_hit"`
	Elapsed   float64        `json:"elapsed"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ChatHandler 文本对话处理器
type ChatHandler struct {
	sessions  *conversation.Store
	generator *llm.Generator
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(sessions *conversation.Store, generator *llm.Generator, collector *metrics.Collector, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		sessions:  sessions,
		generator: generator,
		collector: collector,
		logger:    logger.With(zap.String("handler", "chat")),
	}
}

// HandleChat 处理 POST /api/v1/chat。
// 把用户文本追加到会话历史,基于完整历史生成回复,再把回复写回历史。
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	text := sanitizeText(req.Text)
	if text == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "text is required", h.logger)
		return
	}

	ctx := r.Context()
	sessionID := req.SessionID
	if sessionID == "" {
		id, err := h.sessions.Create(ctx)
		if err != nil {
			WriteError(w, types.NewError(types.ErrInternalError, "failed to create session").
				WithCause(err), h.logger)
			return
		}
		sessionID = id
	} else if err := validateSessionID(sessionID); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	conv, err := h.sessions.AddMessage(ctx, sessionID, types.RoleUser, text)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	useCache := req.UseCache == nil || *req.UseCache

	genStart := time.Now()
	result, err := h.generator.Generate(ctx, conv.Messages, useCache)
	if err != nil {
		h.collector.RecordStageFailure("generation", string(types.GetErrorCode(err)))
		WriteError(w, err, h.logger)
		return
	}
	h.collector.ObserveStage("generation", time.Since(genStart))
	h.collector.RecordCacheEvent("llm", result.CacheHit)
	if tokens := result.TokensUsed(); tokens > 0 {
		provider, _ := result.Metadata["provider"].(string)
		model, _ := result.Metadata["model"].(string)
		h.collector.RecordTokens(provider, model, tokens)
	}

	if _, err := h.sessions.AddMessage(ctx, sessionID, types.RoleAssistant, result.Reply); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, ChatResponse{
		Response:  result.Reply,
		SessionID: sessionID,
		CacheHit:  result.CacheHit,
		Elapsed:   time.Since(start).Seconds(),
		Metadata:  result.Metadata,
	})
}
