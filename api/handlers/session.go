package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/conversation"
	"github.com/BaSui01/voxflow/types"
)

// =============================================================================
// 💬 会话 Handler
// =============================================================================

// SessionHandler 会话管理处理器
type SessionHandler struct {
	sessions *conversation.Store
	logger   *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *conversation.Store, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger.With(zap.String("handler", "session")),
	}
}

// HandleCreate 处理 POST /api/v1/session,创建新会话。
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessions.Create(r.Context())
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to create session").
			WithCause(err), h.logger)
		return
	}

	WriteCreated(w, map[string]string{"session_id": id})
}

// HandleGet 处理 GET /api/v1/conversation/{id},返回会话历史。
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validateSessionID(id); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	conv, ok := h.sessions.Get(r.Context(), id)
	if !ok {
		WriteError(w, types.Newf(types.ErrSessionNotFound, "session %s not found", id), h.logger)
		return
	}

	WriteSuccess(w, conv)
}

// HandleDelete 处理 DELETE /api/v1/conversation/{id}。
// 会话不存在时同样返回成功。
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validateSessionID(id); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	if err := h.sessions.Delete(r.Context(), id); err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to delete session").
			WithCause(err), h.logger)
		return
	}

	WriteSuccess(w, map[string]string{"session_id": id, "status": "deleted"})
}
