package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/internal/cache"
	"github.com/BaSui01/voxflow/types"
)

const keyPrefix = "session:"

// Store 会话存储。并发写同一会话时采用后写覆盖语义。
type Store struct {
	cache  cache.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore 创建会话存储。ttl 为 0 时默认一小时。
func NewStore(c cache.Store, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		cache:  c,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "conversation")),
	}
}

// Create 创建新会话并返回会话 ID。
func (s *Store) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	conv := types.NewConversation(id)

	if err := s.save(ctx, conv); err != nil {
		return "", err
	}

	s.logger.Info("session created", zap.String("session_id", id))
	return id, nil
}

// Get 返回会话历史。第二个返回值表示会话是否存在。
func (s *Store) Get(ctx context.Context, sessionID string) (*types.Conversation, bool) {
	var conv types.Conversation
	if err := cache.GetJSON(ctx, s.cache, keyPrefix+sessionID, &conv); err != nil {
		return nil, false
	}
	return &conv, true
}

// AddMessage 向会话追加一条消息并重置过期时间。
// 会话不存在或已过期时自动重建,丢失的历史不再恢复。
func (s *Store) AddMessage(ctx context.Context, sessionID string, role types.Role, content string) (*types.Conversation, error) {
	if !role.Valid() {
		return nil, types.Newf(types.ErrInvalidRequest, "invalid message role: %q", role)
	}

	conv, ok := s.Get(ctx, sessionID)
	if !ok {
		s.logger.Warn("session missing on write, recreating",
			zap.String("session_id", sessionID))
		conv = types.NewConversation(sessionID)
	}

	conv.Append(role, content)
	if err := s.save(ctx, conv); err != nil {
		return nil, err
	}

	return conv, nil
}

// Touch 重新持久化会话以刷新过期时间,不修改内容。
func (s *Store) Touch(ctx context.Context, sessionID string) {
	if conv, ok := s.Get(ctx, sessionID); ok {
		_ = s.save(ctx, conv)
	}
}

// Delete 删除会话。会话不存在时静默成功。
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.cache.Delete(ctx, keyPrefix+sessionID); err != nil {
		return err
	}
	s.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

func (s *Store) save(ctx context.Context, conv *types.Conversation) error {
	return cache.SetJSON(ctx, s.cache, keyPrefix+conv.SessionID, conv, s.ttl)
}
