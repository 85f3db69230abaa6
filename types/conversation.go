package types

import "time"

// Conversation 一个会话的完整状态。SessionID 是全局唯一的查找键；
// Messages 按真实轮次顺序排列；UpdatedAt 在每次追加消息时刷新。
type Conversation struct {
	SessionID string         `json:"session_id"`
	Messages  []Message      `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}

// NewConversation 创建空会话。
func NewConversation(sessionID string) *Conversation {
	now := time.Now()
	return &Conversation{
		SessionID: sessionID,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]any),
	}
}

// Append 追加一条消息并刷新 UpdatedAt。
func (c *Conversation) Append(role Role, content string) Message {
	msg := NewMessage(role, content)
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	return msg
}

// ProcessingMetrics 单轮语音处理的各阶段耗时与资源消耗，用于可观测性。
type ProcessingMetrics struct {
	TranscriptionTime float64 `json:"transcription_time"`
	LLMTime           float64 `json:"llm_time"`
	TTSTime           float64 `json:"tts_time"`
	TotalTime         float64 `json:"total_time"`
	TokensUsed        int     `json:"tokens_used"`
	CacheHit          bool    `json:"cache_hit"`
}
