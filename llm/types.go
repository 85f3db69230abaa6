package llm

import "context"

// ChatMessage 发往上游的单条消息,只携带角色与内容。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest chat completions 请求
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatUsage token 消耗统计
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatChoice 单条候选回复
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatResponse chat completions 响应
type ChatResponse struct {
	ID       string       `json:"id"`
	Provider string       `json:"provider,omitempty"`
	Model    string       `json:"model"`
	Choices  []ChatChoice `json:"choices"`
	Usage    *ChatUsage   `json:"usage,omitempty"`
}

// Text 返回首条候选的内容,无候选时返回空串。
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Provider LLM 提供者接口
type Provider interface {
	Name() string
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
