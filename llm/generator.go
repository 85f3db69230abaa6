package llm

import (
	"context"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/internal/cache"
	"github.com/BaSui01/voxflow/types"
)

// 注入到每轮对话最前面的系统人设。
const defaultSystemPrompt = "You are a helpful voice assistant. " +
	"Keep your answers concise and conversational, as they will be spoken aloud."

// GeneratorConfig 回复生成服务配置
type GeneratorConfig struct {
	// 系统人设,空值使用内置默认
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`

	// 采样温度
	Temperature float64 `yaml:"temperature" json:"temperature"`

	// 单次回复的 token 上限
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// 回复缓存过期时间
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// DefaultGeneratorConfig 返回默认生成配置
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		SystemPrompt: defaultSystemPrompt,
		Temperature:  0.7,
		MaxTokens:    1024,
		CacheTTL:     time.Hour,
	}
}

// Result 单次生成的结果
type Result struct {
	Reply    string         `json:"reply"`
	Metadata map[string]any `json:"metadata"`
	CacheHit bool           `json:"cache_hit"`
}

// TokensUsed 返回元数据中的 token 用量。
// 缓存命中的结果经过 JSON 反序列化,数字类型是 float64 而非 int。
func (r *Result) TokensUsed() int {
	switch v := r.Metadata["tokens_used"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Generator 带缓存的回复生成服务。
// 缓存键覆盖完整对话历史,任何一轮内容不同都视为不同上下文。
type Generator struct {
	provider Provider
	cache    cache.Store
	cfg      GeneratorConfig
	logger   *zap.Logger
}

// NewGenerator 创建回复生成服务。
func NewGenerator(provider Provider, c cache.Store, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	def := DefaultGeneratorConfig()
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = def.CacheTTL
	}

	return &Generator{
		provider: provider,
		cache:    c,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "llm")),
	}
}

// Generate 基于完整对话历史生成一条助手回复。
// useCache 为 false 时跳过读缓存,但结果仍会写入缓存。
func (g *Generator) Generate(ctx context.Context, history []types.Message, useCache bool) (*Result, error) {
	if len(history) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "conversation history is empty")
	}

	key := g.cacheKey(history)
	if useCache {
		var cached Result
		if err := cache.GetJSON(ctx, g.cache, key, &cached); err == nil {
			g.logger.Debug("llm cache hit", zap.String("key", key))
			cached.CacheHit = true
			return &cached, nil
		}
	}

	messages := make([]ChatMessage, 0, len(history)+1)
	messages = append(messages, ChatMessage{Role: string(types.RoleSystem), Content: g.cfg.SystemPrompt})
	for _, msg := range history {
		messages = append(messages, ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	resp, err := g.provider.Completion(ctx, &ChatRequest{
		Messages:    messages,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return nil, types.NewError(types.ErrGenerationFailed, "reply generation failed").
			WithProvider(g.provider.Name()).WithCause(err)
	}

	reply := resp.Text()
	if reply == "" {
		return nil, types.NewError(types.ErrGenerationFailed, "upstream returned no choices").
			WithProvider(g.provider.Name())
	}

	result := &Result{
		Reply:    reply,
		Metadata: g.buildMetadata(resp, reply),
	}
	_ = cache.SetJSON(ctx, g.cache, key, result, g.cfg.CacheTTL)

	return result, nil
}

// cacheKey 由历史中每条消息的角色与内容共同决定。
func (g *Generator) cacheKey(history []types.Message) string {
	parts := make([]string, 0, len(history)*2+1)
	parts = append(parts, g.cfg.SystemPrompt)
	for _, msg := range history {
		parts = append(parts, string(msg.Role), msg.Content)
	}
	return cache.Key("llm", parts...)
}

func (g *Generator) buildMetadata(resp *ChatResponse, reply string) map[string]any {
	meta := map[string]any{
		"provider": resp.Provider,
		"model":    resp.Model,
	}
	if resp.Usage != nil {
		meta["tokens_used"] = resp.Usage.TotalTokens
	} else {
		meta["tokens_used"] = estimateTokens(reply)
	}
	return meta
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// estimateTokens 在上游未返回用量时估算 token 数。
// 编码表加载失败时退化为按 4 字符 1 token 估算。
func estimateTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return (len(text) + 3) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}
