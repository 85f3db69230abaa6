package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/internal/tlsutil"
	"github.com/BaSui01/voxflow/types"
)

// MistralConfig Mistral 提供者配置
type MistralConfig struct {
	// API 密钥
	APIKey string `yaml:"api_key" json:"api_key"`

	// API 基础地址
	BaseURL string `yaml:"base_url" json:"base_url"`

	// 模型
	Model string `yaml:"model" json:"model"`

	// 请求超时
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultMistralConfig 返回默认 Mistral 配置
func DefaultMistralConfig() MistralConfig {
	return MistralConfig{
		BaseURL: "https://api.mistral.ai",
		Model:   "mistral-large-latest",
		Timeout: 60 * time.Second,
	}
}

// MistralProvider 实现 Mistral AI LLM 提供者。
// Mistral AI 使用 OpenAI 兼容的 API 格式。
type MistralProvider struct {
	cfg    MistralConfig
	client *http.Client
	logger *zap.Logger
}

// NewMistralProvider 创建新的 Mistral 提供者实例。
func NewMistralProvider(cfg MistralConfig, logger *zap.Logger) *MistralProvider {
	def := DefaultMistralConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	return &MistralProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", "mistral")),
	}
}

func (p *MistralProvider) Name() string { return "mistral" }

// Completion 执行一次 chat completions 调用。
func (p *MistralProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = p.cfg.Model
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, types.Newf(types.ErrInvalidRequest, "failed to encode chat request").
			WithProvider(p.Name()).WithCause(err)
	}

	endpoint := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.Newf(types.ErrUpstreamError, "failed to create request").
			WithProvider(p.Name()).WithCause(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, types.NewError(types.ErrUpstreamTimeout, "request timed out").
				WithProvider(p.Name()).WithRetryable(true).WithCause(err)
		}
		return nil, types.NewError(types.ErrUpstreamError, "request failed").
			WithProvider(p.Name()).WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, types.Newf(types.ErrUpstreamError, "failed to read response").
			WithProvider(p.Name()).WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.classifyStatus(resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, types.Newf(types.ErrUpstreamError, "failed to decode response").
			WithProvider(p.Name()).WithCause(err)
	}
	chatResp.Provider = p.Name()

	p.logger.Debug("chat completion finished",
		zap.String("model", chatResp.Model),
		zap.Duration("latency", time.Since(start)),
	)

	return &chatResp, nil
}

func (p *MistralProvider) classifyStatus(status int, body []byte) error {
	msg := fmt.Sprintf("status=%d body=%s", status, string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).
			WithProvider(p.Name()).WithHTTPStatus(status).WithRetryable(true)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, msg).
			WithProvider(p.Name()).WithHTTPStatus(status)
	default:
		return types.NewError(types.ErrUpstreamError, msg).
			WithProvider(p.Name()).WithHTTPStatus(status).WithRetryable(status >= 500)
	}
}
