package speech

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

	"github.com/BaSui01/voxflow/internal/tlsutil"
	"github.com/BaSui01/voxflow/types"
)

// TTSClient 使用 11Labs API 执行 TTS。
type TTSClient struct {
	cfg    TTSConfig
	client *http.Client
}

// NewTTSClient 创建 11Labs TTS 客户端。
func NewTTSClient(cfg TTSConfig) *TTSClient {
	def := DefaultTTSConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = def.VoiceID
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = def.OutputFormat
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	return &TTSClient{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
	}
}

func (c *TTSClient) Name() string { return "elevenlabs-tts" }

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize 将文本转换为语音并写入 w,返回写出的字节数。
// apiKey 按调用传入;上游失败与零字节响应都返回结构化错误。
func (c *TTSClient) Synthesize(ctx context.Context, apiKey, text string, w io.Writer) (int64, error) {
	payload, _ := json.Marshal(ttsRequest{Text: text, ModelID: c.cfg.Model})

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.VoiceID, c.cfg.OutputFormat)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, types.Newf(types.ErrUpstreamError, "failed to create request").
			WithProvider(c.Name()).WithCause(err)
	}
	httpReq.Header.Set("xi-api-key", apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, classifyTransportError(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, classifyStatus(c.Name(), resp.StatusCode, errBody)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, types.Newf(types.ErrUpstreamError, "failed to read audio stream").
			WithProvider(c.Name()).WithCause(err)
	}
	if n == 0 {
		return 0, types.NewError(types.ErrEmptyResult, "upstream returned empty audio").
			WithProvider(c.Name())
	}

	return n, nil
}

// classifyStatus 把上游 HTTP 状态码映射到结构化错误码。
func classifyStatus(provider string, status int, body []byte) error {
	msg := fmt.Sprintf("status=%d body=%s", status, string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).
			WithProvider(provider).WithHTTPStatus(status).WithRetryable(true)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, msg).
			WithProvider(provider).WithHTTPStatus(status)
	case status == http.StatusPaymentRequired:
		return types.NewError(types.ErrQuotaExceeded, msg).
			WithProvider(provider).WithHTTPStatus(status)
	default:
		return types.NewError(types.ErrUpstreamError, msg).
			WithProvider(provider).WithHTTPStatus(status).WithRetryable(status >= 500)
	}
}

// classifyTransportError 把传输层错误映射到结构化错误码。
func classifyTransportError(provider string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.NewError(types.ErrUpstreamTimeout, "request timed out").
			WithProvider(provider).WithRetryable(true).WithCause(err)
	}
	return types.NewError(types.ErrUpstreamError, "request failed").
		WithProvider(provider).WithRetryable(true).WithCause(err)
}
