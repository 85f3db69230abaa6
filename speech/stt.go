package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/BaSui01/voxflow/internal/tlsutil"
	"github.com/BaSui01/voxflow/types"
)

// STTClient 使用 11Labs Scribe API 执行 STT。
type STTClient struct {
	cfg    STTConfig
	client *http.Client
}

// NewSTTClient 创建 11Labs STT 客户端。
func NewSTTClient(cfg STTConfig) *STTClient {
	def := DefaultSTTConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}

	return &STTClient{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
	}
}

func (c *STTClient) Name() string { return "elevenlabs-stt" }

// Transcribe 将音频流转换为文本。
// 响应缺少 text 字段时退回原始响应体的字符串形式。
func (c *STTClient) Transcribe(ctx context.Context, apiKey string, audio io.Reader, filename string) (string, error) {
	if audio == nil {
		return "", types.NewError(types.ErrInvalidRequest, "audio input is required")
	}
	if filename == "" {
		filename = "audio.wav"
	}

	// 构建 multipart 表单
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", types.Newf(types.ErrUpstreamError, "failed to create form file").
			WithProvider(c.Name()).WithCause(err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", types.Newf(types.ErrUpstreamError, "failed to copy audio").
			WithProvider(c.Name()).WithCause(err)
	}
	_ = writer.WriteField("model_id", c.cfg.Model)
	if err := writer.Close(); err != nil {
		return "", types.Newf(types.ErrUpstreamError, "failed to finalize form").
			WithProvider(c.Name()).WithCause(err)
	}

	endpoint := fmt.Sprintf("%s/v1/speech-to-text", strings.TrimRight(c.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, &buf)
	if err != nil {
		return "", types.Newf(types.ErrUpstreamError, "failed to create request").
			WithProvider(c.Name()).WithCause(err)
	}
	httpReq.Header.Set("xi-api-key", apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(c.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", types.Newf(types.ErrUpstreamError, "failed to read response").
			WithProvider(c.Name()).WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(c.Name(), resp.StatusCode, body)
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		if text, ok := parsed["text"].(string); ok {
			return text, nil
		}
	}

	// 非预期响应形状:退回原始响应体,交给上层判断
	return string(body), nil
}
