package ws

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/conversation"
	"github.com/BaSui01/voxflow/internal/metrics"
	"github.com/BaSui01/voxflow/llm"
	"github.com/BaSui01/voxflow/storage"
	"github.com/BaSui01/voxflow/stt"
	"github.com/BaSui01/voxflow/tts"
	"github.com/BaSui01/voxflow/types"
)

// =============================================================================
// 🎙️ 语音 WebSocket Handler
// =============================================================================

// ClientEvent 客户端发来的事件
type ClientEvent struct {
	// 事件类型,目前支持 process_voice
	Event string `json:"event"`
	// base64 编码的音频数据
	Audio string `json:"audio,omitempty"`
	// 音频格式扩展名,如 wav、mp3
	Format string `json:"format,omitempty"`
	// 会话 ID,为空时自动创建
	SessionID string `json:"session_id,omitempty"`
}

// ServerEvent 服务端推送的事件
type ServerEvent struct {
	Event     string                   `json:"event"`
	Stage     string                   `json:"stage,omitempty"`
	Text      string                   `json:"text,omitempty"`
	AudioURL  string                   `json:"audio_url,omitempty"`
	SessionID string                   `json:"session_id,omitempty"`
	Code      string                   `json:"code,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Metrics   *types.ProcessingMetrics `json:"metrics,omitempty"`
}

// 支持的上传音频格式
var allowedFormats = map[string]bool{
	"wav": true, "mp3": true, "ogg": true, "webm": true, "m4a": true, "flac": true,
}

// VoiceHandler 串联完整语音流水线的 WebSocket 处理器。
type VoiceHandler struct {
	sessions       *conversation.Store
	stt            *stt.Service
	generator      *llm.Generator
	tts            *tts.Service
	store          storage.Store
	collector      *metrics.Collector
	allowedOrigins []string
	maxAudioBytes  int64
	logger         *zap.Logger
}

// NewVoiceHandler 创建语音 WebSocket 处理器。
func NewVoiceHandler(
	sessions *conversation.Store,
	sttSvc *stt.Service,
	generator *llm.Generator,
	ttsSvc *tts.Service,
	store storage.Store,
	collector *metrics.Collector,
	allowedOrigins []string,
	maxAudioBytes int64,
	logger *zap.Logger,
) *VoiceHandler {
	if maxAudioBytes <= 0 {
		maxAudioBytes = 16 << 20
	}
	return &VoiceHandler{
		sessions:       sessions,
		stt:            sttSvc,
		generator:      generator,
		tts:            ttsSvc,
		store:          store,
		collector:      collector,
		allowedOrigins: allowedOrigins,
		maxAudioBytes:  maxAudioBytes,
		logger:         logger.With(zap.String("handler", "voice_ws")),
	}
}

// ServeHTTP 升级连接并处理事件循环。
func (h *VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.allowedOrigins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	conn.SetReadLimit(h.maxAudioBytes + (h.maxAudioBytes / 2))

	h.collector.WSConnectionOpened()
	defer h.collector.WSConnectionClosed()

	ctx := r.Context()
	for {
		var event ClientEvent
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			// 客户端断开或连接出错,结束事件循环
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		switch event.Event {
		case "process_voice":
			h.processVoice(ctx, conn, &event)
		default:
			h.sendError(ctx, conn, types.NewError(types.ErrInvalidRequest,
				"unknown event: "+event.Event))
		}
	}
}

// processVoice 执行 转写 → 生成回复 → 合成 三个阶段,逐段推送进度。
// 任一阶段失败只发送 error 事件,连接保持打开。
func (h *VoiceHandler) processVoice(ctx context.Context, conn *websocket.Conn, event *ClientEvent) {
	total := time.Now()
	var m types.ProcessingMetrics

	ref, err := h.saveAudio(event)
	if err != nil {
		h.sendError(ctx, conn, err)
		return
	}
	defer func() { _ = h.store.Remove(ref) }()

	sessionID := event.SessionID
	if sessionID == "" {
		id, err := h.sessions.Create(ctx)
		if err != nil {
			h.sendError(ctx, conn, types.NewError(types.ErrInternalError, "failed to create session").WithCause(err))
			return
		}
		sessionID = id
	}

	// 阶段 1: 转写
	h.sendStatus(ctx, conn, "transcribing")
	stageStart := time.Now()
	text, sttHit, err := h.stt.Transcribe(ctx, ref, true)
	if err != nil {
		h.collector.RecordStageFailure("transcription", string(types.GetErrorCode(err)))
		h.sendError(ctx, conn, err)
		return
	}
	m.TranscriptionTime = time.Since(stageStart).Seconds()
	h.collector.ObserveStage("transcription", time.Since(stageStart))
	h.collector.RecordCacheEvent("stt", sttHit)

	h.send(ctx, conn, ServerEvent{Event: "transcription", Text: text, SessionID: sessionID})

	// 阶段 2: 生成回复
	h.sendStatus(ctx, conn, "generating_response")
	stageStart = time.Now()
	conv, err := h.sessions.AddMessage(ctx, sessionID, types.RoleUser, text)
	if err != nil {
		h.sendError(ctx, conn, err)
		return
	}
	result, err := h.generator.Generate(ctx, conv.Messages, true)
	if err != nil {
		h.collector.RecordStageFailure("generation", string(types.GetErrorCode(err)))
		h.sendError(ctx, conn, err)
		return
	}
	if _, err := h.sessions.AddMessage(ctx, sessionID, types.RoleAssistant, result.Reply); err != nil {
		h.sendError(ctx, conn, err)
		return
	}
	m.LLMTime = time.Since(stageStart).Seconds()
	m.CacheHit = result.CacheHit
	m.TokensUsed = result.TokensUsed()
	h.collector.ObserveStage("generation", time.Since(stageStart))
	h.collector.RecordCacheEvent("llm", result.CacheHit)

	h.send(ctx, conn, ServerEvent{Event: "response", Text: result.Reply, SessionID: sessionID})

	// 阶段 3: 合成
	h.sendStatus(ctx, conn, "generating_speech")
	stageStart = time.Now()
	audioRef, ttsHit, err := h.tts.Synthesize(ctx, result.Reply, true)
	if err != nil {
		h.collector.RecordStageFailure("synthesis", string(types.GetErrorCode(err)))
		h.sendError(ctx, conn, err)
		return
	}
	m.TTSTime = time.Since(stageStart).Seconds()
	h.collector.ObserveStage("synthesis", time.Since(stageStart))
	h.collector.RecordCacheEvent("tts", ttsHit)

	h.send(ctx, conn, ServerEvent{Event: "audio_ready", AudioURL: "/api/v1/audio/" + audioRef, SessionID: sessionID})

	m.TotalTime = time.Since(total).Seconds()
	h.send(ctx, conn, ServerEvent{Event: "complete", SessionID: sessionID, Metrics: &m})
}

// saveAudio 解码 base64 音频并写入存储。
func (h *VoiceHandler) saveAudio(event *ClientEvent) (string, error) {
	if event.Audio == "" {
		return "", types.NewError(types.ErrInvalidRequest, "audio payload is required")
	}
	format := event.Format
	if format == "" {
		format = "wav"
	}
	if !allowedFormats[format] {
		return "", types.NewError(types.ErrInvalidRequest, "unsupported audio format: "+format)
	}

	data, err := base64.StdEncoding.DecodeString(event.Audio)
	if err != nil {
		return "", types.NewError(types.ErrInvalidRequest, "audio payload is not valid base64").WithCause(err)
	}
	if int64(len(data)) > h.maxAudioBytes {
		return "", types.Newf(types.ErrInvalidRequest, "audio exceeds %d bytes", h.maxAudioBytes)
	}
	if len(data) == 0 {
		return "", types.NewError(types.ErrInvalidRequest, "audio payload is empty")
	}

	ref, w, err := h.store.Create(format)
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "failed to store audio").WithCause(err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		_ = h.store.Remove(ref)
		return "", types.NewError(types.ErrInternalError, "failed to store audio").WithCause(err)
	}
	if err := w.Close(); err != nil {
		_ = h.store.Remove(ref)
		return "", types.NewError(types.ErrInternalError, "failed to store audio").WithCause(err)
	}
	return ref, nil
}

func (h *VoiceHandler) sendStatus(ctx context.Context, conn *websocket.Conn, stage string) {
	h.send(ctx, conn, ServerEvent{Event: "status", Stage: stage})
}

func (h *VoiceHandler) sendError(ctx context.Context, conn *websocket.Conn, err error) {
	structured, ok := err.(*types.Error)
	if !ok {
		structured = types.NewError(types.ErrInternalError, "internal error").WithCause(err)
	}

	h.logger.Error("voice pipeline error",
		zap.String("code", string(structured.Code)),
		zap.Error(structured.Cause),
	)

	h.send(ctx, conn, ServerEvent{
		Event:   "error",
		Code:    string(structured.Code),
		Message: structured.Message,
	})
}

func (h *VoiceHandler) send(ctx context.Context, conn *websocket.Conn, event ServerEvent) {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := wsjson.Write(writeCtx, conn, event); err != nil {
		h.logger.Warn("websocket write failed",
			zap.String("event", event.Event), zap.Error(err))
	}
}
