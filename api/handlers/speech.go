package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/internal/metrics"
	"github.com/BaSui01/voxflow/storage"
	"github.com/BaSui01/voxflow/stt"
	"github.com/BaSui01/voxflow/tts"
	"github.com/BaSui01/voxflow/types"
)

// =============================================================================
// 🔊 语音 Handler
// =============================================================================

// 支持上传的音频扩展名
var allowedAudioExts = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".ogg":  true,
	".webm": true,
	".m4a":  true,
	".flac": true,
}

// TTSRequest 合成请求
type TTSRequest struct {
	// 要合成的文本
	Text string `json:"text"`
	// 是否使用缓存,默认 true
	UseCache *bool `json:"use_cache,omitempty"`
}

// TTSResponse 合成响应
type TTSResponse struct {
	AudioURL string  `json:"audio_url"`
	CacheHit bool    `json:"cache_hit"`
	Elapsed  float64 `json:"elapsed"`
}

// TranscribeResponse 转写响应
type TranscribeResponse struct {
	Text     string  `json:"text"`
	CacheHit bool    `json:"cache_hit"`
	Elapsed  float64 `json:"elapsed"`
}

// SpeechHandler 语音合成与转写处理器
type SpeechHandler struct {
	tts            *tts.Service
	stt            *stt.Service
	store          storage.Store
	collector      *metrics.Collector
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewSpeechHandler 创建语音处理器
func NewSpeechHandler(ttsSvc *tts.Service, sttSvc *stt.Service, store storage.Store, collector *metrics.Collector, maxUploadBytes int64, logger *zap.Logger) *SpeechHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 16 << 20
	}
	return &SpeechHandler{
		tts:            ttsSvc,
		stt:            sttSvc,
		store:          store,
		collector:      collector,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(zap.String("handler", "speech")),
	}
}

// HandleTTS 处理 POST /api/v1/tts,合成音频并返回下载地址。
func (h *SpeechHandler) HandleTTS(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req TTSRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	text := sanitizeText(req.Text)
	if text == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "text is required", h.logger)
		return
	}

	useCache := req.UseCache == nil || *req.UseCache

	ref, hit, err := h.tts.Synthesize(r.Context(), text, useCache)
	if err != nil {
		h.collector.RecordStageFailure("synthesis", string(types.GetErrorCode(err)))
		WriteError(w, err, h.logger)
		return
	}
	h.collector.ObserveStage("synthesis", time.Since(start))
	h.collector.RecordCacheEvent("tts", hit)

	WriteSuccess(w, TTSResponse{
		AudioURL: "/api/v1/audio/" + ref,
		CacheHit: hit,
		Elapsed:  time.Since(start).Seconds(),
	})
}

// HandleTranscribe 处理 POST /api/v1/transcribe,接收 multipart 音频上传。
func (h *SpeechHandler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"invalid or oversized multipart body", h.logger)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"audio file is required", h.logger)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAudioExts[ext] {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"unsupported audio format: "+ext, h.logger)
		return
	}

	ref, dst, err := h.store.Create(ext)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to store audio").
			WithCause(err), h.logger)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		_ = dst.Close()
		_ = h.store.Remove(ref)
		WriteError(w, types.NewError(types.ErrInternalError, "failed to store audio").
			WithCause(err), h.logger)
		return
	}
	if err := dst.Close(); err != nil {
		_ = h.store.Remove(ref)
		WriteError(w, types.NewError(types.ErrInternalError, "failed to store audio").
			WithCause(err), h.logger)
		return
	}

	text, hit, err := h.stt.Transcribe(r.Context(), ref, true)
	if err != nil {
		h.collector.RecordStageFailure("transcription", string(types.GetErrorCode(err)))
		WriteError(w, err, h.logger)
		return
	}
	h.collector.ObserveStage("transcription", time.Since(start))
	h.collector.RecordCacheEvent("stt", hit)

	WriteSuccess(w, TranscribeResponse{
		Text:     text,
		CacheHit: hit,
		Elapsed:  time.Since(start).Seconds(),
	})
}

// HandleAudio 处理 GET /api/v1/audio/{ref},下载合成产物。
func (h *SpeechHandler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")

	path, err := h.store.Path(ref)
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"invalid audio reference", h.logger)
		return
	}
	if !h.store.Exists(ref) {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound,
			"audio file not found", h.logger)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}
