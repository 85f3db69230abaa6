package stt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/fallback"
	"github.com/BaSui01/voxflow/internal/cache"
	"github.com/BaSui01/voxflow/storage"
	"github.com/BaSui01/voxflow/types"
)

// Transcriber 底层 STT 客户端接口。
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, apiKey string, audio io.Reader, filename string) (string, error)
}

// Service 带缓存与凭证回退的转写服务。
type Service struct {
	client Transcriber
	creds  []fallback.Credential
	cache  cache.Store
	store  storage.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewService 创建转写服务。ttl 为 0 时缓存一小时。
func NewService(client Transcriber, creds []fallback.Credential, c cache.Store, store storage.Store, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		client: client,
		creds:  creds,
		cache:  c,
		store:  store,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "stt")),
	}
}

// Transcribe 转写 ref 指向的音频文件,返回文本与缓存命中标记。
// 未配置任何凭证时在读取文件之前就失败。
func (s *Service) Transcribe(ctx context.Context, ref string, useCache bool) (string, bool, error) {
	if len(s.creds) == 0 {
		return "", false, types.NewError(types.ErrNoCredentials, "no stt credentials configured")
	}

	r, err := s.store.Open(ref)
	if err != nil {
		return "", false, types.Newf(types.ErrInvalidRequest, "audio file not found: %s", ref).
			WithCause(err)
	}
	audio, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		return "", false, types.Newf(types.ErrInternalError, "failed to read audio file").
			WithCause(err)
	}

	key := cache.Key("stt", string(audio))
	if useCache {
		if text, err := s.cache.Get(ctx, key); err == nil {
			s.logger.Debug("stt cache hit", zap.String("ref", ref))
			return text, true, nil
		}
	}

	text, err := fallback.Run(ctx, s.logger, s.creds,
		func(ctx context.Context, cred fallback.Credential) (string, error) {
			out, err := s.client.Transcribe(ctx, cred.Secret, bytes.NewReader(audio), ref)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(out) == "" {
				return "", types.NewError(types.ErrEmptyResult, "upstream returned empty transcript").
					WithProvider(s.client.Name())
			}
			return out, nil
		})
	if err != nil {
		if types.GetErrorCode(err) == types.ErrNoCredentials {
			return "", false, err
		}
		return "", false, types.NewError(types.ErrTranscriptionFailed, "transcription failed").
			WithCause(err)
	}

	_ = s.cache.Set(ctx, key, text, s.ttl)

	return text, false, nil
}
