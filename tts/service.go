package tts

import (
	"context"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/voxflow/fallback"
	"github.com/BaSui01/voxflow/internal/cache"
	"github.com/BaSui01/voxflow/storage"
	"github.com/BaSui01/voxflow/types"
)

// Synthesizer 底层 TTS 客户端接口。
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, apiKey, text string, w io.Writer) (int64, error)
}

// markdown 标记在朗读时只会产生噪音,合成前剥离。
var markdownStripper = strings.NewReplacer("**", "", "*", "", "__", "", "`", "")

// Service 带缓存与凭证回退的语音合成服务。
// 相同文本的并发请求通过 singleflight 合并为一次上游调用。
type Service struct {
	client Synthesizer
	creds  []fallback.Credential
	cache  cache.Store
	store  storage.Store
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
}

// NewService 创建语音合成服务。ttl 为 0 时缓存一小时。
func NewService(client Synthesizer, creds []fallback.Credential, c cache.Store, store storage.Store, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		client: client,
		creds:  creds,
		cache:  c,
		store:  store,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "tts")),
	}
}

// Synthesize 将文本合成为音频文件,返回文件引用与缓存命中标记。
func (s *Service) Synthesize(ctx context.Context, text string, useCache bool) (string, bool, error) {
	clean := strings.TrimSpace(markdownStripper.Replace(text))
	if clean == "" {
		return "", false, types.NewError(types.ErrInvalidRequest, "text is empty")
	}

	key := cache.Key("tts", clean)
	if useCache {
		if ref, err := s.cache.Get(ctx, key); err == nil {
			if s.store.Exists(ref) {
				s.logger.Debug("tts cache hit", zap.String("ref", ref))
				return ref, true, nil
			}
			// 缓存指向的文件已被清理,作废条目并重新合成
			s.logger.Warn("cached audio file missing, regenerating",
				zap.String("ref", ref))
			_ = s.cache.Delete(ctx, key)
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		ref, err := s.generate(ctx, clean)
		if err != nil {
			return "", err
		}
		_ = s.cache.Set(ctx, key, ref, s.ttl)
		return ref, nil
	})
	if err != nil {
		if types.GetErrorCode(err) == types.ErrNoCredentials {
			return "", false, err
		}
		return "", false, types.NewError(types.ErrSynthesisFailed, "speech synthesis failed").
			WithCause(err)
	}

	return v.(string), false, nil
}

// generate 依次尝试每个凭证,直到写出非空音频文件。
// 失败的尝试会清理残留文件。
func (s *Service) generate(ctx context.Context, text string) (string, error) {
	return fallback.Run(ctx, s.logger, s.creds,
		func(ctx context.Context, cred fallback.Credential) (string, error) {
			ref, w, err := s.store.Create("mp3")
			if err != nil {
				return "", types.Newf(types.ErrInternalError, "failed to create audio file").
					WithCause(err)
			}

			n, synthErr := s.client.Synthesize(ctx, cred.Secret, text, w)
			closeErr := w.Close()

			if synthErr != nil || closeErr != nil || n == 0 {
				_ = s.store.Remove(ref)
				if synthErr != nil {
					return "", synthErr
				}
				if closeErr != nil {
					return "", types.Newf(types.ErrInternalError, "failed to finalize audio file").
						WithCause(closeErr)
				}
				return "", types.NewError(types.ErrEmptyResult, "upstream returned empty audio").
					WithProvider(s.client.Name())
			}

			return ref, nil
		})
}
