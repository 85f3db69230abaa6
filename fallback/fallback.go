package fallback

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/voxflow/types"
)

// Credential 单个上游凭证。Label 仅用于日志与错误信息,不参与鉴权。
type Credential struct {
	Label  string
	Secret string
}

// AttemptFunc 使用给定凭证执行一次上游调用。
type AttemptFunc[T any] func(ctx context.Context, cred Credential) (T, error)

// Run 按顺序用每个凭证调用 attempt,返回首个成功结果。
//
// 凭证列表为空时直接返回 NO_CREDENTIALS,不发起任何调用。
// 每次失败都记录一条日志并继续下一个凭证;attempt 内的 panic 被恢复
// 并按该凭证失败处理。全部失败后返回 PROVIDER_EXHAUSTED,
// 携带最后一个凭证的标签与错误原因。
func Run[T any](ctx context.Context, logger *zap.Logger, creds []Credential, attempt AttemptFunc[T]) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(creds) == 0 {
		return zero, types.NewError(types.ErrNoCredentials, "no credentials configured")
	}

	var lastErr error
	var lastLabel string
	for i, cred := range creds {
		result, err := runOne(ctx, cred, attempt)
		if err == nil {
			if i > 0 {
				logger.Info("fallback succeeded",
					zap.String("credential", cred.Label),
					zap.Int("attempt", i+1))
			}
			return result, nil
		}

		lastErr = err
		lastLabel = cred.Label
		logger.Warn("credential attempt failed",
			zap.String("credential", cred.Label),
			zap.Int("attempt", i+1),
			zap.Int("total", len(creds)),
			zap.String("code", string(types.GetErrorCode(err))),
			zap.Error(err))
	}

	return zero, types.Newf(types.ErrProviderExhausted,
		"all %d credentials failed, last: %s", len(creds), lastLabel).
		WithProvider(lastLabel).
		WithCause(lastErr)
}

// runOne 执行单次尝试并把 panic 转成普通错误。
func runOne[T any](ctx context.Context, cred Credential, attempt AttemptFunc[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.Newf(types.ErrUpstreamError, "attempt panicked: %v", r).
				WithProvider(cred.Label).
				WithCause(fmt.Errorf("panic: %v", r))
		}
	}()
	return attempt(ctx, cred)
}
