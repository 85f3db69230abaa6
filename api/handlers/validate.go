package handlers

import (
	"strings"

	"github.com/BaSui01/voxflow/types"
)

// 请求文本长度上限。超出部分直接截断而不是拒绝,
// 语音前端偶尔会把整段识别结果原样提交。
const maxTextLength = 5000

const (
	minSessionIDLength = 8
	maxSessionIDLength = 64
)

// sanitizeText 清理用户文本:去首尾空白并截断超长输入。
func sanitizeText(text string) string {
	text = strings.TrimSpace(text)
	if runes := []rune(text); len(runes) > maxTextLength {
		text = string(runes[:maxTextLength])
	}
	return text
}

// validateSessionID 校验会话 ID 的长度与字符集。
func validateSessionID(id string) error {
	if len(id) < minSessionIDLength || len(id) > maxSessionIDLength {
		return types.Newf(types.ErrInvalidRequest,
			"session id must be between %d and %d characters", minSessionIDLength, maxSessionIDLength)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return types.NewError(types.ErrInvalidRequest, "session id contains invalid characters")
		}
	}
	return nil
}
