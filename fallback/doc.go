// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package fallback 提供通用的多凭证回退客户端:按声明顺序依次尝试
// 每个凭证执行一次上游调用,任一凭证失败(包括 panic)都会推进到下一个,
// 全部耗尽后返回聚合错误。
package fallback
