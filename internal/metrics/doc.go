// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package metrics 提供基于 Prometheus 的指标收集,
// 覆盖 HTTP 请求、语音流水线各阶段、缓存命中与 token 消耗。
// 仅供本模块内部使用。
package metrics
