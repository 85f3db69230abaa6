// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

/*
Package types 提供 voxflow 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 conversation、llm、speech、
api 等上层模块提供统一的类型契约：

  - Role / Message      — 对话消息（user / assistant / system）
  - Conversation        — 会话（session_id + 有序消息列表 + 元数据）
  - ProcessingMetrics   — 单轮处理指标（转写/生成/合成耗时、token 数）
  - ErrorCode / Error   — 结构化错误（错误码、HTTP 状态、可重试标记）
*/
package types
