// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package conversation 管理按会话隔离的对话历史。历史持久化在键值
// 缓存里,键为 session:<id>;每次写入都重置过期时间,实现滑动 TTL。
package conversation
