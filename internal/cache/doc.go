// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package cache 提供统一的键值缓存层,支持 Redis 与内存两种后端。
// 后端故障按尽力而为处理:读失败表现为未命中,写失败只记日志,
// 调用方永远不会因为缓存层不可用而失败。
package cache
