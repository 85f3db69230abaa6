// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package handlers 提供 REST API 的 HTTP 处理器。
package handlers
