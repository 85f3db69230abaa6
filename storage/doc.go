// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package storage 管理合成与上传音频的本地文件存储。
// 对外只暴露不透明的文件引用,引用始终限制在存储目录内。
package storage
