// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package ws 提供 WebSocket 语音通道:单条连接上完成
// 音频上传、转写、回复生成与语音合成,并逐阶段推送进度事件。
package ws
