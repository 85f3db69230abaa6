// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package stt 提供带缓存与多凭证回退的语音转文本服务。
// 转写结果按音频内容哈希缓存,相同音频不会重复转写。
package stt
