// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// voxflow 是语音对话后端的服务入口:
// 文本或音频进入,经转写、回复生成与语音合成后返回。
package main
