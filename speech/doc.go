// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package speech 封装 ElevenLabs 的 TTS 与 STT HTTP 客户端。
// API key 按调用传入而非固定在客户端上,以便上层做多凭证回退;
// 上游响应被归类为结构化错误码,由回退客户端决定是否换下一个凭证。
package speech
