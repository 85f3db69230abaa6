// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package tts 提供带缓存与多凭证回退的文本转语音服务。
// 合成产物落地为本地音频文件,缓存里只存文件引用;
// 命中缓存时会确认文件仍然存在,文件被清理后自动重新合成。
package tts
