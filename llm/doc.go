// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package llm 提供对话回复生成。底层是 OpenAI 兼容的
// chat completions 客户端(默认指向 Mistral),上层 Generator
// 负责注入系统人设、按完整历史做缓存、并统计 token 消耗。
package llm
