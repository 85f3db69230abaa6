// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package config 提供统一配置加载,
// 支持 YAML 文件 + 环境变量覆盖,优先级: 默认值 → YAML 文件 → 环境变量。
package config
