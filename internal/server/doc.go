// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package server 提供 HTTP 服务器生命周期管理:
// 非阻塞启动、信号驱动的优雅关闭、异步错误上报。
// 仅供本模块内部使用。
package server
