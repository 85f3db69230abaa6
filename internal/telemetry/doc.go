// Copyright (c) Voxflow Authors.
// Licensed under the MIT License.

// Package telemetry 封装 OpenTelemetry SDK 的初始化与关闭。
package telemetry
