// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

// Package telemetry 封装 OpenTelemetry SDK 初始化，为追踪构建与会话执行
// 产生的 span 提供 OTLP 导出。禁用时保留全局 noop 实现，不连接外部服务。
// Instruments 把引擎指标同时记录到 OTel meter 与下游 Prometheus 收集器。
package telemetry
