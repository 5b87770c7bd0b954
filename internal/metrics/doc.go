// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、追踪构建、
会话执行、存储、缓存与数据库连接池。

# 概述

Collector 通过 promauto 注册到默认 Registry，所有指标按 namespace
隔离。各业务包只声明最小观测接口（trace.Recorder、session.Recorder、
session.Gauge、store.Recorder、cache.HitRecorder、
database.StatsRecorder），由 Collector 统一实现，业务包无需依赖
Prometheus。

# 主要指标

  - HTTP：请求总数、耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 追踪：按结果统计的构建次数与耗时，以及每条追踪的步数分布。
  - 会话：单步结果计数与耗时、批量执行结果与步数、当前会话数。
  - 存储：按 backend/operation/status 统计的操作次数与耗时。
  - 缓存：按 cache_type 统计的命中与未命中。
  - 数据库：按 open/in_use/idle 区分的连接数。
*/
package metrics
