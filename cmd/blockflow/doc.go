// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 BlockFlow 的可执行入口。

# 概述

cmd/blockflow 同时是 HTTP 服务端与本地工具：serve 启动 API 服务，
migrate 管理数据库结构，codegen、trace、run 直接作用于本地图文件
（JSON 或 YAML），便于在没有编辑器的情况下检查生成代码与执行过程。

# 核心类型

  - Server        ：组装存储、解释器、会话注册表与 HTTP 层，负责优雅关闭
  - Middleware    ：HTTP 中间件函数签名 func(http.Handler) http.Handler
  - IPRateLimiter ：按客户端 IP 的令牌桶限流，限额可热更新

# 主要能力

  - 子命令：serve、migrate、codegen、trace、run、version、health、help
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    Metrics、OTel、CORS、限流、认证（X-API-Key 或 HS256 Bearer JWT）
  - 存储：memory 或 database（postgres/mysql/sqlite，可自动迁移），
    配置 Redis 时草稿存放在 Redis
  - 解释器：dryrun、python 子进程或远程内核（ws/wss），可选开放内核端点
  - 配置热重载：日志级别、限流参数与追踪步数上限变更后立即生效
  - Metrics：独立端口或挂载在主端口的 /metrics（Prometheus）
*/
package main
