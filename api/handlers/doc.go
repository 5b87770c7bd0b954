// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 BlockFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现 /api/v1 下工作流、代码生成与会话的端点，以及健康检查
和统一的响应/错误处理。所有 Handler 均遵循标准 net/http 接口，
通过 Register 挂载到 Go 1.22 的 http.ServeMux 路由模式上。

# 核心类型

  - WorkflowHandler ：工作流保存与加载、版本管理、草稿、运行记录
  - BuildHandler    ：无状态的代码生成与计划构建
  - SessionHandler  ：会话创建、单步、批量运行、重置、重建与 WebSocket 事件流
  - HealthHandler   ：健康检查（/health, /ready, /version）
  - Response        ：统一 JSON 响应结构（success + data + error + timestamp + request_id）
  - ResponseWriter  ：包装 http.ResponseWriter 以捕获状态码与字节数

# 错误映射

ToAPIError 将领域哨兵错误（store.ErrNotFound、trace.ErrTraceTooLarge、
session.ErrSessionBusy 等）映射为 types.Error，再由 WriteError 按错误码
选择 HTTP 状态。5xx 错误不向客户端暴露底层原因。

# 事件流

GET /api/v1/sessions/{sid}/events 升级为 WebSocket，首帧为 hello 快照，
之后推送 step 与 reset 事件。积压超过缓冲区的客户端会被断开。
*/
package handlers
