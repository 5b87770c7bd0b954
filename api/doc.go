// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
Package api 定义 BlockFlow HTTP API 的请求与响应类型。

# 概述

api 包只包含传输层的数据结构，处理逻辑位于 api/handlers。
所有成功响应都包裹在 handlers.Response 信封中，data 字段为本包中的类型。

# 端点

  - /api/v1/workflows/{id}           ：激活图的读取与保存
  - /api/v1/workflows/{id}/versions  ：版本列表、读取、激活、删除
  - /api/v1/workflows/{id}/draft     ：未保存草稿
  - /api/v1/workflows/{id}/runs      ：运行记录
  - /api/v1/codegen, /api/v1/plan    ：无状态生成
  - /api/v1/sessions                 ：会话与事件流

# 认证

除健康检查外的端点需要 X-API-Key 头或 Bearer JWT，取决于服务配置。
*/
package api
