// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，承载 API 与指标两个监听端口。

# 概述

Manager 封装 net/http.Server，统一管理监听、服务、关闭与错误传播。
Run 适合交给 errgroup：阻塞直到 ctx 取消后优雅关闭，服务异常时返回错误。
配置了证书与私钥时以 HTTPS 启动。

# 核心类型

  - Manager：提供 Start/Run/Shutdown/RegisterOnShutdown/Errors。
  - Config：监听地址、读写与空闲超时、最大请求头、关闭超时与 TLS 文件。
*/
package server
