// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 BlockFlow 的全局共享错误类型。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 store、session、api
等上层模块提供统一的错误契约，避免循环依赖。

# 核心类型

  - ErrorCode：错误码枚举（请求类、工作流类、执行类）
  - Error    ：结构化错误，含 HTTP 状态码、Retryable 标记与 Cause 链

# 主要能力

  - 链式构造：NewError(...).WithCause(...).WithHTTPStatus(...)
  - 错误检查：IsRetryable / GetErrorCode 支持 errors.As 穿透包装
  - 状态映射：HTTPStatusFor 将错误码映射为默认 HTTP 状态
*/
package types
