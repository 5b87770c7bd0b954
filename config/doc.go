// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
包 config 提供 BlockFlow 的配置管理功能。

# 概述

配置按 默认值 → YAML 文件 → 环境变量（BLOCKFLOW_ 前缀）→ 验证器
的顺序加载。环境变量名由 env 标签逐级拼接，例如
BLOCKFLOW_TRACE_MAX_ITEMS、BLOCKFLOW_INTERPRETER_KIND。

# 热更新

Watcher 轮询配置文件修改时间，Reloader 在变化时重新加载并把新旧配置
交给回调。只有日志级别、限流与追踪上限会在运行时生效，其余字段需要重启。
*/
package config
