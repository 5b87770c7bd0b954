// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
Package session 提供单步调试会话：在解释器上逐项执行追踪队列。

# 概述

Controller 持有一个解释器、一个追踪队列和一个游标，并累积 stdout 与
stderr 日志。状态机为 idle → running → idle，重叠的 Step、RunAll、
Rebuild、Restart 调用以 ErrSessionBusy 拒绝。

# 核心操作

  - Init: 通过 interp.Factory 惰性获取解释器，并发调用共享一次获取
  - Step: 执行游标处的条目，写入 "[label] >>>" 标题与输出，游标前进一位
  - RunAll: 顺序执行剩余条目，单条失败记录到 stderr 后继续
  - Reset: 清空日志并将游标归零，保留解释器状态
  - Restart: 关闭并重建解释器后 Reset
  - SetQueue / Rebuild: 队列内容哈希变化时自动 Reset

# 代际计数

替换队列、Reset 与 Close 会递增代际计数。进行中的 RunAll 在条目之间
检查代际，发现变化后停止，且不会写入新队列的日志或游标。

# 会话注册表

Registry 以 UUID 管理多个会话，支持数量上限与空闲过期清理。
*/
package session
