// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的缓存管理能力，承载编辑器草稿等短期数据。

# 概述

本包封装 go-redis 客户端，为上层存储提供统一的键值读写接口。
Manager 负责连接生命周期管理，包括初始化、健康检查与优雅关闭，
所有键自动附加 KeyPrefix 以便与其他应用共享同一 Redis。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete/TTL/Ping 以及
    GetJSON/SetJSON 便捷序列化方法。
  - Config：地址、密码、键前缀、默认 TTL、连接池与 TLS 开关。
  - HitRecorder：命中/未命中观测接口，由 metrics.Collector 实现。

# 错误语义

ErrCacheMiss 表示键不存在，ErrClosed 表示管理器已关闭。
*/
package cache
