// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
包 store 持久化工作流图的命名版本、编辑器草稿与运行记录。

# 概述

  - GraphStore：每次 Save 生成一个以 UTC 时间命名的版本
    （YYYY-MM-DDTHH-MM-SS，同一秒内冲突时追加 _2、_3）并设为激活版本；
    Load 返回激活版本。ListVersions 按时间倒序。激活版本不可删除。
  - DraftStore：每个工作流一份未保存草稿。
  - RunStore：RunAll 的执行记录，状态 QUEUED/RUNNING/SUCCEEDED/FAILED。

# 实现

  - MemoryStore：进程内实现，三个接口全部支持。
  - GormStore：基于 internal/database 的 GORM 实现（postgres/mysql/sqlite），
    表结构由 internal/migration 维护。
  - RedisDraftStore：基于 internal/cache 的草稿存储，带 TTL。

缺失记录统一返回 ErrNotFound。
*/
package store
