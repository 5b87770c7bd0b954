// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
包 migration 管理 BlockFlow 的数据库结构迁移。

# 概述

迁移脚本以 embed 方式打包在 migrations/{postgres,mysql,sqlite} 目录下，
通过 golang-migrate 的 iofs 源执行。SQLite 连接由纯 Go 的 glebarez/go-sqlite
驱动打开，再交给 golang-migrate 的 sqlite3 驱动执行，与 GORM 共用同一驱动注册。
当前结构包含 workflow_versions（工作流命名版本）与 workflow_runs（运行记录）。

# 核心类型

  - Migrator：Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info。
  - DefaultMigrator：基于 golang-migrate 的实现。
  - CLI：供 blockflow migrate 子命令输出可读结果。
*/
package migration
