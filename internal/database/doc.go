// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的数据库打开与连接池管理，支持健康检查、
连接池指标采集与事务重试。

# 概述

Open 根据 config.DatabaseConfig 选择方言（postgres、mysql、
纯 Go 的 glebarez/sqlite），再交给 PoolManager 统一管理连接生命周期。
SQLite 固定单连接。后台健康检查定时探活，并把连接数交给 StatsRecorder。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、SQL()、
    Ping()、Stats()、Close() 以及 WithTransaction/WithTransactionRetry。
  - PoolConfig：最大空闲连接数、最大打开连接数、生命周期与健康检查间隔。
  - StatsRecorder：连接池指标接收接口，由 metrics.Collector 实现。
*/
package database
