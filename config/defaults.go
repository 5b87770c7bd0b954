// =============================================================================
// 📦 BlockFlow 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Database:    DefaultDatabaseConfig(),
		Redis:       DefaultRedisConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
		Trace:       DefaultTraceConfig(),
		Interpreter: DefaultInterpreterConfig(),
		Session:     DefaultSessionConfig(),
		Store:       StoreConfig{Kind: "memory"},
		RateLimit:   RateLimitConfig{RPS: 50, Burst: 100},
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置；Addr 为空即不使用 Redis
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "blockflow:",
		DraftTTL:     7 * 24 * time.Hour,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "blockflow",
		Name:            "blockflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "blockflow",
		SampleRate:   0.1,
	}
}

// DefaultTraceConfig 返回默认追踪配置
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{MaxItems: 100_000, Replay: true}
}

// DefaultInterpreterConfig 返回默认解释器配置
func DefaultInterpreterConfig() InterpreterConfig {
	return InterpreterConfig{
		Kind:       "dryrun",
		PythonPath: "python3",
		Timeout:    30 * time.Second,
	}
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		IdleTTL:       30 * time.Minute,
		MaxSessions:   64,
		SweepInterval: time.Minute,
	}
}
