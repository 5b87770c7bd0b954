// =============================================================================
// BlockFlow 主入口
// =============================================================================
// 服务入口与本地工具，包含 HTTP 服务、数据库迁移、代码生成与动态追踪
//
// 使用方法:
//
//	blockflow serve                            # 启动服务
//	blockflow serve --config config.yaml       # 指定配置文件
//	blockflow migrate up                       # 运行数据库迁移
//	blockflow codegen -f graph.json            # 打印生成的 Python 代码
//	blockflow trace -f graph.yaml -interp python
//	blockflow run -f graph.json                # 在新会话中执行全部步骤
//	blockflow version                          # 显示版本信息
//	blockflow health                           # 健康检查
// =============================================================================

package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/blockflow/config"
	"github.com/BaSui01/blockflow/internal/telemetry"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "codegen":
		err = runCodegen(os.Args[2:], os.Stdout)
	case "trace":
		err = runTrace(os.Args[2:], os.Stdout)
	case "run":
		err = runRun(os.Args[2:], os.Stdout, os.Stderr)
	case "version":
		printVersion()
	case "health":
		err = runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if !errors.Is(err, flag.ErrHelp) && !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// =============================================================================
// 🔧 配置与日志
// =============================================================================

// loadConfig 加载并校验配置，返回的 Loader 供热重载复用
func loadConfig(path string) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader().WithValidator((*config.Config).Validate)
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// initLogger 按日志配置构建 logger；返回的级别可在运行时调整
func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             level,
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger, level
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// =============================================================================
// 🏥 health 命令
// =============================================================================

func runHealthCheck(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(*addr, "/") + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	fmt.Println("Health check passed")
	return nil
}

// =============================================================================
// ℹ️ version / help
// =============================================================================

func printVersion() {
	fmt.Printf("BlockFlow %s\n", telemetry.BuildVersion())
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`BlockFlow - visual block programs to Python, step by step

Usage:
  blockflow <command> [options]

Commands:
  serve     Start the HTTP API server
  migrate   Run database migrations (up, down, down-all, steps, goto, force, version, status, info)
  codegen   Print the Python program generated from a graph file
  trace     Print the atomic-step queue of a graph file
  run       Execute every step of a graph file in a fresh session
  version   Show version information
  health    Check the health of a running server
  help      Show this help message

Examples:
  blockflow serve --config config.yaml
  blockflow migrate up --config config.yaml
  blockflow codegen -f examples/counter.json
  blockflow trace -f counter.yaml -interp python -max-items 1000
  blockflow run -f counter.json`)
}
