package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/BaSui01/blockflow/internal/migration"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

func runMigrate(args []string) error {
	if len(args) == 0 {
		printMigrateUsage(os.Stdout)
		return nil
	}
	switch args[0] {
	case "help", "-h", "--help":
		printMigrateUsage(os.Stdout)
		return nil
	}
	return migrate(context.Background(), args[0], args[1:], os.Stdout)
}

// migrate 解析 cmd 之后的参数，创建迁移器并执行子命令
func migrate(ctx context.Context, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate "+cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	migrator, err := createMigrator(fs, args)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	cli.SetOutput(out)
	return cli.Run(ctx, cmd, fs.Args())
}

// createMigrator 优先使用 --db-type/--db-url，否则从配置文件读取数据库配置
func createMigrator(fs *flag.FlagSet, args []string) (*migration.DefaultMigrator, error) {
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *dbType != "" && *dbURL != "" {
		return migration.NewMigratorFromURL(*dbType, *dbURL)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if *dbType != "" {
		cfg.Database.Driver = *dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

func printMigrateUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: blockflow migrate <command> [options] [argument]

Commands:
  up          Apply all pending migrations
  down        Roll back the last migration
  down-all    Roll back every migration
  steps N     Apply (N > 0) or roll back (N < 0) N migrations
  goto V      Migrate to version V
  force V     Set the version without running migrations (fixes a dirty state)
  version     Show the current version
  status      Show every migration and whether it is applied
  info        Show migration summary

Options:
  --config    Path to config file
  --db-type   Database type (postgres, mysql, sqlite)
  --db-url    Database connection URL (with --db-type)

Examples:
  blockflow migrate up --config config.yaml
  blockflow migrate status --db-type sqlite --db-url file:blockflow.db
  blockflow migrate steps --config config.yaml -- -1
  blockflow migrate force 3`)
}
