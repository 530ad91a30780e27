package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"recruit-dashboard/internal/config"
	"recruit-dashboard/internal/logger"
	"recruit-dashboard/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const usage = `recruitctl - recruit-dashboard 维护工具

用法:
  recruitctl [-c config.yaml] <command> [flags]

命令:
  migrate             创建或升级数据库表结构
  check [--fix]       检查候选人数据一致性，--fix 修复越界分数和非法状态
  set-key [--key K]   把评估服务 API Key 写入系统钥匙串（未指定时从标准输入读取）
  delete-key          从系统钥匙串删除 API Key
  init-config PATH    生成示例配置文件
`

func main() {
	_ = godotenv.Load()

	global := pflag.NewFlagSet("recruitctl", pflag.ExitOnError)
	configPath := global.StringP("config", "c", "", "Path to config file")
	global.SetInterspersed(false)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	if args[0] == "init-config" {
		exitOnErr(runInitConfig(args[1:]))
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		exitOnErr(fmt.Errorf("加载配置失败: %w", err))
	}
	if _, err := logger.Init(logger.Config{Level: cfg.Logger.Level, Format: "pretty"}); err != nil {
		exitOnErr(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch args[0] {
	case "migrate":
		err = runMigrate(ctx, cfg)
	case "check":
		err = runCheck(ctx, cfg, args[1:])
	case "set-key":
		err = runSetKey(cfg, args[1:])
	case "delete-key":
		err = config.DeleteAPIKey(cfg.Evaluator)
		if err == nil {
			logger.Info().Str("service", config.KeyringService).Msg("API Key 已从钥匙串删除")
		}
	default:
		global.Usage()
		os.Exit(2)
	}
	exitOnErr(err)
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "错误:", err)
	os.Exit(1)
}

func openStore(cfg *config.Config) (*storage.SQLite, error) {
	db, err := storage.NewSQLite(&cfg.Store)
	if errors.Is(err, storage.ErrStoreLocked) {
		return nil, fmt.Errorf("%w (recruitd 是否正在运行?)", err)
	}
	return db, err
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	logger.Info().Str("path", db.Path()).Msg("数据库表结构已就绪")
	return nil
}

func runCheck(ctx context.Context, cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("check", pflag.ExitOnError)
	fix := fs.Bool("fix", false, "clamp out-of-range scores and reset invalid status to pending")
	_ = fs.Parse(args)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := db.CheckIntegrity(ctx)
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))

	if report.Clean() {
		logger.Info().Msg("未发现数据问题")
		return nil
	}
	if !*fix {
		logger.Warn().Msg("发现数据问题，可使用 --fix 修复分数和状态")
		return nil
	}

	affected, err := db.RepairScoresAndStatus(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int64("rows", affected).Msg("修复完成")
	if len(report.OrphanCandidates) > 0 || len(report.UnparsableAnalysis) > 0 {
		logger.Warn().
			Int("orphans", len(report.OrphanCandidates)).
			Int("unparsable_analysis", len(report.UnparsableAnalysis)).
			Msg("孤立候选人和无法解析的 analysis 需要人工处理")
	}
	return nil
}

func runSetKey(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("set-key", pflag.ExitOnError)
	key := fs.String("key", "", "API key (read from stdin when empty)")
	_ = fs.Parse(args)

	value := *key
	if value == "" {
		fmt.Fprint(os.Stderr, "API Key: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("读取 API Key 失败: %w", err)
		}
		value = strings.TrimSpace(line)
	}

	if err := config.StoreAPIKey(cfg.Evaluator, value); err != nil {
		return fmt.Errorf("写入钥匙串失败: %w", err)
	}
	logger.Info().Str("service", config.KeyringService).Str("provider", cfg.Evaluator.Provider).Msg("API Key 已写入钥匙串")
	return nil
}

func runInitConfig(args []string) error {
	path := "config.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.CreateSampleConfig(path); err != nil {
		return err
	}
	fmt.Println("已生成示例配置:", path)
	return nil
}
