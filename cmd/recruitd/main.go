package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recruit-dashboard/internal/agent"
	"recruit-dashboard/internal/api/handler"
	"recruit-dashboard/internal/api/router"
	"recruit-dashboard/internal/config"
	"recruit-dashboard/internal/constants"
	"recruit-dashboard/internal/logger"
	"recruit-dashboard/internal/parser"
	"recruit-dashboard/internal/service"
	"recruit-dashboard/internal/storage"
	"recruit-dashboard/internal/tracing"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		hlog.Fatalf("加载配置失败: %v", err)
	}

	logCloser, err := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		hlog.Fatalf("初始化日志失败: %v", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	hlog.Infof("配置加载成功 (mode=%s, store=%s)", cfg.Server.Mode, cfg.Store.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, version)
	if err != nil {
		hlog.Fatalf("初始化链路追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		hlog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	hlog.Info("存储服务初始化成功")

	var recordOpts []service.RecordOption
	if storageManager.RabbitMQ != nil {
		recordOpts = append(recordOpts, service.WithEventPublisher(storageManager.RabbitMQ))
	}
	records := service.NewRecordService(storageManager.SQLite, recordOpts...)

	extractor, err := parser.NewResumeExtractor(ctx)
	if err != nil {
		hlog.Fatalf("创建简历文本提取器失败: %v", err)
	}
	evalOpts := []service.EvaluationOption{service.WithTextExtractor(extractor)}
	if storageManager.Redis != nil {
		evalOpts = append(evalOpts, service.WithJobDescriptionCache(storageManager.Redis))
	}
	if storageManager.MinIO != nil {
		evalOpts = append(evalOpts, service.WithResumeArchive(storageManager.MinIO))
	}

	evaluations := service.NewEvaluationService(storageManager.SQLite, records, newEvaluator(ctx, cfg), evalOpts...)

	health := handler.NewHealthHandler(storageManager.SQLite)
	if storageManager.Redis != nil {
		health.AddComponent("redis", storageManager.Redis)
	}
	if storageManager.MinIO != nil {
		health.AddComponent("minio", storageManager.MinIO)
	}
	if storageManager.RabbitMQ != nil {
		health.AddComponent("rabbitmq", storageManager.RabbitMQ)
	}

	h := router.NewServer(cfg.Server, router.Handlers{
		Jobs:        handler.NewJobHandler(records),
		Candidates:  handler.NewCandidateHandler(records),
		Evaluations: handler.NewEvaluationHandler(evaluations, constants.MaxResumeFileSize),
		Health:      health,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hlog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hlog.Info("接收到终止信号，正在优雅退出...")

		timeout := config.GetDuration(cfg.Server.ShutdownTimeout, 5*time.Second)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			hlog.Errorf("服务器关闭失败: %v", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			hlog.Errorf("关闭链路追踪失败: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		hlog.Errorf("服务异常退出: %v", err)
		storageManager.Close()
		os.Exit(1)
	}
	hlog.Info("优雅退出完成")
}

// newEvaluator 没有可用的 API Key 时返回 nil，评估相关接口会返回 502，其余接口不受影响
func newEvaluator(ctx context.Context, cfg *config.Config) service.ResumeEvaluator {
	apiKey, err := config.ResolveAPIKey(cfg.Evaluator)
	if err != nil {
		hlog.Warnf("未找到评估服务 API Key，简历评估不可用: %v", err)
		return nil
	}

	chatModel, err := agent.NewEvaluatorModel(ctx, cfg.Evaluator, apiKey, parser.EvaluationResponseSchema())
	if err != nil {
		hlog.Warnf("初始化评估模型失败，简历评估不可用: %v", err)
		return nil
	}
	hlog.Infof("评估模型初始化成功 (provider=%s, model=%s, qpm=%d)", cfg.Evaluator.Provider, cfg.Evaluator.Model, cfg.Evaluator.QPM)

	return parser.NewLLMResumeEvaluator(chatModel,
		parser.WithEvaluationTimeout(config.GetDuration(cfg.Evaluator.Timeout, 60*time.Second)),
	)
}
