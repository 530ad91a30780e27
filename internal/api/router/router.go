package router

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"recruit-dashboard/internal/api/handler"
	"recruit-dashboard/internal/api/middleware"
	"recruit-dashboard/internal/config"
	"recruit-dashboard/internal/constants"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
)

// Handlers 需要注册的全部处理器
type Handlers struct {
	Jobs        *handler.JobHandler
	Candidates  *handler.CandidateHandler
	Evaluations *handler.EvaluationHandler
	Health      *handler.HealthHandler
}

// requestBodyLimit 请求体上限至少比简历文件上限多出 MultipartOverhead，
// 否则接近上限的上传会在进入 handler 前被 Hertz 以 413 拒绝
func requestBodyLimit(cfg config.ServerConfig) int {
	limit := cfg.MaxBodyMB << 20
	if floor := constants.MaxResumeFileSize + constants.MultipartOverhead; limit < floor {
		limit = floor
	}
	return limit
}

// NewServer 创建 Hertz 实例：OpenTelemetry 追踪、请求 ID、访问日志，然后注册路由
func NewServer(cfg config.ServerConfig, handlers Handlers, opts ...hertzconfig.Option) *server.Hertz {
	tracer, tracerCfg := hertztracing.NewServerTracer()

	serverOpts := []hertzconfig.Option{
		server.WithHostPorts(cfg.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(requestBodyLimit(cfg)),
		server.WithExitWaitTime(config.GetDuration(cfg.ShutdownTimeout, 0)),
		tracer,
	}
	serverOpts = append(serverOpts, opts...)

	h := server.New(serverOpts...)
	h.Use(
		hertztracing.ServerMiddleware(tracerCfg),
		middleware.RequestID(),
		middleware.AccessLog(),
	)
	RegisterRoutes(h, handlers, cfg)
	return h
}

// RegisterRoutes 注册 API 路由；生产模式下同时托管前端静态资源
func RegisterRoutes(h *server.Hertz, handlers Handlers, cfg config.ServerConfig) {
	api := h.Group("/api")
	{
		api.GET("/health", handlers.Health.HandleHealth)

		api.GET("/jobs", handlers.Jobs.HandleListJobs)
		api.POST("/jobs", handlers.Jobs.HandleCreateJob)
		api.GET("/jobs/:id", handlers.Jobs.HandleGetJob)

		api.GET("/candidates/:jobId", handlers.Candidates.HandleListCandidates)
		api.POST("/candidates", handlers.Candidates.HandleCreateCandidate)
		api.PATCH("/candidates/:id", handlers.Candidates.HandleUpdateStatus)
		api.DELETE("/candidates/:id", handlers.Candidates.HandleDeleteCandidate)
		api.POST("/candidates/ingest", handlers.Evaluations.HandleIngest)

		api.POST("/evaluations", handlers.Evaluations.HandleEvaluate)
		api.POST("/resumes/extract", handlers.Evaluations.HandleExtractResume)
	}

	if cfg.IsProduction() {
		hlog.Infof("生产模式: 托管静态资源目录 %s", cfg.StaticDir)
		h.NoRoute(spaFallback(cfg.StaticDir))
		return
	}
	h.NoRoute(notFound)
}

func notFound(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusNotFound, handler.ErrorResponse{
		Error: "接口不存在",
		Code:  handler.CodeNotFound,
	})
}

// spaFallback /api 之外的路径先找静态文件，找不到时返回 index.html 交给前端路由
func spaFallback(staticDir string) app.HandlerFunc {
	root, err := filepath.Abs(staticDir)
	if err != nil {
		root = staticDir
	}
	index := filepath.Join(root, "index.html")

	return func(ctx context.Context, c *app.RequestContext) {
		path := string(c.Path())
		if strings.HasPrefix(path, "/api/") || path == "/api" {
			notFound(ctx, c)
			return
		}
		method := string(c.Method())
		if method != consts.MethodGet && method != consts.MethodHead {
			notFound(ctx, c)
			return
		}

		target := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+path)))
		if info, err := os.Stat(target); err == nil && !info.IsDir() && strings.HasPrefix(target, root) {
			c.File(target)
			return
		}
		if _, err := os.Stat(index); err != nil {
			notFound(ctx, c)
			return
		}
		c.File(index)
	}
}
