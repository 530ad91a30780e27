package middleware

import (
	"context"
	"time"

	"recruit-dashboard/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// AccessLog 请求结束后记录方法、路径、状态码和耗时
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)

		hlog.CtxInfof(ctx, "%s %s status=%d latency=%s request_id=%s",
			string(c.Method()),
			string(c.Request.URI().PathOriginal()),
			c.Response.StatusCode(),
			time.Since(start),
			logger.RequestID(ctx),
		)
	}
}
