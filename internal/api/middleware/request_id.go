package middleware

import (
	"context"
	"strings"

	"recruit-dashboard/internal/constants"
	"recruit-dashboard/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/gofrs/uuid/v5"
)

const maxRequestIDLength = 128

// RequestID 沿用调用方传入的 X-Request-ID，没有则生成 UUIDv7。
// ID 写回响应头，同时放进 RequestContext 和带 request_id 字段的日志上下文。
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := strings.TrimSpace(string(c.GetHeader(constants.HeaderRequestID)))
		if id == "" || len(id) > maxRequestIDLength {
			id = newRequestID()
		}

		c.Set(constants.ContextKeyRequestID, id)
		c.Header(constants.HeaderRequestID, id)
		c.Next(logger.WithRequestID(ctx, id))
	}
}

func newRequestID() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.Must(uuid.NewV4()).String()
	}
	return u.String()
}
