package handler

import (
	"context"
	"errors"
	"strconv"

	"recruit-dashboard/internal/constants"
	"recruit-dashboard/internal/logger"
	"recruit-dashboard/internal/service"
	"recruit-dashboard/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"
)

// 错误响应中的 code 字段
const (
	CodeValidation      = "validation_error"
	CodeNotFound        = "not_found"
	CodeExternalService = "external_service_error"
	CodeStore           = "store_error"
	CodeInternal        = "internal_error"
)

// ErrorResponse 统一的错误响应体
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// SuccessResponse PATCH / DELETE 的确认响应
type SuccessResponse struct {
	Success bool `json:"success"`
}

// IDResponse 创建候选人后的响应
type IDResponse struct {
	ID uint `json:"id"`
}

// statusForError 把服务层错误映射为 HTTP 状态码、错误码和 span 上的错误分类
func statusForError(err error) (int, string, tracing.ErrorType) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return consts.StatusBadRequest, CodeValidation, tracing.ErrorTypeValidation
	case errors.Is(err, service.ErrNotFound):
		return consts.StatusNotFound, CodeNotFound, tracing.ErrorTypeNotFound
	case errors.Is(err, service.ErrExternalService):
		return consts.StatusBadGateway, CodeExternalService, tracing.ErrorTypeExternal
	case errors.Is(err, service.ErrStore):
		return consts.StatusInternalServerError, CodeStore, tracing.ErrorTypeDB
	default:
		return consts.StatusInternalServerError, CodeInternal, tracing.ErrorTypeInternal
	}
}

// writeError 记录日志并输出错误响应。5xx 不把底层原因暴露给调用方。
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status, code, errType := statusForError(err)

	message := err.Error()
	var recErr *service.RecordError
	if errors.As(err, &recErr) {
		message = recErr.Message()
	} else if status >= consts.StatusInternalServerError {
		message = "服务器内部错误"
	}

	event := logger.Ctx(ctx).Warn()
	if status >= consts.StatusInternalServerError {
		event = logger.Ctx(ctx).Error()
	}
	event.Err(err).Int("status", status).Str("path", string(c.Path())).Msg("请求处理失败")
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, errType, status)

	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(ctx, c),
	})
}

// badRequest 请求体或路径参数无法解析
func badRequest(ctx context.Context, c *app.RequestContext, message string) {
	logger.Ctx(ctx).Warn().Str("path", string(c.Path())).Msg(message)
	c.JSON(consts.StatusBadRequest, ErrorResponse{
		Error:     message,
		Code:      CodeValidation,
		RequestID: requestID(ctx, c),
	})
}

func requestID(ctx context.Context, c *app.RequestContext) string {
	if id := logger.RequestID(ctx); id != "" {
		return id
	}
	return c.GetString(constants.ContextKeyRequestID)
}

// parseID 解析路径中的正整数 ID
func parseID(c *app.RequestContext, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
