package handler

import (
	"context"
	"fmt"
	"io"

	"recruit-dashboard/internal/constants"
	"recruit-dashboard/internal/service"
	"recruit-dashboard/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// EvaluationHandler 简历评估、评估入库和文件文本提取
type EvaluationHandler struct {
	evaluations *service.EvaluationService
	maxFileSize int64
}

// NewEvaluationHandler 创建 EvaluationHandler，maxFileSize<=0 时使用默认上限
func NewEvaluationHandler(evaluations *service.EvaluationService, maxFileSize int64) *EvaluationHandler {
	if maxFileSize <= 0 {
		maxFileSize = constants.MaxResumeFileSize
	}
	return &EvaluationHandler{evaluations: evaluations, maxFileSize: maxFileSize}
}

// HandleEvaluate POST /api/evaluations，只评估不落库
func (h *EvaluationHandler) HandleEvaluate(ctx context.Context, c *app.RequestContext) {
	var req types.EvaluateRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "请求体不是合法的 JSON")
		return
	}

	evaluation, err := h.evaluations.Evaluate(ctx, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, evaluation)
}

// HandleIngest POST /api/candidates/ingest，评估成功后创建候选人
func (h *EvaluationHandler) HandleIngest(ctx context.Context, c *app.RequestContext) {
	var req types.EvaluateRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "请求体不是合法的 JSON")
		return
	}

	result, err := h.evaluations.Ingest(ctx, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, result)
}

// HandleExtractResume POST /api/resumes/extract，multipart 字段 file
func (h *EvaluationHandler) HandleExtractResume(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(ctx, c, "文件未找到")
		return
	}
	if fileHeader.Size > h.maxFileSize {
		badRequest(ctx, c, fmt.Sprintf("文件过大, 上限为 %d MB", h.maxFileSize>>20))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		badRequest(ctx, c, "打开文件失败")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		badRequest(ctx, c, "读取文件失败")
		return
	}
	if int64(len(data)) > h.maxFileSize {
		badRequest(ctx, c, fmt.Sprintf("文件过大, 上限为 %d MB", h.maxFileSize>>20))
		return
	}

	result, err := h.evaluations.ExtractResume(ctx, fileHeader.Filename, data)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, result)
}
