package handler

import (
	"context"

	"recruit-dashboard/internal/service"
	"recruit-dashboard/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// JobHandler 岗位相关接口
type JobHandler struct {
	records *service.RecordService
}

// NewJobHandler 创建 JobHandler
func NewJobHandler(records *service.RecordService) *JobHandler {
	return &JobHandler{records: records}
}

// HandleListJobs GET /api/jobs
func (h *JobHandler) HandleListJobs(ctx context.Context, c *app.RequestContext) {
	jobs, err := h.records.ListJobs(ctx)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, jobs)
}

// HandleCreateJob POST /api/jobs
func (h *JobHandler) HandleCreateJob(ctx context.Context, c *app.RequestContext) {
	var req types.CreateJobRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "请求体不是合法的 JSON")
		return
	}

	job, err := h.records.CreateJob(ctx, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, job)
}

// HandleGetJob GET /api/jobs/:id
func (h *JobHandler) HandleGetJob(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		badRequest(ctx, c, "岗位 ID 不合法")
		return
	}

	job, err := h.records.GetJob(ctx, id)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, job)
}
