package handler

import (
	"context"

	"recruit-dashboard/internal/service"
	"recruit-dashboard/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// CandidateHandler 候选人增删改查
type CandidateHandler struct {
	records *service.RecordService
}

// NewCandidateHandler 创建 CandidateHandler
func NewCandidateHandler(records *service.RecordService) *CandidateHandler {
	return &CandidateHandler{records: records}
}

// HandleListCandidates GET /api/candidates/:jobId
func (h *CandidateHandler) HandleListCandidates(ctx context.Context, c *app.RequestContext) {
	jobID, ok := parseID(c, "jobId")
	if !ok {
		badRequest(ctx, c, "岗位 ID 不合法")
		return
	}

	candidates, err := h.records.ListCandidates(ctx, jobID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, candidates)
}

// HandleCreateCandidate POST /api/candidates
func (h *CandidateHandler) HandleCreateCandidate(ctx context.Context, c *app.RequestContext) {
	var req types.CreateCandidateRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "请求体不是合法的 JSON")
		return
	}

	id, err := h.records.CreateCandidate(ctx, req)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, IDResponse{ID: id})
}

// HandleUpdateStatus PATCH /api/candidates/:id
func (h *CandidateHandler) HandleUpdateStatus(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		badRequest(ctx, c, "候选人 ID 不合法")
		return
	}
	var req types.UpdateStatusRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(ctx, c, "请求体不是合法的 JSON")
		return
	}

	if err := h.records.UpdateCandidateStatus(ctx, id, req.Status); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, SuccessResponse{Success: true})
}

// HandleDeleteCandidate DELETE /api/candidates/:id，重复删除同样返回成功
func (h *CandidateHandler) HandleDeleteCandidate(ctx context.Context, c *app.RequestContext) {
	id, ok := parseID(c, "id")
	if !ok {
		badRequest(ctx, c, "候选人 ID 不合法")
		return
	}

	if err := h.records.DeleteCandidate(ctx, id); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, SuccessResponse{Success: true})
}
