package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"recruit-dashboard/internal/constants"
	applogger "recruit-dashboard/internal/logger"
	"recruit-dashboard/internal/storage"
	"recruit-dashboard/internal/storage/models"
	"recruit-dashboard/internal/types"
)

// RecordService 岗位与候选人的增删改查。本身无状态，存储句柄在启动时注入。
type RecordService struct {
	store     storage.RecordStore
	publisher EventPublisher
}

// RecordOption RecordService 的可选组件
type RecordOption func(*RecordService)

// WithEventPublisher 候选人写操作成功后发布事件
func WithEventPublisher(p EventPublisher) RecordOption {
	return func(s *RecordService) {
		s.publisher = p
	}
}

// NewRecordService 创建记录服务
func NewRecordService(store storage.RecordStore, opts ...RecordOption) *RecordService {
	s := &RecordService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListJobs 最新创建的岗位在前
func (s *RecordService) ListJobs(ctx context.Context) ([]types.Job, error) {
	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		return nil, newStoreError("list", "job", err)
	}
	out := make([]types.Job, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobDTO(&jobs[i]))
	}
	return out, nil
}

// CreateJob 标题和描述都不能为空
func (s *RecordService) CreateJob(ctx context.Context, req types.CreateJobRequest) (*types.Job, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if title == "" {
		return nil, newValidationError("create", "job", "title 不能为空")
	}
	if description == "" {
		return nil, newValidationError("create", "job", "description 不能为空")
	}

	job := &models.Job{Title: title, Description: description}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, newStoreError("create", "job", err)
	}
	applogger.Ctx(ctx).Info().Uint("job_id", job.ID).Msg("岗位已创建")

	dto := toJobDTO(job)
	return &dto, nil
}

// GetJob 按 ID 查询岗位
func (s *RecordService) GetJob(ctx context.Context, id uint) (*types.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return nil, newNotFoundError("get", "job", fmt.Sprintf("岗位 %d 不存在", id))
		}
		return nil, newStoreError("get", "job", err)
	}
	dto := toJobDTO(job)
	return &dto, nil
}

// ListCandidates 分数高的在前，同分按 ID 升序。岗位不存在时返回空列表。
func (s *RecordService) ListCandidates(ctx context.Context, jobID uint) ([]types.Candidate, error) {
	candidates, err := s.store.ListCandidatesByJob(ctx, jobID)
	if err != nil {
		return nil, newStoreError("list", "candidate", err)
	}
	out := make([]types.Candidate, 0, len(candidates))
	for i := range candidates {
		out = append(out, toCandidateDTO(&candidates[i]))
	}
	return out, nil
}

// CreateCandidate 校验岗位存在、分数在 [0,100] 后写入，analysis 原样序列化保存
func (s *RecordService) CreateCandidate(ctx context.Context, req types.CreateCandidateRequest) (uint, error) {
	if req.JobID == 0 {
		return 0, newValidationError("create", "candidate", "job_id 不能为空")
	}
	if req.Score < 0 || req.Score > 100 {
		return 0, newValidationError("create", "candidate", fmt.Sprintf("score 必须在 0 到 100 之间, 实际为 %d", req.Score))
	}
	if len(req.Analysis) > 0 && !json.Valid(req.Analysis) {
		return 0, newValidationError("create", "candidate", "analysis 不是合法的JSON")
	}

	if _, err := s.store.GetJob(ctx, req.JobID); err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return 0, newNotFoundError("create", "candidate", fmt.Sprintf("岗位 %d 不存在", req.JobID))
		}
		return 0, newStoreError("create", "candidate", err)
	}

	analysis, err := models.ValueToJSON(req.Analysis)
	if err != nil {
		return 0, newValidationError("create", "candidate", "analysis 序列化失败")
	}

	candidate := &models.Candidate{
		JobID:      req.JobID,
		Name:       req.Name,
		Email:      req.Email,
		ResumeText: req.ResumeText,
		Score:      req.Score,
		Analysis:   analysis,
		Status:     string(types.StatusPending),
	}
	if err := s.store.CreateCandidate(ctx, candidate); err != nil {
		return 0, newStoreError("create", "candidate", err)
	}
	applogger.Ctx(ctx).Info().Uint("candidate_id", candidate.ID).Uint("job_id", candidate.JobID).Int("score", candidate.Score).Msg("候选人已创建")

	score := candidate.Score
	s.publish(ctx, constants.EventCandidateCreated, storage.CandidateEvent{
		CandidateID: candidate.ID,
		JobID:       candidate.JobID,
		Status:      candidate.Status,
		Score:       &score,
	})
	return candidate.ID, nil
}

// UpdateCandidateStatus 只接受三种合法状态，ID 不存在时返回 ErrNotFound
func (s *RecordService) UpdateCandidateStatus(ctx context.Context, id uint, status types.CandidateStatus) error {
	if !status.Valid() {
		return newValidationError("update", "candidate", fmt.Sprintf("status 不合法: %q", status))
	}
	found, err := s.store.UpdateCandidateStatus(ctx, id, string(status))
	if err != nil {
		return newStoreError("update", "candidate", err)
	}
	if !found {
		return newNotFoundError("update", "candidate", fmt.Sprintf("候选人 %d 不存在", id))
	}

	s.publish(ctx, constants.EventCandidateStatusChanged, storage.CandidateEvent{
		CandidateID: id,
		Status:      string(status),
	})
	return nil
}

// DeleteCandidate 物理删除。删除不存在的 ID 不算错误。
func (s *RecordService) DeleteCandidate(ctx context.Context, id uint) error {
	deleted, err := s.store.DeleteCandidate(ctx, id)
	if err != nil {
		return newStoreError("delete", "candidate", err)
	}
	if !deleted {
		applogger.Ctx(ctx).Debug().Uint("candidate_id", id).Msg("候选人不存在, 忽略删除")
		return nil
	}
	s.publish(ctx, constants.EventCandidateDeleted, storage.CandidateEvent{CandidateID: id})
	return nil
}

// publish 在提交成功后尽力发布事件，失败只记日志
func (s *RecordService) publish(ctx context.Context, routingKey string, event storage.CandidateEvent) {
	if s.publisher == nil {
		return
	}
	event.Event = routingKey
	event.RequestID = applogger.RequestID(ctx)
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.PublishJSON(ctx, routingKey, event); err != nil {
		applogger.Ctx(ctx).Warn().Err(err).Str("event", routingKey).Uint("candidate_id", event.CandidateID).Msg("发布候选人事件失败")
	}
}

func toJobDTO(job *models.Job) types.Job {
	return types.Job{
		ID:          job.ID,
		Title:       job.Title,
		Description: job.Description,
		CreatedAt:   job.CreatedAt,
	}
}

func toCandidateDTO(c *models.Candidate) types.Candidate {
	return types.Candidate{
		ID:         c.ID,
		JobID:      c.JobID,
		Name:       c.Name,
		Email:      c.Email,
		ResumeText: c.ResumeText,
		Score:      c.Score,
		ScoreBand:  types.BandForScore(c.Score),
		Analysis:   c.AnalysisString(),
		Status:     types.CandidateStatus(c.Status),
		CreatedAt:  c.CreatedAt,
	}
}
