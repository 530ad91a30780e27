package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	applogger "recruit-dashboard/internal/logger"
	"recruit-dashboard/internal/storage"
	"recruit-dashboard/internal/types"
)

// EvaluationService 调用评估模型，并在评估成功后才写入候选人
type EvaluationService struct {
	store     storage.RecordStore
	records   *RecordService
	evaluator ResumeEvaluator
	extractor ResumeTextExtractor
	cache     JobDescriptionCache
	archive   ResumeArchive
}

// EvaluationOption EvaluationService 的可选组件
type EvaluationOption func(*EvaluationService)

// WithJobDescriptionCache 岗位描述读穿缓存
func WithJobDescriptionCache(cache JobDescriptionCache) EvaluationOption {
	return func(s *EvaluationService) {
		s.cache = cache
	}
}

// WithResumeArchive 上传的简历原件和提取文本写入对象存储
func WithResumeArchive(archive ResumeArchive) EvaluationOption {
	return func(s *EvaluationService) {
		s.archive = archive
	}
}

// WithTextExtractor 设置简历文本提取器
func WithTextExtractor(extractor ResumeTextExtractor) EvaluationOption {
	return func(s *EvaluationService) {
		s.extractor = extractor
	}
}

// NewEvaluationService 创建评估服务
func NewEvaluationService(store storage.RecordStore, records *RecordService, evaluator ResumeEvaluator, opts ...EvaluationOption) *EvaluationService {
	s := &EvaluationService{
		store:     store,
		records:   records,
		evaluator: evaluator,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate 对简历做一次评估，不落库。每次调用都会请求模型，结果不缓存。
func (s *EvaluationService) Evaluate(ctx context.Context, req types.EvaluateRequest) (*types.Evaluation, error) {
	if req.JobID == 0 {
		return nil, newValidationError("evaluate", "resume", "job_id 不能为空")
	}
	if strings.TrimSpace(req.ResumeText) == "" {
		return nil, newValidationError("evaluate", "resume", "resume_text 不能为空")
	}
	if s.evaluator == nil {
		return nil, newExternalError("evaluate", "resume", "评估服务未配置", nil)
	}

	description, err := s.jobDescription(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	evaluation, err := s.evaluator.Evaluate(ctx, req.ResumeText, description)
	if err != nil {
		return nil, newExternalError("evaluate", "resume", "简历评估失败, 请稍后重试", err)
	}
	if evaluation == nil {
		return nil, newExternalError("evaluate", "resume", "评估服务返回空结果", nil)
	}
	if evaluation.Score < 0 || evaluation.Score > 100 {
		return nil, newExternalError("evaluate", "resume", fmt.Sprintf("评估分数越界: %d", evaluation.Score), nil)
	}
	applogger.Ctx(ctx).Info().Uint("job_id", req.JobID).Int("score", evaluation.Score).Msg("简历评估完成")
	return evaluation, nil
}

// Ingest 评估后创建候选人。评估失败时不会产生任何记录。
func (s *EvaluationService) Ingest(ctx context.Context, req types.EvaluateRequest) (*types.IngestResult, error) {
	evaluation, err := s.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	analysis, err := json.Marshal(evaluation)
	if err != nil {
		return nil, newExternalError("ingest", "candidate", "评估结果序列化失败", err)
	}

	id, err := s.records.CreateCandidate(ctx, types.CreateCandidateRequest{
		JobID:      req.JobID,
		Name:       evaluation.CandidateName,
		Email:      evaluation.CandidateEmail,
		ResumeText: req.ResumeText,
		Score:      evaluation.Score,
		Analysis:   analysis,
	})
	if err != nil {
		return nil, err
	}
	return &types.IngestResult{ID: id, Evaluation: evaluation}, nil
}

// ExtractResume 从上传文件中提取文本；配置了归档时同时保存原件和文本
func (s *EvaluationService) ExtractResume(ctx context.Context, fileName string, data []byte) (*types.ExtractedResume, error) {
	if s.extractor == nil {
		return nil, newValidationError("extract", "resume", "未配置简历文本提取器")
	}
	if len(data) == 0 {
		return nil, newValidationError("extract", "resume", "上传文件为空")
	}
	if !s.extractor.Supports(fileName) {
		return nil, newValidationError("extract", "resume", fmt.Sprintf("不支持的文件类型: %s", fileName))
	}

	text, err := s.extractor.Extract(ctx, fileName, data)
	if err != nil {
		return nil, &RecordError{Op: "extract", Entity: "resume", BaseErr: ErrValidation, Detail: "无法从文件中提取文本", Cause: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, newValidationError("extract", "resume", "文件中没有可提取的文本")
	}

	result := &types.ExtractedResume{
		Filename: fileName,
		Text:     text,
		Chars:    utf8.RuneCountInString(text),
	}

	if s.archive != nil {
		key := storage.NewArchiveKey()
		objectKey, err := s.archive.UploadResumeFile(ctx, key, fileName, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			applogger.Ctx(ctx).Warn().Err(err).Str("file", fileName).Msg("归档简历原件失败")
			return result, nil
		}
		result.ObjectKey = objectKey
		if downloadURL, err := s.archive.PresignedOriginalURL(ctx, objectKey); err != nil {
			applogger.Ctx(ctx).Warn().Err(err).Str("object", objectKey).Msg("生成简历下载地址失败")
		} else {
			result.DownloadURL = downloadURL
		}
		if _, err := s.archive.UploadParsedText(ctx, key, text); err != nil {
			applogger.Ctx(ctx).Warn().Err(err).Str("file", fileName).Msg("归档简历文本失败")
		}
	}
	return result, nil
}

// jobDescription 先查缓存，未命中时读库并回填。缓存故障不影响评估。
func (s *EvaluationService) jobDescription(ctx context.Context, jobID uint) (string, error) {
	if s.cache != nil {
		description, err := s.cache.GetJobDescription(ctx, jobID)
		if err == nil && description != "" {
			return description, nil
		}
		if err != nil && !errors.Is(err, storage.ErrCacheMiss) {
			applogger.Ctx(ctx).Warn().Err(err).Uint("job_id", jobID).Msg("读取岗位描述缓存失败")
		}
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return "", newNotFoundError("evaluate", "job", fmt.Sprintf("岗位 %d 不存在", jobID))
		}
		return "", newStoreError("evaluate", "job", err)
	}

	if s.cache != nil {
		if err := s.cache.SetJobDescription(ctx, jobID, job.Description); err != nil {
			applogger.Ctx(ctx).Warn().Err(err).Uint("job_id", jobID).Msg("写入岗位描述缓存失败")
		}
	}
	return job.Description, nil
}
