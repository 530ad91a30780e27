package service

import (
	"context"
	"io"

	"recruit-dashboard/internal/types"
)

//
// 评估相关接口
//

// ResumeEvaluator 把 (简历文本, 岗位描述) 转成结构化评估。
// 实现必须是同步的，失败时返回错误而不是部分结果。
type ResumeEvaluator interface {
	Evaluate(ctx context.Context, resumeText, jobDescription string) (*types.Evaluation, error)
}

// ResumeTextExtractor 从上传的文件中提取纯文本
type ResumeTextExtractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (string, error)
	Supports(fileName string) bool
}

//
// 可选基础设施
//

// JobDescriptionCache 岗位描述缓存，未命中时返回错误
type JobDescriptionCache interface {
	GetJobDescription(ctx context.Context, jobID uint) (string, error)
	SetJobDescription(ctx context.Context, jobID uint, description string) error
}

// EventPublisher 候选人变更事件发布
type EventPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, data interface{}) error
}

// ResumeArchive 简历原件与提取文本的归档
type ResumeArchive interface {
	UploadResumeFile(ctx context.Context, archiveKey, fileName string, reader io.Reader, fileSize int64) (string, error)
	UploadParsedText(ctx context.Context, archiveKey, text string) (string, error)
	PresignedOriginalURL(ctx context.Context, objectName string) (string, error)
}
