package types

import (
	"encoding/json"
	"time"
)

// CandidateStatus 候选人筛选状态
type CandidateStatus string

const (
	StatusPending     CandidateStatus = "pending"
	StatusShortlisted CandidateStatus = "shortlisted"
	StatusRejected    CandidateStatus = "rejected"
)

// Valid 是否为三种合法状态之一
func (s CandidateStatus) Valid() bool {
	switch s {
	case StatusPending, StatusShortlisted, StatusRejected:
		return true
	}
	return false
}

// ScoreBand 分数档位，前端据此着色
type ScoreBand string

const (
	BandStrong   ScoreBand = "strong"
	BandModerate ScoreBand = "moderate"
	BandWeak     ScoreBand = "weak"
)

// BandForScore ≥80 strong，60–79 moderate，<60 weak
func BandForScore(score int) ScoreBand {
	switch {
	case score >= 80:
		return BandStrong
	case score >= 60:
		return BandModerate
	default:
		return BandWeak
	}
}

// Evaluation 模型对一份简历的结构化评估，所有字段都是必填
type Evaluation struct {
	CandidateName    string   `json:"candidate_name"`
	CandidateEmail   string   `json:"candidate_email"`
	Summary          string   `json:"summary"`
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
	Skills           []string `json:"skills"`
	MatchExplanation string   `json:"match_explanation"`
	Score            int      `json:"score"`
}

// Job 岗位的对外表示
type Job struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Candidate 候选人的对外表示。Analysis 保持存储时的 JSON 字符串，由调用方自行解析。
type Candidate struct {
	ID         uint            `json:"id"`
	JobID      uint            `json:"job_id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	ResumeText string          `json:"resume_text"`
	Score      int             `json:"score"`
	ScoreBand  ScoreBand       `json:"score_band"`
	Analysis   *string         `json:"analysis"`
	Status     CandidateStatus `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CreateJobRequest 创建岗位
type CreateJobRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateCandidateRequest 创建候选人。Analysis 原样保存，不校验内部字段。
type CreateCandidateRequest struct {
	JobID      uint            `json:"job_id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	ResumeText string          `json:"resume_text"`
	Score      int             `json:"score"`
	Analysis   json.RawMessage `json:"analysis"`
}

// UpdateStatusRequest 更新候选人状态
type UpdateStatusRequest struct {
	Status CandidateStatus `json:"status"`
}

// EvaluateRequest 评估或入库一份简历
type EvaluateRequest struct {
	JobID      uint   `json:"job_id"`
	ResumeText string `json:"resume_text"`
}

// IngestResult 评估并入库的结果
type IngestResult struct {
	ID         uint        `json:"id"`
	Evaluation *Evaluation `json:"evaluation"`
}

// ExtractedResume 上传文件的文本提取结果
type ExtractedResume struct {
	Filename    string `json:"filename"`
	Text        string `json:"text"`
	Chars       int    `json:"chars"`
	ObjectKey   string `json:"object_key,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}
