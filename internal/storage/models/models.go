package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// 候选人状态取值
const (
	StatusPending     = "pending"
	StatusShortlisted = "shortlisted"
	StatusRejected    = "rejected"
)

// Job 岗位表，创建后不可修改
type Job struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime;default:CURRENT_TIMESTAMP;index:idx_jobs_created_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// Candidate 候选人表。Analysis 为评估结果的原样 JSON，存储层不解析其内容。
type Candidate struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	JobID      uint           `gorm:"not null;index:idx_candidates_job_score,priority:1"`
	Name       string         `gorm:"type:text;not null;default:''"`
	Email      string         `gorm:"type:text"`
	ResumeText string         `gorm:"type:text"`
	Score      int            `gorm:"index:idx_candidates_job_score,priority:2"`
	Analysis   datatypes.JSON `gorm:"type:text"`
	Status     string         `gorm:"type:text;not null;default:'pending'"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;default:CURRENT_TIMESTAMP"`
	Job        *Job           `gorm:"foreignKey:JobID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// AnalysisString 返回序列化后的 analysis，未设置时返回 nil
func (c *Candidate) AnalysisString() *string {
	if len(c.Analysis) == 0 {
		return nil
	}
	s := string(c.Analysis)
	return &s
}

// StringToJSON 把字符串包装成 datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON([]byte(s))
}

// ValueToJSON 序列化任意值为 datatypes.JSON，nil 返回空值
func ValueToJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 || string(raw) == "null" {
			return nil, nil
		}
		return datatypes.JSON(raw), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
