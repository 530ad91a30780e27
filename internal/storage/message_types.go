package storage

import "time"

// CandidateEvent 候选人变更事件，提交成功后发布
type CandidateEvent struct {
	Event       string    `json:"event"`
	CandidateID uint      `json:"candidate_id"`
	JobID       uint      `json:"job_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Score       *int      `json:"score,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
