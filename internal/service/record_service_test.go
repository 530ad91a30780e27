package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"recruit-dashboard/internal/config"
	"recruit-dashboard/internal/service"
	"recruit-dashboard/internal/storage"
	"recruit-dashboard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := storage.NewSQLite(&config.StoreConfig{
		Path:     filepath.Join(t.TempDir(), "candidates.db"),
		LogLevel: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []storage.CandidateEvent
	err    error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, routingKey string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	if e, ok := data.(storage.CandidateEvent); ok {
		p.events = append(p.events, e)
	}
	return p.err
}

const sampleAnalysis = `{"candidate_name":"Jane Doe","candidate_email":"jane@x.com","summary":"Solid backend engineer",` +
	`"strengths":["Go","Distributed systems","Mentoring"],"weaknesses":["Frontend"],"skills":["Go","Kafka","SQL"],` +
	`"match_explanation":"Strong overlap","score":82}`

func TestRecordService_CreateAndListJobs(t *testing.T) {
	svc := service.NewRecordService(newTestStore(t))
	ctx := context.Background()

	first, err := svc.CreateJob(ctx, types.CreateJobRequest{Title: "Backend Engineer", Description: "Go, distributed systems"})
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.ID)

	second, err := svc.CreateJob(ctx, types.CreateJobRequest{Title: "Frontend Engineer", Description: "React"})
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.ID)

	jobs, err := svc.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID, "最新的岗位排在最前")
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestRecordService_CreateJobValidation(t *testing.T) {
	svc := service.NewRecordService(newTestStore(t))

	cases := []struct {
		name string
		req  types.CreateJobRequest
	}{
		{"缺少标题", types.CreateJobRequest{Description: "desc"}},
		{"缺少描述", types.CreateJobRequest{Title: "title"}},
		{"只有空白", types.CreateJobRequest{Title: "  ", Description: "\n"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), tc.req)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}

	jobs, err := svc.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs, "校验失败不应产生部分写入")
}

func TestRecordService_GetJobNotFound(t *testing.T) {
	svc := service.NewRecordService(newTestStore(t))
	_, err := svc.GetJob(context.Background(), 7)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRecordService_CandidateLifecycle(t *testing.T) {
	pub := &recordingPublisher{}
	svc := service.NewRecordService(newTestStore(t), service.WithEventPublisher(pub))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, types.CreateJobRequest{Title: "Backend Engineer", Description: "Go, distributed systems"})
	require.NoError(t, err)

	id, err := svc.CreateCandidate(ctx, types.CreateCandidateRequest{
		JobID:      job.ID,
		Name:       "Jane Doe",
		Email:      "jane@x.com",
		ResumeText: "...",
		Score:      82,
		Analysis:   json.RawMessage(sampleAnalysis),
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1), id)

	list, err := svc.ListCandidates(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, job.ID, got.JobID)
	assert.Equal(t, 82, got.Score)
	assert.Equal(t, types.BandStrong, got.ScoreBand)
	assert.Equal(t, types.StatusPending, got.Status)

	require.NotNil(t, got.Analysis)
	var analysis types.Evaluation
	require.NoError(t, json.Unmarshal([]byte(*got.Analysis), &analysis))
	assert.Equal(t, "Solid backend engineer", analysis.Summary)
	assert.Equal(t, []string{"Go", "Distributed systems", "Mentoring"}, analysis.Strengths)
	assert.Equal(t, []string{"Frontend"}, analysis.Weaknesses)
	assert.Equal(t, []string{"Go", "Kafka", "SQL"}, analysis.Skills)
	assert.Equal(t, "Strong overlap", analysis.MatchExplanation)

	require.NoError(t, svc.UpdateCandidateStatus(ctx, id, types.StatusShortlisted))
	list, err = svc.ListCandidates(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, types.StatusShortlisted, list[0].Status)
	// 状态更新不影响其他字段
	assert.Equal(t, got.Name, list[0].Name)
	assert.Equal(t, got.Score, list[0].Score)
	assert.Equal(t, *got.Analysis, *list[0].Analysis)
	assert.Equal(t, got.CreatedAt, list[0].CreatedAt)

	require.NoError(t, svc.DeleteCandidate(ctx, id))
	require.NoError(t, svc.DeleteCandidate(ctx, id), "重复删除不是错误")

	list, err = svc.ListCandidates(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.Equal(t, []string{"candidate.created", "candidate.status_changed", "candidate.deleted"}, pub.keys)
	require.Len(t, pub.events, 3)
	assert.Equal(t, id, pub.events[0].CandidateID)
	require.NotNil(t, pub.events[0].Score)
	assert.Equal(t, 82, *pub.events[0].Score)
	assert.Equal(t, "shortlisted", pub.events[1].Status)
}

func TestRecordService_ListCandidatesOrdering(t *testing.T) {
	svc := service.NewRecordService(newTestStore(t))
	ctx := context.Background()
	job, err := svc.CreateJob(ctx, types.CreateJobRequest{Title: "QA", Description: "testing"})
	require.NoError(t, err)

	for _, score := range []int{40, 95, 60, 95, 0} {
		_, err := svc.CreateCandidate(ctx, types.CreateCandidateRequest{JobID: job.ID, Name: "c", Score: score})
		require.NoError(t, err)
	}

	list, err := svc.ListCandidates(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, list, 5)
	scores := make([]int, 0, len(list))
	for _, c := range list {
		scores = append(scores, c.Score)
	}
	assert.Equal(t, []int{95, 95, 60, 40, 0}, scores)
	assert.Less(t, list[0].ID, list[1].ID, "同分按 ID 升序")
	assert.Equal(t, types.BandModerate, list[2].ScoreBand)
	assert.Equal(t, types.BandWeak, list[3].ScoreBand)
	assert.Nil(t, list[4].Analysis)

	unknown, err := svc.ListCandidates(ctx, 999)
	require.NoError(t, err)
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

func TestRecordService_CreateCandidateRejectsBadInput(t *testing.T) {
	svc := service.NewRecordService(newTestStore(t))
	ctx := context.Background()
	job, err := svc.CreateJob(ctx, types.CreateJobRequest{Title: "QA", Description: "testing"})
	require.NoError(t, err)

	cases := []struct {
		name    string
		req     types.CreateCandidateRequest
		wantErr error
	}{
		{"缺少岗位", types.CreateCandidateRequest{Score: 50}, service.ErrValidation},
		{"岗位不存在", types.CreateCandidateRequest{JobID: job.ID + 10, Score: 50}, service.ErrNotFound},
		{"分数过高", types.CreateCandidateRequest{JobID: job.ID, Score: 101}, service.ErrValidation},
		{"分数为负", types.CreateCandidateRequest{JobID: job.ID, Score: -1}, service.ErrValidation},
		{"analysis非法", types.CreateCandidateRequest{JobID: job.ID, Score: 50, Analysis: json.RawMessage(`{oops`)}, service.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateCandidate(ctx, tc.req)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	list, err := svc.ListCandidates(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecordService_UpdateStatusErrors(t *testing.T) {
	svc := service.NewRecordService(newTestStore(t))
	ctx := context.Background()

	err := svc.UpdateCandidateStatus(ctx, 1, types.CandidateStatus("archived"))
	assert.ErrorIs(t, err, service.ErrValidation)

	err = svc.UpdateCandidateStatus(ctx, 12345, types.StatusRejected)
	assert.ErrorIs(t, err, service.ErrNotFound)

	var recErr *service.RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, "update", recErr.Op)
	assert.Equal(t, "candidate", recErr.Entity)
}

func TestRecordService_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := service.NewRecordService(newTestStore(t), service.WithEventPublisher(pub))
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, types.CreateJobRequest{Title: "QA", Description: "testing"})
	require.NoError(t, err)
	id, err := svc.CreateCandidate(ctx, types.CreateCandidateRequest{JobID: job.ID, Name: "x", Score: 10})
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, pub.keys, 1)
}
