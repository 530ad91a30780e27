package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"path/filepath"
	"strings"
	"testing"

	"recruit-dashboard/internal/api/handler"
	"recruit-dashboard/internal/api/router"
	"recruit-dashboard/internal/config"
	"recruit-dashboard/internal/parser"
	"recruit-dashboard/internal/service"
	"recruit-dashboard/internal/storage"
	"recruit-dashboard/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvaluator struct {
	result *types.Evaluation
	err    error
	calls  int
}

func (s *stubEvaluator) Evaluate(_ context.Context, _, _ string) (*types.Evaluation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	copied := *s.result
	return &copied, nil
}

type testApp struct {
	h         *server.Hertz
	store     *storage.SQLite
	evaluator *stubEvaluator
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store, err := storage.NewSQLite(&config.StoreConfig{
		Path:          filepath.Join(t.TempDir(), "candidates.db"),
		BusyTimeoutMS: 1000,
		LogLevel:      1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	extractor, err := parser.NewResumeExtractor(context.Background())
	require.NoError(t, err)

	evaluator := &stubEvaluator{result: &types.Evaluation{
		CandidateName:    "Jane Doe",
		CandidateEmail:   "jane@example.com",
		Summary:          "Go backend engineer",
		Strengths:        []string{"Go"},
		Weaknesses:       []string{},
		Skills:           []string{"Go", "SQL"},
		MatchExplanation: "good fit",
		Score:            88,
	}}

	records := service.NewRecordService(store)
	evaluations := service.NewEvaluationService(store, records, evaluator, service.WithTextExtractor(extractor))

	health := handler.NewHealthHandler(store)
	serverCfg := config.ServerConfig{Address: "127.0.0.1:0", Mode: config.ModeDevelopment, MaxBodyMB: 10}
	h := router.NewServer(serverCfg, router.Handlers{
		Jobs:        handler.NewJobHandler(records),
		Candidates:  handler.NewCandidateHandler(records),
		Evaluations: handler.NewEvaluationHandler(evaluations, 1024),
		Health:      health,
	})
	return &testApp{h: h, store: store, evaluator: evaluator}
}

func (a *testApp) do(method, url string, body interface{}, headers ...ut.Header) *ut.ResponseRecorder {
	var reqBody *ut.Body
	if body != nil {
		var raw []byte
		switch b := body.(type) {
		case string:
			raw = []byte(b)
		default:
			raw, _ = json.Marshal(b)
		}
		reqBody = &ut.Body{Body: bytes.NewReader(raw), Len: len(raw)}
		headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	}
	return ut.PerformRequest(a.h.Engine, method, url, reqBody, headers...)
}

func decode(t *testing.T, w *ut.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Result().Body(), v), string(w.Result().Body()))
}

func (a *testApp) createJob(t *testing.T, title string) types.Job {
	t.Helper()
	w := a.do(consts.MethodPost, "/api/jobs", map[string]string{"title": title, "description": title + " JD"})
	require.Equal(t, consts.StatusOK, w.Code, string(w.Result().Body()))
	var job types.Job
	decode(t, w, &job)
	return job
}

func (a *testApp) createCandidate(t *testing.T, jobID uint, name string, score int) uint {
	t.Helper()
	w := a.do(consts.MethodPost, "/api/candidates", map[string]interface{}{
		"job_id":      jobID,
		"name":        name,
		"email":       strings.ToLower(name) + "@example.com",
		"resume_text": name + " resume",
		"score":       score,
		"analysis":    map[string]interface{}{"summary": name},
	})
	require.Equal(t, consts.StatusOK, w.Code, string(w.Result().Body()))
	var resp handler.IDResponse
	decode(t, w, &resp)
	return resp.ID
}

func (a *testApp) listCandidates(t *testing.T, jobID uint) []types.Candidate {
	t.Helper()
	w := a.do(consts.MethodGet, "/api/candidates/"+itoa(jobID), nil)
	require.Equal(t, consts.StatusOK, w.Code)
	var list []types.Candidate
	decode(t, w, &list)
	return list
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

// 创建岗位、录入候选人、按分数排序查看
func TestAPI_JobAndCandidateFlow(t *testing.T) {
	app := newTestApp(t)

	w := app.do(consts.MethodGet, "/api/jobs", nil)
	require.Equal(t, consts.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(w.Result().Body()))

	first := app.createJob(t, "Backend Engineer")
	second := app.createJob(t, "Data Scientist")
	assert.Equal(t, "Backend Engineer", first.Title)
	assert.False(t, first.CreatedAt.IsZero())

	var jobs []types.Job
	decode(t, app.do(consts.MethodGet, "/api/jobs", nil), &jobs)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID, "新岗位在前")

	low := app.createCandidate(t, first.ID, "Low", 45)
	high := app.createCandidate(t, first.ID, "High", 91)
	mid := app.createCandidate(t, first.ID, "Mid", 70)

	list := app.listCandidates(t, first.ID)
	require.Len(t, list, 3)
	assert.Equal(t, []uint{high, mid, low}, []uint{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, types.BandStrong, list[0].ScoreBand)
	assert.Equal(t, types.BandModerate, list[1].ScoreBand)
	assert.Equal(t, types.BandWeak, list[2].ScoreBand)
	assert.Equal(t, types.StatusPending, list[0].Status)
	require.NotNil(t, list[0].Analysis)
	assert.JSONEq(t, `{"summary":"High"}`, *list[0].Analysis)

	assert.Empty(t, app.listCandidates(t, second.ID))
	assert.Empty(t, app.listCandidates(t, 9999), "不存在的岗位返回空列表")
}

func TestAPI_GetJob(t *testing.T) {
	app := newTestApp(t)
	job := app.createJob(t, "SRE")

	var got types.Job
	w := app.do(consts.MethodGet, "/api/jobs/"+itoa(job.ID), nil)
	require.Equal(t, consts.StatusOK, w.Code)
	decode(t, w, &got)
	assert.Equal(t, job.ID, got.ID)

	w = app.do(consts.MethodGet, "/api/jobs/424242", nil)
	assert.Equal(t, consts.StatusNotFound, w.Code)

	w = app.do(consts.MethodGet, "/api/jobs/abc", nil)
	assert.Equal(t, consts.StatusBadRequest, w.Code)
}

// 入围、拒绝，以及非法状态
func TestAPI_UpdateCandidateStatus(t *testing.T) {
	app := newTestApp(t)
	job := app.createJob(t, "Backend Engineer")
	id := app.createCandidate(t, job.ID, "Alice", 80)

	w := app.do(consts.MethodPatch, "/api/candidates/"+itoa(id), map[string]string{"status": "shortlisted"})
	require.Equal(t, consts.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, string(w.Result().Body()))
	assert.Equal(t, types.StatusShortlisted, app.listCandidates(t, job.ID)[0].Status)

	w = app.do(consts.MethodPatch, "/api/candidates/"+itoa(id), map[string]string{"status": "shortlisted"})
	assert.Equal(t, consts.StatusOK, w.Code, "相同状态视为成功")

	w = app.do(consts.MethodPatch, "/api/candidates/"+itoa(id), map[string]string{"status": "rejected"})
	require.Equal(t, consts.StatusOK, w.Code)
	assert.Equal(t, types.StatusRejected, app.listCandidates(t, job.ID)[0].Status)

	w = app.do(consts.MethodPatch, "/api/candidates/"+itoa(id), map[string]string{"status": "hired"})
	assert.Equal(t, consts.StatusBadRequest, w.Code)
	var errResp handler.ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, handler.CodeValidation, errResp.Code)
	assert.NotEmpty(t, errResp.RequestID)
	assert.Equal(t, types.StatusRejected, app.listCandidates(t, job.ID)[0].Status, "非法状态不改变记录")

	w = app.do(consts.MethodPatch, "/api/candidates/777", map[string]string{"status": "rejected"})
	assert.Equal(t, consts.StatusNotFound, w.Code)
}

// 删除是幂等的
func TestAPI_DeleteCandidate(t *testing.T) {
	app := newTestApp(t)
	job := app.createJob(t, "Backend Engineer")
	keep := app.createCandidate(t, job.ID, "Keep", 60)
	drop := app.createCandidate(t, job.ID, "Drop", 90)

	for i := 0; i < 2; i++ {
		w := app.do(consts.MethodDelete, "/api/candidates/"+itoa(drop), nil)
		require.Equal(t, consts.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true}`, string(w.Result().Body()))
	}

	list := app.listCandidates(t, job.ID)
	require.Len(t, list, 1)
	assert.Equal(t, keep, list[0].ID)
}

func TestAPI_CreateCandidateValidation(t *testing.T) {
	app := newTestApp(t)
	job := app.createJob(t, "Backend Engineer")

	cases := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"缺少 job_id", map[string]interface{}{"name": "x", "score": 50}, consts.StatusBadRequest},
		{"岗位不存在", map[string]interface{}{"job_id": 9999, "name": "x", "score": 50}, consts.StatusNotFound},
		{"分数越界", map[string]interface{}{"job_id": job.ID, "name": "x", "score": 101}, consts.StatusBadRequest},
		{"负分", map[string]interface{}{"job_id": job.ID, "name": "x", "score": -1}, consts.StatusBadRequest},
		{"非法 JSON", "{not json", consts.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.do(consts.MethodPost, "/api/candidates", tc.body)
			assert.Equal(t, tc.status, w.Code, string(w.Result().Body()))
		})
	}
	assert.Empty(t, app.listCandidates(t, job.ID))
}

func TestAPI_CreateJobValidation(t *testing.T) {
	app := newTestApp(t)

	w := app.do(consts.MethodPost, "/api/jobs", map[string]string{"title": "  ", "description": "d"})
	assert.Equal(t, consts.StatusBadRequest, w.Code)
	w = app.do(consts.MethodPost, "/api/jobs", map[string]string{"title": "t"})
	assert.Equal(t, consts.StatusBadRequest, w.Code)
}

// 评估失败时不产生候选人
func TestAPI_IngestEvaluationFailure(t *testing.T) {
	app := newTestApp(t)
	job := app.createJob(t, "Backend Engineer")
	app.evaluator.err = errors.New("model unavailable")

	w := app.do(consts.MethodPost, "/api/candidates/ingest", map[string]interface{}{"job_id": job.ID, "resume_text": "resume"})
	assert.Equal(t, consts.StatusBadGateway, w.Code)
	var errResp handler.ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, handler.CodeExternalService, errResp.Code)
	assert.NotContains(t, errResp.Error, "model unavailable", "不暴露底层错误")

	assert.Empty(t, app.listCandidates(t, job.ID))
	assert.Equal(t, 1, app.evaluator.calls)
}

func TestAPI_IngestCreatesCandidate(t *testing.T) {
	app := newTestApp(t)
	job := app.createJob(t, "Backend Engineer")

	w := app.do(consts.MethodPost, "/api/candidates/ingest", map[string]interface{}{"job_id": job.ID, "resume_text": "Jane Doe, Go"})
	require.Equal(t, consts.StatusOK, w.Code, string(w.Result().Body()))
	var result types.IngestResult
	decode(t, w, &result)
	assert.NotZero(t, result.ID)
	assert.Equal(t, 88, result.Evaluation.Score)

	list := app.listCandidates(t, job.ID)
	require.Len(t, list, 1)
	assert.Equal(t, "Jane Doe", list[0].Name)
	assert.Equal(t, "Jane Doe, Go", list[0].ResumeText)
	assert.Equal(t, 88, list[0].Score)
}

func TestAPI_EvaluateDoesNotPersist(t *testing.T) {
	app := newTestApp(t)
	job := app.createJob(t, "Backend Engineer")

	w := app.do(consts.MethodPost, "/api/evaluations", map[string]interface{}{"job_id": job.ID, "resume_text": "resume"})
	require.Equal(t, consts.StatusOK, w.Code)
	var eval types.Evaluation
	decode(t, w, &eval)
	assert.Equal(t, "Jane Doe", eval.CandidateName)
	assert.Empty(t, app.listCandidates(t, job.ID))

	w = app.do(consts.MethodPost, "/api/evaluations", map[string]interface{}{"job_id": 31337, "resume_text": "resume"})
	assert.Equal(t, consts.StatusNotFound, w.Code)
}

func multipartBody(t *testing.T, field, fileName string, content []byte) (*ut.Body, ut.Header) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &ut.Body{Body: bytes.NewReader(buf.Bytes()), Len: buf.Len()},
		ut.Header{Key: "Content-Type", Value: mw.FormDataContentType()}
}

func TestAPI_ExtractResume(t *testing.T) {
	app := newTestApp(t)

	body, header := multipartBody(t, "file", "resume.txt", []byte("  Jane Doe\nGo engineer  "))
	w := ut.PerformRequest(app.h.Engine, consts.MethodPost, "/api/resumes/extract", body, header)
	require.Equal(t, consts.StatusOK, w.Code, string(w.Result().Body()))
	var extracted types.ExtractedResume
	decode(t, w, &extracted)
	assert.Equal(t, "resume.txt", extracted.Filename)
	assert.Equal(t, "Jane Doe\nGo engineer", extracted.Text)
	assert.Equal(t, 20, extracted.Chars)
	assert.Empty(t, extracted.ObjectKey)

	body, header = multipartBody(t, "file", "resume.exe", []byte("MZ"))
	w = ut.PerformRequest(app.h.Engine, consts.MethodPost, "/api/resumes/extract", body, header)
	assert.Equal(t, consts.StatusBadRequest, w.Code)

	body, header = multipartBody(t, "file", "big.txt", bytes.Repeat([]byte("a"), 2048))
	w = ut.PerformRequest(app.h.Engine, consts.MethodPost, "/api/resumes/extract", body, header)
	assert.Equal(t, consts.StatusBadRequest, w.Code, "超过上限")

	body, header = multipartBody(t, "other", "resume.txt", []byte("x"))
	w = ut.PerformRequest(app.h.Engine, consts.MethodPost, "/api/resumes/extract", body, header)
	assert.Equal(t, consts.StatusBadRequest, w.Code, "缺少 file 字段")
}

func TestAPI_RequestIDAndHealth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(consts.MethodGet, "/api/health", nil, ut.Header{Key: "X-Request-ID", Value: "req-123"})
	require.Equal(t, consts.StatusOK, w.Code)
	assert.Equal(t, "req-123", string(w.Result().Header.Peek("X-Request-ID")))
	var health handler.HealthResponse
	decode(t, w, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Components["store"])

	w = app.do(consts.MethodGet, "/api/health", nil)
	assert.Len(t, string(w.Result().Header.Peek("X-Request-ID")), 36, "未传入时生成 UUID")

	w = app.do(consts.MethodGet, "/api/unknown", nil)
	assert.Equal(t, consts.StatusNotFound, w.Code)
}
