package constants

const (
	// HeaderRequestID 请求 ID 头
	HeaderRequestID = "X-Request-ID"
	// ContextKeyRequestID RequestContext 中保存请求 ID 的键
	ContextKeyRequestID = "request_id"

	// MaxResumeFileSize 上传简历文件的大小上限
	MaxResumeFileSize = 10 << 20
	// MultipartOverhead 请求体上限在文件上限之外预留的空间，留给 multipart 边界和其他字段
	MultipartOverhead = 1 << 20

	// 候选人事件路由键
	EventCandidateCreated       = "candidate.created"
	EventCandidateStatusChanged = "candidate.status_changed"
	EventCandidateDeleted       = "candidate.deleted"
)
