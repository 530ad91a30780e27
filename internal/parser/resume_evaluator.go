package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	applogger "recruit-dashboard/internal/logger"
	"recruit-dashboard/internal/tracing"
	"recruit-dashboard/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultSystemInstruction 评估用的系统指令
const DefaultSystemInstruction = "You are an expert HR recruiter. Analyze the resume objectively and provide a structured evaluation in JSON format."

const defaultPromptTemplate = `Analyze the following resume against the job description provided.

JOB DESCRIPTION:
%s

RESUME:
%s`

var evaluatorTracer = otel.Tracer("recruit-dashboard/parser/evaluator")

// rawEvaluation 用指针区分"字段缺失"和"零值"
type rawEvaluation struct {
	CandidateName    *string   `json:"candidate_name"`
	CandidateEmail   *string   `json:"candidate_email"`
	Summary          *string   `json:"summary"`
	Strengths        *[]string `json:"strengths"`
	Weaknesses       *[]string `json:"weaknesses"`
	Skills           *[]string `json:"skills"`
	MatchExplanation *string   `json:"match_explanation"`
	Score            *float64  `json:"score"`
}

// LLMResumeEvaluator 把简历和岗位描述交给聊天模型，解析出结构化评估
type LLMResumeEvaluator struct {
	llmModel          model.ToolCallingChatModel
	systemInstruction string
	promptTemplate    string
	timeout           time.Duration
	log               zerolog.Logger
}

// LLMResumeEvaluatorOption 评估器配置选项
type LLMResumeEvaluatorOption func(*LLMResumeEvaluator)

// WithSystemInstruction 替换系统指令
func WithSystemInstruction(instruction string) LLMResumeEvaluatorOption {
	return func(e *LLMResumeEvaluator) {
		e.systemInstruction = instruction
	}
}

// WithCustomPromptTemplate 替换用户提示词模板，模板依次接收岗位描述和简历两个 %s
func WithCustomPromptTemplate(template string) LLMResumeEvaluatorOption {
	return func(e *LLMResumeEvaluator) {
		e.promptTemplate = template
	}
}

// WithEvaluationTimeout 单次评估的超时，0 表示只受调用方上下文约束
func WithEvaluationTimeout(d time.Duration) LLMResumeEvaluatorOption {
	return func(e *LLMResumeEvaluator) {
		e.timeout = d
	}
}

// NewLLMResumeEvaluator 创建评估器
func NewLLMResumeEvaluator(llmModel model.ToolCallingChatModel, options ...LLMResumeEvaluatorOption) *LLMResumeEvaluator {
	e := &LLMResumeEvaluator{
		llmModel:          llmModel,
		systemInstruction: DefaultSystemInstruction,
		promptTemplate:    defaultPromptTemplate,
		log:               applogger.Component("resume_evaluator"),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// BuildMessages 构造发送给模型的消息
func (e *LLMResumeEvaluator) BuildMessages(resumeText, jobDescription string) []*einoschema.Message {
	return []*einoschema.Message{
		einoschema.SystemMessage(e.systemInstruction),
		einoschema.UserMessage(fmt.Sprintf(e.promptTemplate, jobDescription, resumeText)),
	}
}

// Evaluate 同步调用模型一次，失败直接返回错误，不重试
func (e *LLMResumeEvaluator) Evaluate(ctx context.Context, resumeText, jobDescription string) (*types.Evaluation, error) {
	if e.llmModel == nil {
		return nil, fmt.Errorf("LLMResumeEvaluator: llmModel is not initialized")
	}

	ctx, span := evaluatorTracer.Start(ctx, "LLMResumeEvaluator.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.Int("resume.length", utf8.RuneCountInString(resumeText)),
		attribute.Int("job_description.length", utf8.RuneCountInString(jobDescription)),
		attribute.String("resume.preview", tracing.SafeResumeContent(resumeText)),
	)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	response, err := e.llmModel.Generate(ctx, e.BuildMessages(resumeText, jobDescription))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, fmt.Errorf("LLMResumeEvaluator: LLM call failed: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		err := fmt.Errorf("LLMResumeEvaluator: LLM returned empty response")
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, err
	}
	e.log.Debug().Dur("elapsed", time.Since(start)).Int("response_length", len(response.Content)).Msg("收到模型响应")

	evaluation, err := ParseEvaluation(response.Content)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		e.log.Warn().Err(err).Str("response", tracing.TruncateString(response.Content, 300)).Msg("模型响应不符合评估结构")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("evaluation.score", evaluation.Score),
		attribute.String("evaluation.candidate_name",
			tracing.SafeAttributeValue("candidate_name", evaluation.CandidateName, tracing.DefaultMaxLength)),
	)
	return evaluation, nil
}

// ParseEvaluation 从模型输出中提取评估 JSON。
// 依次去掉 BOM 和 Markdown 代码块，按括号匹配截取对象，解析失败时修复未转义的引号后再试一次。
// 任一必填字段缺失都视为失败；分数四舍五入后截断到 [0,100]。
func ParseEvaluation(content string) (*types.Evaluation, error) {
	processed := strings.TrimSpace(strings.TrimPrefix(content, "\uFEFF"))
	processed = stripCodeFence(processed)

	jsonStr := extractJSONObject(processed)
	if jsonStr == "" {
		return nil, fmt.Errorf("LLMResumeEvaluator: failed to extract JSON from LLM response")
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var raw rawEvaluation
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		fixed := sanitizeJSON(jsonStr)
		if fixErr := json.Unmarshal([]byte(fixed), &raw); fixErr != nil {
			return nil, fmt.Errorf("LLMResumeEvaluator: failed to unmarshal LLM JSON response: %w", err)
		}
	}

	if missing := raw.missingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("LLMResumeEvaluator: evaluation is missing required fields: %s", strings.Join(missing, ", "))
	}
	if math.IsNaN(*raw.Score) || math.IsInf(*raw.Score, 0) {
		return nil, fmt.Errorf("LLMResumeEvaluator: score is not a finite number")
	}

	return &types.Evaluation{
		CandidateName:    strings.TrimSpace(*raw.CandidateName),
		CandidateEmail:   strings.TrimSpace(*raw.CandidateEmail),
		Summary:          *raw.Summary,
		Strengths:        nonNil(*raw.Strengths),
		Weaknesses:       nonNil(*raw.Weaknesses),
		Skills:           nonNil(*raw.Skills),
		MatchExplanation: *raw.MatchExplanation,
		Score:            ClampScore(*raw.Score),
	}, nil
}

func (r *rawEvaluation) missingFields() []string {
	var missing []string
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	check(FieldCandidateName, r.CandidateName != nil)
	check(FieldCandidateEmail, r.CandidateEmail != nil)
	check(FieldSummary, r.Summary != nil)
	check(FieldStrengths, r.Strengths != nil)
	check(FieldWeaknesses, r.Weaknesses != nil)
	check(FieldSkills, r.Skills != nil)
	check(FieldMatchExplanation, r.MatchExplanation != nil)
	check(FieldScore, r.Score != nil)
	return missing
}

// ClampScore 四舍五入并截断到 [0,100]
func ClampScore(score float64) int {
	rounded := math.Round(score)
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return int(rounded)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// stripCodeFence 去掉 ```json ... ``` 包裹
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// extractJSONObject 从文本中截取第一个完整的 JSON 对象，忽略字符串里的括号
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inStr:
			escaped = true
		case c == '"':
			inStr = !inStr
		case c == '{' && !inStr:
			level++
		case c == '}' && !inStr:
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 把字符串字面量内部未转义的双引号改写成 \"。
// 一个 " 后面的第一个非空白字符是 : , ] } 之一时才视为字符串结束。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j >= len(src) || src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}' {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
		default:
			b.WriteByte(c)
			escaped = false
		}
	}
	return b.String()
}
