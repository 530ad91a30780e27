package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	applogger "recruit-dashboard/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const defaultOpenAICompatibleURL = "https://api.openai.com/v1/chat/completions"

// --- OpenAI Compatible Structures ---

type openAIMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type openAIJSONSchema struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIChatCompletionRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    *float32              `json:"temperature,omitempty"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIChatChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAICompletionResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
	Usage   *openAIUsage       `json:"usage,omitempty"`
}

// OpenAICompatibleChatModel 调用任何兼容 OpenAI chat/completions 协议的服务
// (DashScope 兼容模式、vLLM、Ollama 等)，通过 response_format 约束输出结构。
type OpenAICompatibleChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	httpClient  *http.Client
	temperature *float32
	maxTokens   int
	schemaName  string
	jsonSchema  map[string]interface{}
	log         zerolog.Logger
}

// OpenAICompatibleOption 可选配置
type OpenAICompatibleOption func(*OpenAICompatibleChatModel)

// WithResponseJSONSchema 以 json_schema 形式约束输出
func WithResponseJSONSchema(name string, s *genai.Schema) OpenAICompatibleOption {
	return func(m *OpenAICompatibleChatModel) {
		m.schemaName = name
		m.jsonSchema = ToJSONSchema(s)
	}
}

// WithOpenAITemperature 采样温度
func WithOpenAITemperature(t float32) OpenAICompatibleOption {
	return func(m *OpenAICompatibleChatModel) {
		m.temperature = &t
	}
}

// WithOpenAIMaxTokens 最大输出 token 数
func WithOpenAIMaxTokens(n int) OpenAICompatibleOption {
	return func(m *OpenAICompatibleChatModel) {
		m.maxTokens = n
	}
}

// WithHTTPTimeout HTTP 客户端超时
func WithHTTPTimeout(d time.Duration) OpenAICompatibleOption {
	return func(m *OpenAICompatibleChatModel) {
		m.httpClient.Timeout = d
	}
}

// NewOpenAICompatibleChatModel 创建实例，apiURL 可以是 base URL 或完整的 chat/completions 地址
func NewOpenAICompatibleChatModel(apiKey, modelName, apiURL string, opts ...OpenAICompatibleOption) (*OpenAICompatibleChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("模型名称不能为空")
	}

	m := &OpenAICompatibleChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     normalizeChatURL(apiURL),
		httpClient: &http.Client{},
		log:        applogger.Component("openai_compatible"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log.Info().Str("url", m.apiURL).Str("model", m.modelName).Msg("使用OpenAI兼容LLM客户端")
	return m, nil
}

func normalizeChatURL(apiURL string) string {
	u := strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if u == "" {
		return defaultOpenAICompatibleURL
	}
	if strings.HasSuffix(u, "/chat/completions") {
		return u
	}
	return u + "/chat/completions"
}

// Generate 实现 model.BaseChatModel 接口
func (m *OpenAICompatibleChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	maxTokens := m.maxTokens
	common := model.GetCommonOptions(&model.Options{
		Temperature: m.temperature,
		MaxTokens:   &maxTokens,
		Model:       &m.modelName,
	}, opts...)

	reqPayload := openAIChatCompletionRequest{
		Model:       *common.Model,
		Messages:    make([]openAIMessage, 0, len(messages)),
		Temperature: common.Temperature,
	}
	if common.MaxTokens != nil {
		reqPayload.MaxTokens = *common.MaxTokens
	}
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		content := msg.Content
		reqPayload.Messages = append(reqPayload.Messages, openAIMessage{Role: string(msg.Role), Content: &content})
	}
	if m.jsonSchema != nil {
		reqPayload.ResponseFormat = &openAIResponseFormat{
			Type: "json_schema",
			JSONSchema: &openAIJSONSchema{
				Name:   m.schemaName,
				Strict: true,
				Schema: m.jsonSchema,
			},
		}
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	m.log.Debug().Str("model", reqPayload.Model).Int("messages", len(reqPayload.Messages)).Msg("发送请求")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, truncateBody(bodyBytes))
	}

	var resp openAICompletionResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项")
	}

	choice := resp.Choices[0]
	content := ""
	if choice.Message.Content != nil {
		content = *choice.Message.Content
	}
	result := schema.AssistantMessage(content, nil)
	result.ResponseMeta = &schema.ResponseMeta{FinishReason: choice.FinishReason}
	if resp.Usage != nil {
		result.ResponseMeta.Usage = &schema.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// Stream 整段生成后作为单元素流返回
func (m *OpenAICompatibleChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 评估场景只依赖结构化输出，不下发工具，直接返回自身
func (m *OpenAICompatibleChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		m.log.Warn().Int("tools", len(tools)).Msg("OpenAI兼容模型忽略工具绑定")
	}
	return m, nil
}

var _ model.ToolCallingChatModel = (*OpenAICompatibleChatModel)(nil)

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}

// ToJSONSchema 把 genai.Schema 转成 JSON Schema。strict 模式要求对象禁止额外字段。
func ToJSONSchema(s *genai.Schema) map[string]interface{} {
	if s == nil {
		return nil
	}
	out := map[string]interface{}{}
	if s.Type != "" {
		out["type"] = strings.ToLower(string(s.Type))
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Items != nil {
		out["items"] = ToJSONSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		props := make(map[string]interface{}, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = ToJSONSchema(p)
		}
		out["properties"] = props
		out["additionalProperties"] = false
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}
