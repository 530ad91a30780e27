package agent

import (
	"context"
	"fmt"
	"strings"

	applogger "recruit-dashboard/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const defaultGeminiModelName = "gemini-3-flash-preview"

// contentGenerator genai.Models 中用到的部分，测试时替换
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiChatModel 基于 google.golang.org/genai 的 model.ToolCallingChatModel 实现。
// 配置了响应 schema 时，模型只会返回符合该 schema 的 JSON。
type GeminiChatModel struct {
	models          contentGenerator
	modelName       string
	temperature     *float32
	maxOutputTokens int
	responseSchema  *genai.Schema
	tools           []*genai.Tool
	log             zerolog.Logger
}

// GeminiOption GeminiChatModel 的可选配置
type GeminiOption func(*GeminiChatModel)

// WithGeminiResponseSchema 要求模型按 schema 输出 application/json
func WithGeminiResponseSchema(s *genai.Schema) GeminiOption {
	return func(m *GeminiChatModel) {
		m.responseSchema = s
	}
}

// WithGeminiTemperature 采样温度
func WithGeminiTemperature(t float32) GeminiOption {
	return func(m *GeminiChatModel) {
		m.temperature = &t
	}
}

// WithGeminiMaxOutputTokens 最大输出 token 数，0 表示使用服务端默认值
func WithGeminiMaxOutputTokens(n int) GeminiOption {
	return func(m *GeminiChatModel) {
		m.maxOutputTokens = n
	}
}

// NewGeminiChatModel 创建 Gemini 客户端
func NewGeminiChatModel(ctx context.Context, apiKey, modelName, baseURL string, opts ...GeminiOption) (*GeminiChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("创建Gemini客户端失败: %w", err)
	}
	return newGeminiChatModel(client.Models, modelName, opts...), nil
}

func newGeminiChatModel(models contentGenerator, modelName string, opts ...GeminiOption) *GeminiChatModel {
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultGeminiModelName
	}
	m := &GeminiChatModel{
		models:    models,
		modelName: modelName,
		log:       applogger.Component("gemini"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate 实现 model.BaseChatModel 接口。system 消息合并为 SystemInstruction。
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	maxTokens := g.maxOutputTokens
	common := model.GetCommonOptions(&model.Options{
		Temperature: g.temperature,
		MaxTokens:   &maxTokens,
		Model:       &g.modelName,
	}, opts...)

	system, contents := toGenaiContents(messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("没有可发送给模型的消息")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: common.Temperature,
		Tools:       g.tools,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if common.MaxTokens != nil && *common.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(*common.MaxTokens)
	}
	if g.responseSchema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = g.responseSchema
	}

	modelName := g.modelName
	if common.Model != nil && *common.Model != "" {
		modelName = *common.Model
	}

	g.log.Debug().Str("model", modelName).Int("contents", len(contents)).Bool("structured", g.responseSchema != nil).Msg("发送Gemini请求")
	resp, err := g.models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini请求失败: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("Gemini返回了空的候选结果")
	}

	text := resp.Text()
	msg := schema.AssistantMessage(text, nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.Candidates[0].FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		msg.ResponseMeta.Usage = &schema.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("Gemini返回了空内容 (finish_reason=%s)", msg.ResponseMeta.FinishReason)
	}
	return msg, nil
}

// Stream 整段生成后作为单元素流返回
func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := g.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 返回绑定了工具声明的新实例，原实例不变
func (g *GeminiChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		decls = append(decls, &genai.FunctionDeclaration{Name: t.Name, Description: t.Desc})
	}
	cp := *g
	cp.tools = nil
	if len(decls) > 0 {
		cp.tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return &cp, nil
}

var _ model.ToolCallingChatModel = (*GeminiChatModel)(nil)

// toGenaiContents system 消息拼接成一段指令，其余按角色转换
func toGenaiContents(messages []*schema.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
