package agent

import (
	"context"
	"fmt"
	"time"

	"recruit-dashboard/internal/config"

	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// NewEvaluatorModel 按 provider 创建结构化输出的聊天模型，并按 qpm 套上限流
func NewEvaluatorModel(ctx context.Context, cfg config.EvaluatorConfig, apiKey string, responseSchema *genai.Schema) (model.ToolCallingChatModel, error) {
	var (
		m   model.ToolCallingChatModel
		err error
	)
	switch cfg.Provider {
	case config.ProviderGemini, "":
		opts := []GeminiOption{
			WithGeminiResponseSchema(responseSchema),
			WithGeminiMaxOutputTokens(cfg.MaxOutputTokens),
		}
		if cfg.Temperature > 0 {
			opts = append(opts, WithGeminiTemperature(cfg.Temperature))
		}
		m, err = NewGeminiChatModel(ctx, apiKey, cfg.Model, cfg.BaseURL, opts...)
	case config.ProviderOpenAICompatible:
		opts := []OpenAICompatibleOption{
			WithResponseJSONSchema("resume_evaluation", responseSchema),
			WithOpenAIMaxTokens(cfg.MaxOutputTokens),
			WithHTTPTimeout(config.GetDuration(cfg.Timeout, 60*time.Second)),
		}
		if cfg.Temperature > 0 {
			opts = append(opts, WithOpenAITemperature(cfg.Temperature))
		}
		m, err = NewOpenAICompatibleChatModel(apiKey, cfg.Model, cfg.BaseURL, opts...)
	default:
		return nil, fmt.Errorf("不支持的评估模型提供方: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewRateLimitedChatModel(m, cfg.QPM), nil
}
