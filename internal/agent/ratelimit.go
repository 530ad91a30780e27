package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

// RateLimitedChatModel 按每分钟请求数对模型调用限流。
// 只在调用前等待令牌，失败直接返回给调用方，不做重试。
type RateLimitedChatModel struct {
	original model.ToolCallingChatModel
	limiter  *rate.Limiter
}

// NewRateLimitedChatModel qpm<=0 时不限流，直接返回原模型
func NewRateLimitedChatModel(original model.ToolCallingChatModel, qpm int) model.ToolCallingChatModel {
	if qpm <= 0 {
		return original
	}
	return &RateLimitedChatModel{
		original: original,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(qpm)), 1),
	}
}

func (rl *RateLimitedChatModel) wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("等待LLM调用配额失败: %w", err)
	}
	return nil
}

// Generate 等待配额后调用一次
func (rl *RateLimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if err := rl.wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Generate(ctx, messages, options...)
}

// Stream 等待配额后调用一次
func (rl *RateLimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := rl.wait(ctx); err != nil {
		return nil, err
	}
	return rl.original.Stream(ctx, messages, options...)
}

// WithTools 新实例与原实例共享同一个限流器
func (rl *RateLimitedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedChatModel{
		original: newModel,
		limiter:  rl.limiter,
	}, nil
}

var _ model.ToolCallingChatModel = (*RateLimitedChatModel)(nil)
