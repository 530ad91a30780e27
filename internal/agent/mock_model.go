package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse MockChatModel 的单次预期响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatModel 用于测试的 model.ToolCallingChatModel，按顺序返回预设响应
type MockChatModel struct {
	mu               sync.Mutex
	responses        []MockResponse
	index            int
	repeatLast       bool
	ReceivedMessages [][]*schema.Message
}

// NewMockChatModel 每次调用都返回同一个响应
func NewMockChatModel(content string, err error) *MockChatModel {
	return &MockChatModel{
		responses:  []MockResponse{{Content: content, Error: err}},
		repeatLast: true,
	}
}

// NewMockChatModelSequential 依次返回 responses，用完后报错
func NewMockChatModelSequential(responses ...MockResponse) *MockChatModel {
	return &MockChatModel{responses: responses}
}

// Generate 记录收到的消息并返回下一个预设响应
func (m *MockChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	received := make([]*schema.Message, len(input))
	copy(received, input)
	m.ReceivedMessages = append(m.ReceivedMessages, received)

	if len(m.responses) == 0 {
		return nil, errors.New("mock model has no responses configured")
	}
	if m.index >= len(m.responses) {
		if !m.repeatLast {
			return nil, errors.New("mock model has run out of responses")
		}
		m.index = len(m.responses) - 1
	}
	resp := m.responses[m.index]
	m.index++
	if resp.Error != nil {
		return nil, resp.Error
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

// Stream 单元素流
func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 不处理工具
func (m *MockChatModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Calls 已发生的调用次数
func (m *MockChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ReceivedMessages)
}

var _ model.ToolCallingChatModel = (*MockChatModel)(nil)
