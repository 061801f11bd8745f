// Package llmtest 提供测试用的聊天模型模拟器，各workflow包共用。
package llmtest

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockChatModel 按预设脚本返回响应的聊天模型
type MockChatModel struct {
	// Responses 按调用顺序返回的响应内容，用完后重复最后一条
	Responses []string
	// Err 非nil时每次调用都返回该错误
	Err error
	// CallCount 记录Generate被调用的次数
	CallCount int
	// LastMessages 记录最近一次调用的消息列表
	LastMessages []*schema.Message
}

// NewMockChatModel 创建返回固定响应序列的模拟模型
func NewMockChatModel(responses ...string) *MockChatModel {
	return &MockChatModel{Responses: responses}
}

// Generate 实现 model.ChatModel 接口
func (m *MockChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.CallCount++
	m.LastMessages = messages

	if m.Err != nil {
		return nil, m.Err
	}

	content := ""
	if len(m.Responses) > 0 {
		idx := m.CallCount - 1
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		content = m.Responses[idx]
	}

	return &schema.Message{
		Role:    "assistant",
		Content: content,
	}, nil
}

// Stream 实现 model.ChatModel 接口，测试中不需要流式响应
func (m *MockChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

// BindTools 实现 model.ChatModel 接口
func (m *MockChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *MockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

var _ model.ToolCallingChatModel = (*MockChatModel)(nil)
