package model

import (
	"context"
	"fmt"

	"github.com/Malowking/sqlgo/core/client"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sashabaranov/go-openai"
)

// CompletionRequest 一次文本生成请求
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer 外部文本生成服务的抽象，返回模型的原始文本
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc 适配普通函数为 Completer
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// OpenAICompleter 基于 go-openai 的实现
type OpenAICompleter struct {
	client *client.OpenAIClient
	model  string
}

// NewOpenAICompleter 创建 OpenAI/Azure 文本生成器
func NewOpenAICompleter(c *client.OpenAIClient, modelName string) *OpenAICompleter {
	return &OpenAICompleter{client: c, model: modelName}
}

func (o *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	resp, err := o.client.ChatCompletion(ctx, client.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// EinoCompleter 基于 eino ChatModel 的实现
type EinoCompleter struct {
	chatModel einoModel.BaseChatModel
}

// NewEinoCompleter 通过 eino-ext openai 组件创建文本生成器
func NewEinoCompleter(ctx context.Context, apiKey, baseURL, modelName string) (*EinoCompleter, error) {
	cm, err := einoOpenAI.NewChatModel(ctx, &einoOpenAI.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model: %w", err)
	}
	return &EinoCompleter{chatModel: cm}, nil
}

func (e *EinoCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]*schema.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, schema.SystemMessage(req.System))
	}
	messages = append(messages, schema.UserMessage(req.User))

	var opts []einoModel.Option
	opts = append(opts, einoModel.WithTemperature(req.Temperature))
	if req.MaxTokens > 0 {
		opts = append(opts, einoModel.WithMaxTokens(req.MaxTokens))
	}

	msg, err := e.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}
