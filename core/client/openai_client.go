package client

import (
	"context"
	"fmt"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient 统一的OpenAI API客户端
// 负责OpenAI格式的非流式调用，同时支持Azure OpenAI部署
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient 创建OpenAI客户端
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
	}
}

// NewAzureClient 创建Azure OpenAI客户端，endpoint形如 https://xxx.openai.azure.com/
func NewAzureClient(apiKey, endpoint, apiVersion string) *OpenAIClient {
	config := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		config.APIVersion = apiVersion
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
	}
}

// ChatCompletionRequest 聊天请求参数
type ChatCompletionRequest struct {
	Model       string
	Messages    []openai.ChatCompletionMessage
	Temperature float32
	MaxTokens   int
}

// ChatCompletion 非流式对话
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	openaiReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	g.Log().Debugf(ctx, "[OpenAI Client] request - Model: %s, Messages: %d, Temp: %.2f, MaxTokens: %d",
		req.Model, len(req.Messages), req.Temperature, req.MaxTokens)

	resp, err := c.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		g.Log().Warningf(ctx, "[OpenAI Client] call failed - Model: %s, Error: %v", req.Model, err)
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	g.Log().Debugf(ctx, "[OpenAI Client] response - ID: %s, Choices: %d, Usage: %+v",
		resp.ID, len(resp.Choices), resp.Usage)

	return &resp, nil
}
