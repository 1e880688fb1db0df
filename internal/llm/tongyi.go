package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const defaultTongyiEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// TongyiClient 通义千问客户端
type TongyiClient struct {
	apiKey    string
	endpoint  string
	model     string
	config    *Config
	transport *transport
}

// NewTongyiClient 创建新的通义千问客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultTongyiEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = ModelQwenTurbo
	}

	return &TongyiClient{
		apiKey:    cfg.APIKey,
		endpoint:  endpoint,
		model:     model,
		config:    cfg,
		transport: newTransport(cfg),
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Generate 根据提示词生成回答
func (c *TongyiClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	opts := c.config.resolve(options)
	req := tongyiRequest{
		Model: c.model,
		Input: tongyiInput{Messages: []tongyiMessage{{Role: "user", Content: prompt}}},
		Parameters: &tongyiParameters{
			Temperature:  opts.Temperature,
			TopP:         opts.TopP,
			MaxTokens:    opts.MaxTokens,
			ResultFormat: "message",
		},
	}

	body, err := c.transport.post(ctx, c.endpoint, map[string]string{"Authorization": "Bearer " + c.apiKey}, req)
	if err != nil {
		return nil, err
	}
	return c.processResponse(body)
}

// processResponse 处理通义千问的响应
func (c *TongyiClient) processResponse(body []byte) (*Response, error) {
	var resp tongyiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, LLMError{Code: ErrCodeMalformedResponse, Message: fmt.Sprintf("failed to parse response: %v", err), Err: err}
	}
	if resp.Code != "" {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("API error: %s (%s)", resp.Message, resp.Code))
	}

	result := &Response{
		ModelName:  c.model,
		TokenCount: resp.Usage.TotalTokens,
		FinishTime: time.Now(),
	}

	switch {
	case resp.Output.Text != nil && *resp.Output.Text != "":
		result.Text = *resp.Output.Text
	case len(resp.Output.Choices) > 0 && resp.Output.Choices[0].Message.Content != "":
		result.Text = resp.Output.Choices[0].Message.Content
	default:
		result.Text = compactJSON(body)
		result.Fallback = true
	}
	return result, nil
}

func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
