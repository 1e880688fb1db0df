package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient Gemini generateContent 客户端
type GeminiClient struct {
	apiKey    string
	baseURL   string
	model     string
	config    *Config
	transport *transport
}

// NewGeminiClient 创建Gemini客户端
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = ModelGeminiFlash
	}

	return &GeminiClient{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		model:     model,
		config:    cfg,
		transport: newTransport(cfg),
	}, nil
}

// Name 返回模型名称
func (c *GeminiClient) Name() string {
	return c.model
}

// Generate 根据提示词生成回答
func (c *GeminiClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	opts := c.config.resolve(options)
	req := geminiGenerateRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if opts.MaxTokens != nil || opts.Temperature != nil || opts.TopP != nil {
		req.GenerationConfig = &geminiGenerationConfig{
			Temperature:     opts.Temperature,
			TopP:            opts.TopP,
			MaxOutputTokens: opts.MaxTokens,
		}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	body, err := c.transport.post(ctx, url, map[string]string{"x-goog-api-key": c.apiKey}, req)
	if err != nil {
		return nil, err
	}

	return c.processResponse(body)
}

// processResponse 解析响应
// 响应不是JSON对象时报错；没有文本时把原始响应体作为回答
func (c *GeminiClient) processResponse(body []byte) (*Response, error) {
	var resp geminiGenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, LLMError{Code: ErrCodeMalformedResponse, Message: fmt.Sprintf("failed to parse response: %v", err), Err: err}
	}

	result := &Response{
		TokenCount: resp.UsageMetadata.TotalTokenCount,
		ModelName:  c.model,
		FinishTime: time.Now(),
	}
	if resp.ModelVersion != "" {
		result.ModelName = resp.ModelVersion
	}

	// 与官方SDK的text属性一致：拼接第一个候选的所有文本片段
	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}

	if sb.Len() == 0 {
		result.Text = compactJSON(body)
		result.Fallback = true
		return result, nil
	}
	result.Text = sb.String()
	return result, nil
}

// compactJSON 去掉原始响应中的缩进和换行
func compactJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return string(body)
	}
	return buf.String()
}

func init() {
	RegisterClient("gemini", NewGeminiClient)
}
