package embedding

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-embedding-001"
)

// geminiEmbedRequest embedContent 请求体
type geminiEmbedRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiEmbedResponse embedContent 响应体
type geminiEmbedResponse struct {
	Embedding *struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// GeminiClient Gemini嵌入API客户端
// 每条文本发起一次请求，批量接口按顺序逐条调用
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	transport  *transport
}

// NewGeminiClient 创建Gemini嵌入客户端
func NewGeminiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		dimensions: cfg.Dimensions,
		transport:  newTransport(cfg),
	}, nil
}

// Name 返回模型名称
func (c *GeminiClient) Name() string {
	return c.model
}

// Embed 生成单条文本的向量表示
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	req := geminiEmbedRequest{
		Model:                "models/" + c.model,
		Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
		OutputDimensionality: c.dimensions,
	}
	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.model)
	headers := map[string]string{"x-goog-api-key": c.apiKey}

	var resp geminiEmbedResponse
	if _, err := c.transport.postJSON(ctx, url, headers, req, &resp); err != nil {
		return nil, err
	}

	if resp.Embedding == nil {
		return nil, NewEmbeddingError(ErrCodeMalformedResponse, "response is missing the embedding field")
	}
	if err := validateVector(resp.Embedding.Values); err != nil {
		return nil, err
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch 按输入顺序逐条生成向量，任一失败立即返回
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedSequential(ctx, c, texts)
}

// embedSequential 逐条调用Embed
func embedSequential(ctx context.Context, c Client, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = vec
	}
	return result, nil
}

func init() {
	RegisterClient("gemini", NewGeminiClient)
}
