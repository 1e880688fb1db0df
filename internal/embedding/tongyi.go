package embedding

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultDashScopeEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"
	defaultTongyiModel       = "text-embedding-v3"
)

// dashScopeRequest DashScope原生接口请求体
type dashScopeRequest struct {
	Model      string               `json:"model"`
	Input      dashScopeInput       `json:"input"`
	Parameters *dashScopeParameters `json:"parameters,omitempty"`
}

type dashScopeInput struct {
	Texts []string `json:"texts"`
}

type dashScopeParameters struct {
	Dimension  int    `json:"dimension,omitempty"`
	OutputType string `json:"output_type,omitempty"`
}

// dashScopeResponse DashScope原生接口响应体
type dashScopeResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Output    struct {
		Embeddings []struct {
			Embedding []float32 `json:"embedding"`
			TextIndex int       `json:"text_index"`
		} `json:"embeddings"`
	} `json:"output"`
}

// TongyiClient 通义千问嵌入API客户端
type TongyiClient struct {
	apiKey     string
	endpoint   string
	model      string
	dimensions int
	batchSize  int
	transport  *transport
}

// NewTongyiClient 创建新的通义千问嵌入客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultDashScopeEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultTongyiModel
	}

	// v3模型单次最多10条，v1/v2最多25条
	limit := 25
	if model == "text-embedding-v3" {
		limit = 10
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > limit {
		batchSize = limit
	}

	return &TongyiClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		transport:  newTransport(cfg),
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return c.model
}

// Embed 生成单条文本的向量表示
func (c *TongyiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 按批次大小切分后顺序请求，结果按text_index还原到输入位置
func (c *TongyiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
		}
	}

	result := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := c.embedRange(ctx, texts[start:end], result[start:end]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// embedRange 请求一个批次并写入out
func (c *TongyiClient) embedRange(ctx context.Context, texts []string, out [][]float32) error {
	req := dashScopeRequest{
		Model: c.model,
		Input: dashScopeInput{Texts: texts},
	}
	if c.dimensions > 0 {
		req.Parameters = &dashScopeParameters{Dimension: c.dimensions, OutputType: "dense"}
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp dashScopeResponse
	if _, err := c.transport.postJSON(ctx, c.endpoint, headers, req, &resp); err != nil {
		return err
	}
	if resp.Code != "" {
		return NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("API error: %s (%s)", resp.Message, resp.Code))
	}

	for _, emb := range resp.Output.Embeddings {
		if emb.TextIndex < 0 || emb.TextIndex >= len(texts) {
			return NewEmbeddingError(ErrCodeMalformedResponse, fmt.Sprintf("text_index %d out of range", emb.TextIndex))
		}
		out[emb.TextIndex] = emb.Embedding
	}
	for i, vec := range out {
		if vec == nil {
			return NewEmbeddingError(ErrCodeMalformedResponse, fmt.Sprintf("no embedding returned for text %d", i))
		}
		if err := validateVector(vec); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
