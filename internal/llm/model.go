package llm

import "time"

// Response 统一的响应结构
type Response struct {
	Text       string    // 生成的文本
	TokenCount int       // 使用的token数
	ModelName  string    // 使用的模型名称
	FinishTime time.Time // 完成时间
	// Fallback 为true时表示响应里没有文本，Text是原始响应体
	Fallback bool
}

// Gemini generateContent 请求与响应
type geminiGenerateRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      *geminiContent `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// 通义千问 DashScope 请求与响应
type tongyiRequest struct {
	Model      string            `json:"model"`
	Input      tongyiInput       `json:"input"`
	Parameters *tongyiParameters `json:"parameters,omitempty"`
}

type tongyiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tongyiInput struct {
	Messages []tongyiMessage `json:"messages"`
}

type tongyiParameters struct {
	Temperature  *float32 `json:"temperature,omitempty"`
	TopP         *float32 `json:"top_p,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	ResultFormat string   `json:"result_format,omitempty"`
}

type tongyiResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		Text    *string `json:"text"`
		Choices []struct {
			FinishReason string        `json:"finish_reason"`
			Message      tongyiMessage `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// 常用模型名称
const (
	ModelGeminiFlash = "gemini-2.5-flash"
	ModelGeminiPro   = "gemini-2.5-pro"
	ModelQwenTurbo   = "qwen-turbo"
	ModelQwenPlus    = "qwen-plus"
	ModelQwenMax     = "qwen-max"
)
