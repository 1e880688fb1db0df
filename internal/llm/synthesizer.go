package llm

import (
	"context"
	"strings"
	"time"
)

// ResumeAnalysisTemplate 简历分析提示词模板
// 包含变量：
// {{.Context}} - 检索到的简历片段
// {{.Question}} - 分析问题
const ResumeAnalysisTemplate = `You are a helpful assistant for analyzing resumes for shortlisting in my company. Use the following context to answer the question.
Answer sharply to what the context is, don't give unnecessary things like explaining about the context.
Context:
{{.Context}}

Question:
{{.Question}}

Answer in a detailed and easy-to-understand way:`

// emphasisMarker 模型输出中的markdown加粗标记
const emphasisMarker = "**"

// SynthesizerConfig 回答生成配置
type SynthesizerConfig struct {
	Template    string        // 提示词模板
	MaxTokens   int           // 最大Token数，0表示使用客户端配置
	Temperature float32       // 温度参数，0表示使用客户端配置
	Timeout     time.Duration // 单次生成超时，0表示不额外设置
}

// DefaultSynthesizerConfig 默认配置
func DefaultSynthesizerConfig() *SynthesizerConfig {
	return &SynthesizerConfig{
		Template: ResumeAnalysisTemplate,
	}
}

// SynthesizerOption 配置选项函数类型
type SynthesizerOption func(*SynthesizerConfig)

// WithTemplate 设置提示词模板
func WithTemplate(template string) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.Template = template
	}
}

// WithSynthesizerMaxTokens 设置最大Token数
func WithSynthesizerMaxTokens(tokens int) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.MaxTokens = tokens
	}
}

// WithSynthesizerTemperature 设置温度参数
func WithSynthesizerTemperature(temp float32) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.Temperature = temp
	}
}

// WithSynthesizerTimeout 设置单次生成超时
func WithSynthesizerTimeout(timeout time.Duration) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.Timeout = timeout
	}
}

// Answer 生成结果
type Answer struct {
	Text       string // 处理后的回答
	ModelName  string // 使用的模型
	TokenCount int    // 消耗的token数
	Fallback   bool   // 模型未返回文本，Text来自原始响应
}

// Synthesizer 基于检索上下文生成回答
// 每次调用只请求一次模型，不重试、不流式输出
type Synthesizer struct {
	client Client
	config *SynthesizerConfig
}

// NewSynthesizer 创建回答生成器
func NewSynthesizer(client Client, opts ...SynthesizerOption) *Synthesizer {
	cfg := DefaultSynthesizerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Synthesizer{client: client, config: cfg}
}

// BuildPrompt 用上下文和问题填充模板
func (s *Synthesizer) BuildPrompt(contextText, query string) string {
	prompt := strings.ReplaceAll(s.config.Template, "{{.Context}}", contextText)
	return strings.ReplaceAll(prompt, "{{.Question}}", query)
}

// Synthesize 生成回答并去除加粗标记
func (s *Synthesizer) Synthesize(ctx context.Context, contextText, query string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "question cannot be empty")
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	var opts []GenerateOption
	if s.config.MaxTokens > 0 {
		opts = append(opts, WithGenerateMaxTokens(s.config.MaxTokens))
	}
	if s.config.Temperature > 0 {
		opts = append(opts, WithGenerateTemperature(s.config.Temperature))
	}

	resp, err := s.client.Generate(ctx, s.BuildPrompt(contextText, query), opts...)
	if err != nil {
		return nil, WrapError(err, ErrCodeServerError)
	}

	return &Answer{
		Text:       CleanAnswer(resp.Text),
		ModelName:  resp.ModelName,
		TokenCount: resp.TokenCount,
		Fallback:   resp.Fallback,
	}, nil
}

// CleanAnswer 去除首尾空白和所有加粗标记
func CleanAnswer(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), emphasisMarker, "")
}

// ModelName 返回底层模型名称
func (s *Synthesizer) ModelName() string {
	return s.client.Name()
}
