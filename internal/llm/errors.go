package llm

import (
	"errors"
	"fmt"
)

// LLMError 大模型调用错误类型
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误消息
	Err     error  // 底层错误，可能为nil
}

// Error 实现error接口
func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e LLMError) Unwrap() error {
	return e.Err
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey     = 2001 // 无效的API密钥
	ErrCodeInvalidRequest    = 2002 // 无效的请求
	ErrCodeNetworkError      = 2003 // 网络连接错误
	ErrCodeRateLimited       = 2004 // 请求频率超限
	ErrCodeServerError       = 2005 // 服务器错误
	ErrCodeTimeout           = 2006 // 请求超时
	ErrCodeEmptyPrompt       = 2007 // 提示词为空
	ErrCodeMalformedResponse = 2008 // 响应不是合法的JSON对象
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyPrompt    = "prompt cannot be empty"
	ErrMsgNetworkError   = "network connection error"
)

// NewLLMError 创建新的大模型错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装普通错误为LLM错误，已经是LLMError时原样返回
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}

	var llmErr LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}

	return LLMError{
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}

// AsLLMError 判断err链中是否包含LLMError
func AsLLMError(err error) (LLMError, bool) {
	var llmErr LLMError
	ok := errors.As(err, &llmErr)
	return llmErr, ok
}
