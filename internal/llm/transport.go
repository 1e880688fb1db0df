package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// transport 生成服务共用的HTTP发送逻辑
type transport struct {
	httpClient *http.Client
	maxRetries int
}

func newTransport(cfg *Config) *transport {
	return &transport{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}
}

// post 发送JSON请求，成功时返回原始响应体
func (t *transport) post(ctx context.Context, url string, headers map[string]string, reqData interface{}) ([]byte, error) {
	payload, err := json.Marshal(reqData)
	if err != nil {
		return nil, LLMError{Code: ErrCodeInvalidRequest, Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, WrapError(ctx.Err(), ErrCodeTimeout)
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		body, err := t.do(ctx, url, headers, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		llmErr, _ := AsLLMError(err)
		if llmErr.Code != ErrCodeNetworkError && llmErr.Code != ErrCodeServerError && llmErr.Code != ErrCodeRateLimited {
			break
		}
	}
	return nil, lastErr
}

func (t *transport) do(ctx context.Context, url string, headers map[string]string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, LLMError{Code: ErrCodeInvalidRequest, Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, LLMError{Code: ErrCodeTimeout, Message: ErrMsgTimeout, Err: err}
		}
		return nil, LLMError{Code: ErrCodeNetworkError, Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, LLMError{Code: ErrCodeNetworkError, Message: fmt.Sprintf("failed to read response: %v", err), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

// statusError 将HTTP状态码转换为LLMError
func statusError(status int, body []byte) LLMError {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	msg := string(body)
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error.Message != "" {
			msg = errResp.Error.Message
		} else if errResp.Message != "" {
			msg = fmt.Sprintf("%s (%s)", errResp.Message, errResp.Code)
		}
	}

	code := ErrCodeServerError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = ErrCodeInvalidAPIKey
	case status == http.StatusTooManyRequests:
		code = ErrCodeRateLimited
	case status >= 400 && status < 500:
		code = ErrCodeInvalidRequest
	}
	return NewLLMError(code, fmt.Sprintf("API error (status %d): %s", status, msg))
}
