package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// transport 嵌入服务共用的HTTP发送逻辑
type transport struct {
	httpClient *http.Client
	limiter    *rate.Limiter // 为nil时不限速
	maxRetries int
}

func newTransport(cfg *Config) *transport {
	t := &transport{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}
	if cfg.RateLimit > 0 {
		burst := int(math.Ceil(cfg.RateLimit))
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return t
}

// postJSON 发送JSON请求并把响应解析到respObj
// 返回解析前的原始响应体，便于上层做校验
func (t *transport) postJSON(ctx context.Context, url string, headers map[string]string, reqData, respObj interface{}) ([]byte, error) {
	payload, err := json.Marshal(reqData)
	if err != nil {
		return nil, WrapError(err, ErrCodeInvalidRequest, "failed to marshal request")
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, WrapError(ctx.Err(), ErrCodeTimeout, ErrMsgTimeout)
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		body, err := t.do(ctx, url, headers, payload)
		if err == nil {
			if err := json.Unmarshal(body, respObj); err != nil {
				return body, WrapError(err, ErrCodeMalformedResponse, "failed to parse response")
			}
			return body, nil
		}

		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

// do 执行一次HTTP请求，每次重试都重新构造请求体
func (t *transport) do(ctx context.Context, url string, headers map[string]string, payload []byte) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, WrapError(err, ErrCodeTimeout, "rate limiter wait aborted")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, WrapError(err, ErrCodeInvalidRequest, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, WrapError(err, ErrCodeTimeout, ErrMsgTimeout)
		}
		return nil, WrapError(err, ErrCodeNetworkError, ErrMsgNetworkError)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(err, ErrCodeNetworkError, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

// statusError 将HTTP状态码转换为嵌入错误
func statusError(status int, body []byte) EmbeddingError {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	msg := string(body)
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error.Message != "" {
			msg = errResp.Error.Message
		} else if errResp.Message != "" {
			msg = errResp.Message
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
	return NewEmbeddingError(code, fmt.Sprintf("API error (status %d): %s", status, msg))
}

// retryable 只有网络错误、限流和服务端错误才值得重试
func retryable(err error) bool {
	embErr, ok := AsEmbeddingError(err)
	if !ok {
		return false
	}
	switch embErr.Code {
	case ErrCodeNetworkError, ErrCodeRateLimited, ErrCodeServerError:
		return true
	}
	return false
}

// validateVector 向量必须非空且每个分量都是有限数
func validateVector(vec []float32) error {
	if len(vec) == 0 {
		return NewEmbeddingError(ErrCodeMalformedResponse, "response contains no embedding values")
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return NewEmbeddingError(ErrCodeMalformedResponse, fmt.Sprintf("embedding value %d is not a finite number", i))
		}
	}
	return nil
}
