package embedding

import (
	"context"
	"time"

	"github.com/fyerfyer/resume-analyzer/internal/cache"
	"github.com/sirupsen/logrus"
)

// CachedClient 为嵌入客户端增加结果缓存
// 相同模型下相同文本只请求一次，缓存读写失败时退化为直接调用
type CachedClient struct {
	inner  Client
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedClient 创建带缓存的嵌入客户端
func NewCachedClient(inner Client, c cache.Cache, ttl time.Duration, logger *logrus.Logger) *CachedClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedClient{inner: inner, cache: c, ttl: ttl, logger: logger}
}

// Name 返回被包装客户端的模型名称
func (c *CachedClient) Name() string {
	return c.inner.Name()
}

// Embed 优先读取缓存
func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	vec, found, err := cache.GetVector(c.cache, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to read embedding cache")
	} else if found {
		return vec, nil
	}

	vec, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := cache.SetVector(c.cache, key, vec, c.ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to write embedding cache")
	}
	return vec, nil
}

// EmbedBatch 按顺序逐条走缓存
func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedSequential(ctx, c, texts)
}

func (c *CachedClient) key(text string) string {
	return cache.GenerateCacheKey("embed", c.inner.Name(), cache.HashText(text))
}
