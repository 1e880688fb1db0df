package embedding

import (
	"context"
	"sync"

	"github.com/gammazero/workerpool"
)

// DefaultBatchProcessor 并发嵌入处理器
// 每条文本作为独立任务提交到工作池，结果按输入下标写回，完成顺序不影响对应关系
type DefaultBatchProcessor struct {
	client     Client // 嵌入客户端
	maxWorkers int    // 最大并行工作数
}

// NewBatchProcessor 创建新的批处理器
func NewBatchProcessor(client Client, maxWorkers int) *DefaultBatchProcessor {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &DefaultBatchProcessor{
		client:     client,
		maxWorkers: maxWorkers,
	}
}

// Workers 返回并行度
func (p *DefaultBatchProcessor) Workers() int {
	return p.maxWorkers
}

// Process 并发生成所有文本的向量
// 第一个错误会取消其余任务并作为结果返回，不会返回部分结果
func (p *DefaultBatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]float32, len(texts))
	var firstErr error
	var errOnce sync.Once

	wp := workerpool.New(p.maxWorkers)
	for i, text := range texts {
		i, text := i, text
		wp.Submit(func() {
			if ctx.Err() != nil {
				// 与客户端请求超时使用同一错误码
				errOnce.Do(func() { firstErr = WrapError(ctx.Err(), ErrCodeTimeout, ErrMsgTimeout) })
				return
			}

			vec, err := p.client.Embed(ctx, text)
			if err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			// 每个任务只写自己的下标
			results[i] = vec
		})
	}
	wp.StopWait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
