package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/resume-analyzer/internal/document"
	"github.com/fyerfyer/resume-analyzer/internal/embedding"
	"github.com/fyerfyer/resume-analyzer/internal/metrics"
	"github.com/fyerfyer/resume-analyzer/internal/vectordb"
	"github.com/sirupsen/logrus"
)

// ContextSeparator 拼接检索上下文使用的分隔符
const ContextSeparator = "\n\n"

// RetrievedChunk 检索命中的分块
type RetrievedChunk struct {
	Position int     // 分块序号
	Text     string  // 分块文本
	Page     int     // 估算页码
	Offset   int     // 在原文中的起始字符偏移
	Distance float32 // 与查询的平方欧氏距离
}

// Retrieval 检索结果
type Retrieval struct {
	Chunks      []document.Chunk // 文档的全部分块
	Results     []RetrievedChunk // 按距离升序的命中分块
	ContextText string           // 命中文本以空行拼接
	Dimension   int              // 向量维数
}

// Texts 返回命中分块的文本
func (r *Retrieval) Texts() []string {
	texts := make([]string, len(r.Results))
	for i, res := range r.Results {
		texts[i] = res.Text
	}
	return texts
}

// Distances 返回命中分块的距离
func (r *Retrieval) Distances() []float32 {
	distances := make([]float32, len(r.Results))
	for i, res := range r.Results {
		distances[i] = res.Distance
	}
	return distances
}

// Pages 返回命中分块的估算页码
func (r *Retrieval) Pages() []int {
	pages := make([]int, len(r.Results))
	for i, res := range r.Results {
		pages[i] = res.Page
	}
	return pages
}

// RetrievalPipeline 检索流程
// 分块、嵌入、建索引、嵌入查询、检索，所有状态只在单次调用内有效
type RetrievalPipeline struct {
	embedder embedding.Client                 // 嵌入模型客户端
	batch    *embedding.DefaultBatchProcessor // 并发嵌入，为空时顺序嵌入
	indexCfg vectordb.Config                  // 索引配置
	metrics  *metrics.Metrics                 // 指标，可为空
	logger   *logrus.Logger                   // 日志记录器
}

// PipelineOption 检索流程配置选项
type PipelineOption func(*RetrievalPipeline)

// NewRetrievalPipeline 创建检索流程
func NewRetrievalPipeline(embedder embedding.Client, opts ...PipelineOption) *RetrievalPipeline {
	p := &RetrievalPipeline{
		embedder: embedder,
		indexCfg: vectordb.Config{Type: "flat"},
		logger:   logrus.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithBatchProcessor 使用并发嵌入
func WithBatchProcessor(batch *embedding.DefaultBatchProcessor) PipelineOption {
	return func(p *RetrievalPipeline) {
		p.batch = batch
	}
}

// WithIndexConfig 设置索引类型
func WithIndexConfig(cfg vectordb.Config) PipelineOption {
	return func(p *RetrievalPipeline) {
		p.indexCfg = cfg
	}
}

// WithPipelineMetrics 设置指标
func WithPipelineMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *RetrievalPipeline) {
		p.metrics = m
	}
}

// WithPipelineLogger 设置日志记录器
func WithPipelineLogger(logger *logrus.Logger) PipelineOption {
	return func(p *RetrievalPipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Analyze 对单个文档执行检索
// 任一阶段失败立即返回该阶段的错误，不返回部分结果
func (p *RetrievalPipeline) Analyze(ctx context.Context, doc *document.Document, query string, chunkSize, topK int) (*Retrieval, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: %d", vectordb.ErrInvalidK, topK)
	}
	if doc == nil {
		return nil, document.ErrEmptyDocument
	}

	// 1. 分块
	start := time.Now()
	chunks, err := document.SegmentDocument(doc, chunkSize)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, document.ErrEmptyDocument
	}
	p.metrics.ObserveStage(metrics.StageSegment, start)
	p.metrics.RecordChunks(len(chunks))

	// 2. 嵌入所有分块
	start = time.Now()
	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	p.metrics.ObserveStage(metrics.StageEmbed, start)

	// 3. 构建索引
	start = time.Now()
	docs := make([]vectordb.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = vectordb.Document{
			ID:       fmt.Sprintf("chunk-%d", chunk.Index),
			Position: chunk.Index,
			Text:     chunk.Text,
			Page:     chunk.EstimatedPage,
			Offset:   chunk.StartOffset,
			Vector:   vectors[i],
		}
	}
	index, err := vectordb.NewIndex(p.indexCfg, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}
	defer index.Close()
	p.metrics.ObserveStage(metrics.StageIndex, start)

	// 4. 嵌入查询
	start = time.Now()
	queryVec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	p.metrics.ObserveStage(metrics.StageEmbedQuery, start)

	// 5. 检索
	start = time.Now()
	results, err := index.Search(queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	p.metrics.ObserveStage(metrics.StageSearch, start)

	retrieval := &Retrieval{
		Chunks:    chunks,
		Results:   make([]RetrievedChunk, len(results)),
		Dimension: index.GetDimension(),
	}
	for i, res := range results {
		retrieval.Results[i] = RetrievedChunk{
			Position: res.Document.Position,
			Text:     res.Document.Text,
			Page:     res.Document.Page,
			Offset:   res.Document.Offset,
			Distance: res.Distance,
		}
	}
	retrieval.ContextText = strings.Join(retrieval.Texts(), ContextSeparator)

	p.logger.WithFields(logrus.Fields{
		"file":      doc.FileName,
		"chunks":    len(chunks),
		"dimension": retrieval.Dimension,
		"top_k":     topK,
		"retrieved": len(results),
	}).Debug("Retrieval completed")

	return retrieval, nil
}

// embedChunks 嵌入所有分块，结果与分块一一对应
func (p *RetrievalPipeline) embedChunks(ctx context.Context, chunks []document.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	var err error
	if p.batch != nil {
		vectors, err = p.batch.Process(ctx, texts)
	} else {
		vectors, err = p.embedder.EmbedBatch(ctx, texts)
	}
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, embedding.NewEmbeddingError(
			embedding.ErrCodeMalformedResponse,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(vectors)),
		)
	}
	return vectors, nil
}
