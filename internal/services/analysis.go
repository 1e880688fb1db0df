package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fyerfyer/resume-analyzer/internal/document"
	"github.com/fyerfyer/resume-analyzer/internal/embedding"
	"github.com/fyerfyer/resume-analyzer/internal/llm"
	"github.com/fyerfyer/resume-analyzer/internal/metrics"
	"github.com/fyerfyer/resume-analyzer/internal/models"
	"github.com/fyerfyer/resume-analyzer/internal/repository"
	"github.com/fyerfyer/resume-analyzer/internal/vectordb"
	"github.com/fyerfyer/resume-analyzer/pkg/storage"
	"github.com/fyerfyer/resume-analyzer/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// DefaultQuery 默认的简历分析问题
const DefaultQuery = "Analyze the resume and give some suggestions and rating out of 10"

// DefaultTopK 默认检索分块数
const DefaultTopK = 3

// ErrHistoryDisabled 未启用数据库时无法查询历史记录
var ErrHistoryDisabled = errors.New("analysis history is not enabled")

// 错误类别，用于指标标签和HTTP状态码映射
const (
	KindSuccess         = "success"
	KindEmptyDocument   = "empty_document"
	KindExtraction      = "extraction"
	KindInvalidArgument = "invalid_argument"
	KindEmbedding       = "embedding"
	KindGeneration      = "generation"
	KindNotFound        = "not_found"
	KindUnavailable     = "unavailable"
	KindInternal        = "internal"
)

// ErrorKind 返回错误所属类别
func ErrorKind(err error) string {
	if err == nil {
		return KindSuccess
	}
	switch {
	case errors.Is(err, document.ErrEmptyDocument):
		return KindEmptyDocument
	case errors.Is(err, document.ErrExtraction):
		return KindExtraction
	case errors.Is(err, vectordb.ErrInvalidK),
		errors.Is(err, document.ErrInvalidChunkSize),
		errors.Is(err, ErrEmptyQuery):
		return KindInvalidArgument
	case errors.Is(err, models.ErrAnalysisNotFound),
		errors.Is(err, taskqueue.ErrTaskNotFound):
		return KindNotFound
	case errors.Is(err, ErrHistoryDisabled),
		errors.Is(err, ErrQueueDisabled),
		errors.Is(err, ErrStorageDisabled):
		return KindUnavailable
	}
	if _, ok := embedding.AsEmbeddingError(err); ok {
		return KindEmbedding
	}
	if _, ok := llm.AsLLMError(err); ok {
		return KindGeneration
	}
	return KindInternal
}

// AnalysisRequest 分析参数，零值使用服务默认值
type AnalysisRequest struct {
	Query     string // 查询
	ChunkSize int    // 分块大小
	TopK      int    // 检索数量
}

// AnalysisResult 分析结果
type AnalysisResult struct {
	ID              string    // 分析ID
	FileName        string    // 文件名
	Query           string    // 实际使用的查询
	Answer          string    // 回答
	RetrievedChunks []string  // 命中分块文本，按距离升序
	Distances       []float32 // 命中分块距离
	Pages           []int     // 命中分块估算页码
	ChunkCount      int       // 分块数量
	PageCount       int       // 页数
	ModelName       string    // 生成模型
	Fallback        bool      // 回答是否来自原始响应
}

// AnalysisService 简历分析服务
// 协调文档解析、检索和回答生成，可选保存分析记录和异步处理
type AnalysisService struct {
	pipeline    *RetrievalPipeline            // 检索流程
	synthesizer *llm.Synthesizer              // 回答生成器
	repo        repository.AnalysisRepository // 分析记录存储，可为空
	storage     storage.Storage               // 上传文件存档，可为空
	taskQueue   taskqueue.Queue               // 任务队列，可为空
	chunkSize   int                           // 默认分块大小
	topK        int                           // 默认检索数量
	query       string                        // 默认查询
	metrics     *metrics.Metrics              // 指标
	logger      *logrus.Logger                // 日志记录器
}

// AnalysisOption 分析服务配置选项
type AnalysisOption func(*AnalysisService)

// NewAnalysisService 创建分析服务
func NewAnalysisService(pipeline *RetrievalPipeline, synthesizer *llm.Synthesizer, opts ...AnalysisOption) *AnalysisService {
	s := &AnalysisService{
		pipeline:    pipeline,
		synthesizer: synthesizer,
		chunkSize:   document.DefaultChunkSize,
		topK:        DefaultTopK,
		query:       DefaultQuery,
		logger:      logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithAnalysisRepository 设置分析记录仓储
func WithAnalysisRepository(repo repository.AnalysisRepository) AnalysisOption {
	return func(s *AnalysisService) {
		s.repo = repo
	}
}

// WithStorage 设置文件存储
func WithStorage(st storage.Storage) AnalysisOption {
	return func(s *AnalysisService) {
		s.storage = st
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) AnalysisOption {
	return func(s *AnalysisService) {
		s.taskQueue = queue
	}
}

// WithDefaults 设置默认分块大小、检索数量和查询
func WithDefaults(chunkSize, topK int, query string) AnalysisOption {
	return func(s *AnalysisService) {
		if chunkSize > 0 {
			s.chunkSize = chunkSize
		}
		if topK > 0 {
			s.topK = topK
		}
		if query != "" {
			s.query = query
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) AnalysisOption {
	return func(s *AnalysisService) {
		s.metrics = m
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) AnalysisOption {
	return func(s *AnalysisService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// AsyncEnabled 是否可以异步分析
func (s *AnalysisService) AsyncEnabled() bool {
	return s.taskQueue != nil && s.storage != nil
}

// HistoryEnabled 是否保存分析记录
func (s *AnalysisService) HistoryEnabled() bool {
	return s.repo != nil
}

// resolve 用默认值补全请求
func (s *AnalysisService) resolve(req AnalysisRequest) AnalysisRequest {
	if strings.TrimSpace(req.Query) == "" {
		req.Query = s.query
	}
	if req.ChunkSize == 0 {
		req.ChunkSize = s.chunkSize
	}
	if req.TopK == 0 {
		req.TopK = s.topK
	}
	return req
}

// AnalyzeReader 解析上传的文件并分析
func (s *AnalysisService) AnalyzeReader(ctx context.Context, r io.Reader, filename string, size int64, req AnalysisRequest) (*AnalysisResult, error) {
	id := uuid.New().String()
	req = s.resolve(req)

	start := time.Now()
	doc, err := document.ParseReader(r, filename)
	if err != nil {
		s.finish(id, filename, size, req, nil, err)
		return nil, err
	}
	s.metrics.ObserveStage(metrics.StageParse, start)

	result, err := s.analyze(ctx, id, doc, req)
	s.finish(id, filename, size, req, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AnalyzeDocument 分析已解析的文档
func (s *AnalysisService) AnalyzeDocument(ctx context.Context, doc *document.Document, req AnalysisRequest) (*AnalysisResult, error) {
	id := uuid.New().String()
	req = s.resolve(req)

	result, err := s.analyze(ctx, id, doc, req)
	var name string
	if doc != nil {
		name = doc.FileName
	}
	s.finish(id, name, 0, req, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// analyze 检索并生成回答
func (s *AnalysisService) analyze(ctx context.Context, id string, doc *document.Document, req AnalysisRequest) (*AnalysisResult, error) {
	retrieval, err := s.pipeline.Analyze(ctx, doc, req.Query, req.ChunkSize, req.TopK)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	answer, err := s.synthesizer.Synthesize(ctx, retrieval.ContextText, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	s.metrics.ObserveStage(metrics.StageSynthesize, start)

	if answer.Fallback {
		s.logger.WithField("analysis_id", id).Warn("Generation returned no text, using raw response")
	}

	return &AnalysisResult{
		ID:              id,
		FileName:        doc.FileName,
		Query:           req.Query,
		Answer:          answer.Text,
		RetrievedChunks: retrieval.Texts(),
		Distances:       retrieval.Distances(),
		Pages:           retrieval.Pages(),
		ChunkCount:      len(retrieval.Chunks),
		PageCount:       doc.PageCount(),
		ModelName:       answer.ModelName,
		Fallback:        answer.Fallback,
	}, nil
}

// finish 记录指标、日志，并在启用时保存分析记录
// 保存失败只记录警告，不影响返回结果
func (s *AnalysisService) finish(id, filename string, size int64, req AnalysisRequest, result *AnalysisResult, err error) {
	kind := ErrorKind(err)
	s.metrics.RecordAnalysis(kind)

	fields := logrus.Fields{
		"analysis_id": id,
		"file":        filename,
		"status":      kind,
	}
	if err != nil {
		s.logger.WithFields(fields).WithError(err).Warn("Analysis failed")
	} else {
		fields["chunks"] = result.ChunkCount
		fields["retrieved"] = len(result.RetrievedChunks)
		s.logger.WithFields(fields).Info("Analysis completed")
	}

	if s.repo == nil {
		return
	}

	record := &models.Analysis{
		ID:       id,
		FileName: filename,
		FileSize: size,
		Query:    req.Query,
	}
	applyOutcome(record, result, err)
	if saveErr := s.repo.Create(record); saveErr != nil {
		s.logger.WithError(saveErr).WithField("analysis_id", id).Warn("Failed to save analysis record")
	}
}

// applyOutcome 将分析结果写入记录
func applyOutcome(record *models.Analysis, result *AnalysisResult, err error) {
	now := time.Now()
	record.CompletedAt = &now

	if err != nil {
		record.Status = models.AnalysisStatusFailed
		record.Error = err.Error()
		return
	}

	record.Status = models.AnalysisStatusCompleted
	record.Answer = result.Answer
	record.ModelName = result.ModelName
	record.Fallback = result.Fallback
	record.ChunkCount = result.ChunkCount
	record.PageCount = result.PageCount
	record.RetrievedChunks = mustJSON(result.RetrievedChunks)
	record.Distances = mustJSON(ToFloat64s(result.Distances))
}

// GetAnalysis 获取分析记录
func (s *AnalysisService) GetAnalysis(id string) (*models.Analysis, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.repo.GetByID(id)
}

// ListAnalyses 列出最近的分析记录
func (s *AnalysisService) ListAnalyses(limit int) ([]*models.Analysis, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.repo.ListRecent(limit)
}

// ToFloat64s 将距离转换为float64以便JSON编码
func ToFloat64s(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// mustJSON 序列化为JSON列，失败时返回空数组
func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(data)
}
