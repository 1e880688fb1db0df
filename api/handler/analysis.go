package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fyerfyer/resume-analyzer/api/middleware"
	"github.com/fyerfyer/resume-analyzer/api/model"
	"github.com/fyerfyer/resume-analyzer/internal/document"
	"github.com/fyerfyer/resume-analyzer/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DefaultMaxUploadBytes 默认上传大小限制
const DefaultMaxUploadBytes int64 = 10 << 20

// multipartOverhead 为multipart边界和表单字段预留的字节数
const multipartOverhead int64 = 1 << 20

// AnalysisHandler 处理文档分析相关的API请求
type AnalysisHandler struct {
	service        *services.AnalysisService // 分析服务
	maxUploadBytes int64                     // 上传文件大小限制
	requestTimeout time.Duration             // 单次分析的超时时间
	logger         *logrus.Logger            // 日志记录器
}

// AnalysisHandlerOption 分析处理器配置选项
type AnalysisHandlerOption func(*AnalysisHandler)

// WithMaxUploadBytes 设置上传大小限制
func WithMaxUploadBytes(n int64) AnalysisHandlerOption {
	return func(h *AnalysisHandler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithRequestTimeout 设置分析超时时间，0表示不限制
func WithRequestTimeout(d time.Duration) AnalysisHandlerOption {
	return func(h *AnalysisHandler) {
		h.requestTimeout = d
	}
}

// NewAnalysisHandler 创建分析处理器
func NewAnalysisHandler(service *services.AnalysisService, opts ...AnalysisHandlerOption) *AnalysisHandler {
	h := &AnalysisHandler{
		service:        service,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         middleware.GetLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RAGQuery 使用默认问题分析上传的简历
// POST /rag-query
// 响应为 {answer, retrieved_chunks, distances}，出错时为 {error}
func (h *AnalysisHandler) RAGQuery(c *gin.Context) {
	h.limitBody(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		appErr := h.uploadError(err)
		c.JSON(appErr.Code, model.RAGErrorResponse{Error: appErr.Message})
		return
	}

	result, err := h.analyzeUpload(c, fileHeader, services.AnalysisRequest{})
	if err != nil {
		appErr := ToAppError(err)
		h.logger.WithFields(logrus.Fields{
			middleware.FieldTraceID: middleware.GetTraceID(c),
			middleware.FieldStatus:  appErr.Code,
			"file":                  fileHeader.Filename,
		}).WithError(err).Warn("RAG query failed")
		c.JSON(appErr.Code, model.RAGErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.RAGQueryResponse{
		Answer:          result.Answer,
		RetrievedChunks: nonNilStrings(result.RetrievedChunks),
		Distances:       services.ToFloat64s(result.Distances),
	})
}

// Analyze 分析上传的文档，可指定问题、分块大小和检索数量
// POST /api/analyze
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	h.limitBody(c)

	var req model.AnalyzeRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, h.uploadError(err))
		return
	}

	result, err := h.analyzeUpload(c, req.File, services.AnalysisRequest{
		Query:     req.Query,
		ChunkSize: req.ChunkSize,
		TopK:      req.TopK,
	})
	if err != nil {
		middleware.HandleError(c, ToAppError(err))
		return
	}

	resp := model.NewSuccessResponse(toAnalysisResponse(result))
	resp.TraceID = middleware.GetTraceID(c)
	c.JSON(http.StatusOK, resp)
}

// AnalyzeAsync 存档上传的文档并提交异步分析任务
// POST /api/analyze/async
func (h *AnalysisHandler) AnalyzeAsync(c *gin.Context) {
	if !h.service.AsyncEnabled() {
		middleware.HandleError(c, middleware.NewUnavailableError("Async analysis is not enabled"))
		return
	}
	h.limitBody(c)

	var req model.AnalyzeRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, h.uploadError(err))
		return
	}
	if !document.IsSupported(req.File.Filename) {
		middleware.HandleError(c, middleware.NewExtractionError("Unsupported file type", req.File.Filename))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("Failed to open uploaded file", err.Error()))
		return
	}
	defer file.Close()

	taskID, analysisID, err := h.service.EnqueueAnalysis(c.Request.Context(), file, req.File.Filename, req.File.Size, services.AnalysisRequest{
		Query:     req.Query,
		ChunkSize: req.ChunkSize,
		TopK:      req.TopK,
	})
	if err != nil {
		middleware.HandleError(c, ToAppError(err))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":               taskID,
		"analysis_id":           analysisID,
		"file":                  req.File.Filename,
		middleware.FieldTraceID: middleware.GetTraceID(c),
	}).Info("Analysis task enqueued")

	resp := model.NewSuccessResponse(model.AsyncAnalysisResponse{
		TaskID:     taskID,
		AnalysisID: analysisID,
		Status:     "pending",
	})
	resp.TraceID = middleware.GetTraceID(c)
	c.JSON(http.StatusAccepted, resp)
}

// analyzeUpload 校验文件类型并执行同步分析
func (h *AnalysisHandler) analyzeUpload(c *gin.Context, fileHeader *multipart.FileHeader, req services.AnalysisRequest) (*services.AnalysisResult, error) {
	if fileHeader.Size > h.maxUploadBytes {
		return nil, middleware.NewPayloadTooLargeError("Uploaded file is too large", fileHeader.Filename)
	}
	if !document.IsSupported(fileHeader.Filename) {
		return nil, middleware.NewExtractionError("Unsupported file type", fileHeader.Filename)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, middleware.NewInternalError("Failed to open uploaded file", err.Error())
	}
	defer file.Close()

	ctx := c.Request.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	return h.service.AnalyzeReader(ctx, file, fileHeader.Filename, fileHeader.Size, req)
}

// limitBody 限制请求体大小
func (h *AnalysisHandler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
}

// uploadError 转换读取上传表单时的错误
func (h *AnalysisHandler) uploadError(err error) middleware.AppError {
	if isBodyTooLarge(err) {
		return middleware.NewPayloadTooLargeError("Uploaded file is too large")
	}
	return middleware.NewValidationError("Invalid upload request", err.Error())
}

func toAnalysisResponse(result *services.AnalysisResult) *model.AnalysisResponse {
	pages := result.Pages
	if pages == nil {
		pages = []int{}
	}
	return &model.AnalysisResponse{
		AnalysisID:      result.ID,
		FileName:        result.FileName,
		Query:           result.Query,
		Answer:          result.Answer,
		RetrievedChunks: nonNilStrings(result.RetrievedChunks),
		Distances:       services.ToFloat64s(result.Distances),
		Pages:           pages,
		ChunkCount:      result.ChunkCount,
		PageCount:       result.PageCount,
		Model:           result.ModelName,
		Fallback:        result.Fallback,
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
