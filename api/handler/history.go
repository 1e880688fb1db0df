package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fyerfyer/resume-analyzer/api/middleware"
	"github.com/fyerfyer/resume-analyzer/api/model"
	"github.com/fyerfyer/resume-analyzer/internal/models"
	"github.com/fyerfyer/resume-analyzer/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HistoryHandler 处理分析记录查询
type HistoryHandler struct {
	service *services.AnalysisService
	logger  *logrus.Logger
}

// NewHistoryHandler 创建历史记录处理器
func NewHistoryHandler(service *services.AnalysisService) *HistoryHandler {
	return &HistoryHandler{
		service: service,
		logger:  middleware.GetLogger(),
	}
}

// ListAnalyses 列出最近的分析记录
// GET /api/analyses?limit=N
func (h *HistoryHandler) ListAnalyses(c *gin.Context) {
	var req model.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid query parameters", err.Error()))
		return
	}

	records, err := h.service.ListAnalyses(req.GetLimit())
	if err != nil {
		middleware.HandleError(c, ToAppError(err))
		return
	}

	items := make([]*model.AnalysisRecord, 0, len(records))
	for _, r := range records {
		items = append(items, h.toRecord(r))
	}

	resp := model.NewSuccessResponse(model.AnalysisListResponse{
		Total: len(items),
		Items: items,
	})
	resp.TraceID = middleware.GetTraceID(c)
	c.JSON(http.StatusOK, resp)
}

// GetAnalysis 获取单条分析记录
// GET /api/analyses/:id
func (h *HistoryHandler) GetAnalysis(c *gin.Context) {
	record, err := h.service.GetAnalysis(c.Param("id"))
	if err != nil {
		middleware.HandleError(c, ToAppError(err))
		return
	}

	resp := model.NewSuccessResponse(h.toRecord(record))
	resp.TraceID = middleware.GetTraceID(c)
	c.JSON(http.StatusOK, resp)
}

func (h *HistoryHandler) toRecord(a *models.Analysis) *model.AnalysisRecord {
	record := &model.AnalysisRecord{
		AnalysisID:      a.ID,
		FileName:        a.FileName,
		FileSize:        a.FileSize,
		Query:           a.Query,
		Status:          string(a.Status),
		Answer:          a.Answer,
		RetrievedChunks: []string{},
		Distances:       []float64{},
		ChunkCount:      a.ChunkCount,
		PageCount:       a.PageCount,
		Model:           a.ModelName,
		Error:           a.Error,
		TaskID:          a.TaskID,
		CreatedAt:       a.CreatedAt,
		CompletedAt:     a.CompletedAt,
	}

	if len(a.RetrievedChunks) > 0 {
		if err := json.Unmarshal(a.RetrievedChunks, &record.RetrievedChunks); err != nil {
			h.logger.WithError(err).WithField("analysis_id", a.ID).Warn("Malformed retrieved_chunks column")
		}
	}
	if len(a.Distances) > 0 {
		if err := json.Unmarshal(a.Distances, &record.Distances); err != nil {
			h.logger.WithError(err).WithField("analysis_id", a.ID).Warn("Malformed distances column")
		}
	}
	return record
}
