package handler

import (
	"net/http"
	"time"

	"github.com/fyerfyer/resume-analyzer/api/middleware"
	"github.com/fyerfyer/resume-analyzer/api/model"
	"github.com/fyerfyer/resume-analyzer/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TaskHandler 处理任务相关的API请求
type TaskHandler struct {
	service *services.AnalysisService // 分析服务
	logger  *logrus.Logger            // 日志记录器
}

// NewTaskHandler 创建新的任务处理器
func NewTaskHandler(service *services.AnalysisService) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  middleware.GetLogger(),
	}
}

// GetTaskStatus 获取任务状态
// GET /api/tasks/:id?wait=秒数
func (h *TaskHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		middleware.HandleError(c, middleware.NewValidationError("Task ID is required"))
		return
	}

	var req model.TaskStatusRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("Invalid query parameters", err.Error()))
		return
	}

	info, err := h.service.GetTask(c.Request.Context(), taskID, time.Duration(req.Wait)*time.Second)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"task_id":               taskID,
			middleware.FieldTraceID: middleware.GetTraceID(c),
		}).WithError(err).Debug("Failed to get task")
		middleware.HandleError(c, ToAppError(err))
		return
	}

	resp := model.NewSuccessResponse(info)
	resp.TraceID = middleware.GetTraceID(c)
	c.JSON(http.StatusOK, resp)
}
