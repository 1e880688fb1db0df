package repository

import "github.com/fyerfyer/resume-analyzer/internal/models"

// AnalysisRepository 分析记录仓储接口
// 负责分析结果的存储和检索
type AnalysisRepository interface {
	// Create 创建分析记录
	Create(analysis *models.Analysis) error

	// Update 更新分析记录
	Update(analysis *models.Analysis) error

	// GetByID 根据ID获取分析记录
	GetByID(id string) (*models.Analysis, error)

	// GetByTaskID 根据异步任务ID获取分析记录
	GetByTaskID(taskID string) (*models.Analysis, error)

	// ListRecent 按创建时间倒序列出最近的分析记录
	ListRecent(limit int) ([]*models.Analysis, error)

	// UpdateStatus 更新分析状态
	UpdateStatus(id string, status models.AnalysisStatus, errorMsg string) error

	// SetTaskID 只写入任务ID，不覆盖其他字段
	SetTaskID(id, taskID string) error

	// Delete 删除分析记录
	Delete(id string) error
}
