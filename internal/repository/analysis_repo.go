package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/resume-analyzer/internal/database"
	"github.com/fyerfyer/resume-analyzer/internal/models"
	"gorm.io/gorm"
)

// DefaultListLimit 默认返回的记录数
const DefaultListLimit = 20

// MaxListLimit 单次最多返回的记录数
const MaxListLimit = 100

// analysisRepository 分析记录仓储实现
type analysisRepository struct {
	db *gorm.DB // 数据库连接
}

// NewAnalysisRepository 创建分析记录仓储实例
func NewAnalysisRepository() AnalysisRepository {
	return &analysisRepository{db: database.MustDB()}
}

// NewAnalysisRepositoryWithDB 使用指定的数据库连接创建仓储实例
func NewAnalysisRepositoryWithDB(db *gorm.DB) AnalysisRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &analysisRepository{db: db}
}

// Create 创建分析记录
func (r *analysisRepository) Create(analysis *models.Analysis) error {
	if analysis.ID == "" {
		return errors.New("analysis ID cannot be empty")
	}
	return r.db.Create(analysis).Error
}

// Update 更新分析记录
func (r *analysisRepository) Update(analysis *models.Analysis) error {
	if analysis.ID == "" {
		return errors.New("analysis ID cannot be empty")
	}
	return r.db.Save(analysis).Error
}

// GetByID 根据ID获取分析记录
func (r *analysisRepository) GetByID(id string) (*models.Analysis, error) {
	var analysis models.Analysis
	err := r.db.Where("id = ?", id).First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrAnalysisNotFound, id)
		}
		return nil, err
	}
	return &analysis, nil
}

// GetByTaskID 根据异步任务ID获取分析记录
func (r *analysisRepository) GetByTaskID(taskID string) (*models.Analysis, error) {
	var analysis models.Analysis
	err := r.db.Where("task_id = ?", taskID).First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task %s", models.ErrAnalysisNotFound, taskID)
		}
		return nil, err
	}
	return &analysis, nil
}

// ListRecent 按创建时间倒序列出最近的分析记录
func (r *analysisRepository) ListRecent(limit int) ([]*models.Analysis, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var analyses []*models.Analysis
	err := r.db.Order("created_at DESC").Limit(limit).Find(&analyses).Error
	if err != nil {
		return nil, err
	}
	return analyses, nil
}

// UpdateStatus 更新分析状态
// 进入终态时同时记录完成时间
func (r *analysisRepository) UpdateStatus(id string, status models.AnalysisStatus, errorMsg string) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %s", models.ErrInvalidAnalysisStatus, status)
	}

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}
	if status == models.AnalysisStatusCompleted || status == models.AnalysisStatusFailed {
		updates["completed_at"] = time.Now()
	}

	result := r.db.Model(&models.Analysis{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrAnalysisNotFound, id)
	}
	return nil
}

// SetTaskID 记录异步任务ID
// 只更新task_id列，worker可能已经写入了结果
func (r *analysisRepository) SetTaskID(id, taskID string) error {
	result := r.db.Model(&models.Analysis{}).Where("id = ?", id).Update("task_id", taskID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrAnalysisNotFound, id)
	}
	return nil
}

// Delete 删除分析记录
func (r *analysisRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&models.Analysis{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrAnalysisNotFound, id)
	}
	return nil
}
