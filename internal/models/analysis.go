package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnalysisStatus 分析状态类型
type AnalysisStatus string

const (
	// AnalysisStatusPending 已入队，等待处理
	AnalysisStatusPending AnalysisStatus = "pending"
	// AnalysisStatusProcessing 处理中
	AnalysisStatusProcessing AnalysisStatus = "processing"
	// AnalysisStatusCompleted 处理完成
	AnalysisStatusCompleted AnalysisStatus = "completed"
	// AnalysisStatusFailed 处理失败
	AnalysisStatusFailed AnalysisStatus = "failed"
)

// IsValid 判断状态是否合法
func (s AnalysisStatus) IsValid() bool {
	switch s {
	case AnalysisStatusPending, AnalysisStatusProcessing, AnalysisStatusCompleted, AnalysisStatusFailed:
		return true
	}
	return false
}

// Analysis 一次文档分析的记录
// 只保存回答和命中的分块，不保存向量
type Analysis struct {
	ID              string         `gorm:"primaryKey" json:"id"`                      // 分析ID
	FileName        string         `gorm:"not null" json:"file_name"`                 // 文件名
	FileSize        int64          `gorm:"not null;default:0" json:"file_size"`       // 文件大小（字节）
	Query           string         `gorm:"type:text" json:"query"`                    // 查询
	Status          AnalysisStatus `gorm:"not null;index;size:20" json:"status"`      // 状态
	Answer          string         `gorm:"type:text" json:"answer"`                   // 回答
	ModelName       string         `gorm:"size:100" json:"model_name"`                // 生成模型
	Fallback        bool           `gorm:"default:false" json:"fallback"`             // 回答是否来自原始响应
	ChunkCount      int            `gorm:"not null;default:0" json:"chunk_count"`     // 分块数量
	PageCount       int            `gorm:"not null;default:0" json:"page_count"`      // 页数
	RetrievedChunks datatypes.JSON `gorm:"type:json" json:"retrieved_chunks"`         // 命中分块文本
	Distances       datatypes.JSON `gorm:"type:json" json:"distances"`                // 命中分块距离
	Error           string         `gorm:"type:text" json:"error,omitempty"`          // 错误信息
	TaskID          string         `gorm:"size:50;index" json:"task_id,omitempty"`    // 关联的异步任务ID
	CreatedAt       time.Time      `gorm:"not null;index" json:"created_at"`          // 创建时间
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`                // 更新时间
	CompletedAt     *time.Time     `gorm:"index" json:"completed_at,omitempty"`       // 完成时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (a *Analysis) BeforeCreate(tx *gorm.DB) (err error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.Status == "" {
		a.Status = AnalysisStatusPending
	}
	a.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (a *Analysis) BeforeUpdate(tx *gorm.DB) (err error) {
	a.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Analysis) TableName() string {
	return "analyses"
}
