package model

import (
	"mime/multipart"
)

// AnalyzeRequest 文档分析请求
// chunk_size 和 top_k 为0时使用服务默认值
type AnalyzeRequest struct {
	File      *multipart.FileHeader `form:"file" binding:"required"`                 // 上传的文档
	Query     string                `form:"query" binding:"omitempty,max=2000"`      // 分析问题
	ChunkSize int                   `form:"chunk_size" binding:"omitempty,min=1"`    // 分块大小
	TopK      int                   `form:"top_k" binding:"omitempty,min=1,max=100"` // 检索数量
}

// TaskStatusRequest 任务状态查询参数
type TaskStatusRequest struct {
	Wait int `form:"wait" binding:"omitempty,min=0,max=60"` // 最长等待秒数
}

// HistoryRequest 历史记录查询参数
type HistoryRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"` // 返回数量
}

// GetLimit 获取返回数量，默认为20
func (r *HistoryRequest) GetLimit() int {
	if r.Limit <= 0 {
		return 20
	}
	return r.Limit
}
