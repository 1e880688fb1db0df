package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskAnalyzeDocument 简历分析任务
	TaskAnalyzeDocument TaskType = "analyze_document"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// IsTerminal 是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	AnalysisID  string          `json:"analysis_id"`  // 关联的分析记录ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据
	Result      json.RawMessage `json:"result"`       // 任务结果数据
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// AnalyzePayload 简历分析任务载荷
// 上传的文件先存档，工作进程按FileID取回
type AnalyzePayload struct {
	AnalysisID string `json:"analysis_id"` // 分析记录ID
	FileID     string `json:"file_id"`     // 存储中的文件ID
	FileName   string `json:"file_name"`   // 原始文件名
	FileSize   int64  `json:"file_size"`   // 文件大小
	Query      string `json:"query"`       // 查询
	ChunkSize  int    `json:"chunk_size"`  // 分块大小
	TopK       int    `json:"top_k"`       // 检索数量
}

// AnalyzeResult 简历分析任务结果
type AnalyzeResult struct {
	AnalysisID      string    `json:"analysis_id"`      // 分析记录ID
	Answer          string    `json:"answer"`           // 回答
	RetrievedChunks []string  `json:"retrieved_chunks"` // 命中分块
	Distances       []float64 `json:"distances"`        // 命中距离
	Pages           []int     `json:"pages"`            // 命中分块的估算页码
	ChunkCount      int       `json:"chunk_count"`      // 分块数量
	PageCount       int       `json:"page_count"`       // 页数
}
