package model

import (
	"time"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// RAGQueryResponse /rag-query 的响应，字段与前端约定一致
type RAGQueryResponse struct {
	Answer          string    `json:"answer"`           // 回答
	RetrievedChunks []string  `json:"retrieved_chunks"` // 命中分块，按距离升序
	Distances       []float64 `json:"distances"`        // 命中距离
}

// RAGErrorResponse /rag-query 的错误响应
type RAGErrorResponse struct {
	Error string `json:"error"`
}

// AnalysisResponse 分析结果
type AnalysisResponse struct {
	AnalysisID      string    `json:"analysis_id"`        // 分析ID
	FileName        string    `json:"filename"`           // 文件名
	Query           string    `json:"query"`              // 实际使用的查询
	Answer          string    `json:"answer"`             // 回答
	RetrievedChunks []string  `json:"retrieved_chunks"`   // 命中分块
	Distances       []float64 `json:"distances"`          // 命中距离
	Pages           []int     `json:"pages"`              // 命中分块的估算页码
	ChunkCount      int       `json:"chunk_count"`        // 分块数量
	PageCount       int       `json:"page_count"`         // 页数
	Model           string    `json:"model,omitempty"`    // 生成模型
	Fallback        bool      `json:"fallback,omitempty"` // 回答是否来自原始响应
}

// AsyncAnalysisResponse 异步分析提交响应
type AsyncAnalysisResponse struct {
	TaskID     string `json:"task_id"`     // 任务ID
	AnalysisID string `json:"analysis_id"` // 分析ID
	Status     string `json:"status"`      // 任务状态
}

// AnalysisRecord 历史分析记录
type AnalysisRecord struct {
	AnalysisID      string     `json:"analysis_id"`            // 分析ID
	FileName        string     `json:"filename"`               // 文件名
	FileSize        int64      `json:"file_size"`              // 文件大小
	Query           string     `json:"query"`                  // 查询
	Status          string     `json:"status"`                 // 状态
	Answer          string     `json:"answer,omitempty"`       // 回答
	RetrievedChunks []string   `json:"retrieved_chunks"`       // 命中分块
	Distances       []float64  `json:"distances"`              // 命中距离
	ChunkCount      int        `json:"chunk_count"`            // 分块数量
	PageCount       int        `json:"page_count"`             // 页数
	Model           string     `json:"model,omitempty"`        // 生成模型
	Error           string     `json:"error,omitempty"`        // 错误信息
	TaskID          string     `json:"task_id,omitempty"`      // 异步任务ID
	CreatedAt       time.Time  `json:"created_at"`             // 创建时间
	CompletedAt     *time.Time `json:"completed_at,omitempty"` // 完成时间
}

// AnalysisListResponse 历史分析列表
type AnalysisListResponse struct {
	Total int               `json:"total"` // 返回数量
	Items []*AnalysisRecord `json:"items"` // 记录列表
}
