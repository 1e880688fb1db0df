package vectordb

import (
	"errors"
	"fmt"
)

// 常用错误定义
var (
	ErrEmptyVector       = errors.New("empty vector")
	ErrEmptyIndex        = errors.New("index has no documents")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidK          = errors.New("k must be positive")
	ErrUnknownIndexType  = errors.New("unknown index type")
)

// Document 索引中的一个分块及其向量
type Document struct {
	ID       string    // 唯一标识符
	Position int       // 插入顺序，即分块序号
	Text     string    // 分块文本
	Page     int       // 估算页码
	Offset   int       // 在原文中的起始偏移
	Vector   []float32 // 向量表示
}

// SearchResult 搜索结果
type SearchResult struct {
	Document Document // 命中的分块
	Distance float32  // 与查询向量的平方欧氏距离
}

// Index 单个文档的精确最近邻索引
// 一次构建、只读查询，不支持增删
type Index interface {
	// Search 返回与vector距离最小的k个结果，按距离升序，距离相同时先插入的在前
	// k<=0返回ErrInvalidK，k大于索引大小时按索引大小返回
	Search(vector []float32, k int) ([]SearchResult, error)

	// Count 索引中的向量数
	Count() int

	// GetDimension 返回向量维数
	GetDimension() int

	// Close 释放索引资源
	Close() error
}

// Config 索引配置
type Config struct {
	Type string // 索引类型："flat"（默认）或 "faiss"
}

// Factory 索引构建函数类型
type Factory func(docs []Document) (Index, error)

// IndexRegistry 注册可用的索引实现
var IndexRegistry = map[string]Factory{}

// RegisterIndex 注册索引构建函数
func RegisterIndex(name string, factory Factory) {
	IndexRegistry[name] = factory
}

// Supported 判断索引类型是否已注册，空类型视为flat
// faiss只在 -tags faiss 构建时可用
func Supported(typ string) bool {
	if typ == "" {
		typ = "flat"
	}
	_, ok := IndexRegistry[typ]
	return ok
}

// NewIndex 根据配置构建索引，类型为空时使用flat
func NewIndex(config Config, docs []Document) (Index, error) {
	typ := config.Type
	if typ == "" {
		typ = "flat"
	}
	factory, ok := IndexRegistry[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndexType, typ)
	}
	return factory(docs)
}

// validateDocuments 检查所有向量维度一致并返回维度
func validateDocuments(docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, ErrEmptyIndex
	}

	dim := len(docs[0].Vector)
	if dim == 0 {
		return 0, fmt.Errorf("%w: document %d", ErrEmptyVector, 0)
	}
	for i, doc := range docs[1:] {
		if len(doc.Vector) != dim {
			return 0, fmt.Errorf("%w: document %d has dimension %d, expected %d",
				ErrDimensionMismatch, i+1, len(doc.Vector), dim)
		}
	}
	return dim, nil
}

// validateQuery 检查查询参数并返回实际返回条数
func validateQuery(vector []float32, k, dim, count int) (int, error) {
	if k <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(vector) != dim {
		return 0, fmt.Errorf("%w: query has dimension %d, expected %d", ErrDimensionMismatch, len(vector), dim)
	}
	if k > count {
		k = count
	}
	return k, nil
}
