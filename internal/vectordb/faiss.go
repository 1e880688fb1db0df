//go:build faiss

package vectordb

import (
	"fmt"
	"sort"

	"github.com/DataIntelligenceCrew/go-faiss"
)

// FaissIndex 基于Faiss IndexFlatL2的精确索引
// Faiss返回的是平方欧氏距离，与flat索引一致
// 依赖libfaiss_c，只在 -tags faiss 构建时注册
type FaissIndex struct {
	index faiss.Index
	docs  []Document
	dim   int
}

// NewFaissIndex 构建Faiss索引
func NewFaissIndex(docs []Document) (Index, error) {
	dim, err := validateDocuments(docs)
	if err != nil {
		return nil, err
	}

	index, err := faiss.NewIndexFlatL2(dim)
	if err != nil {
		return nil, fmt.Errorf("failed to create Faiss index: %w", err)
	}

	flat := make([]float32, 0, len(docs)*dim)
	for _, doc := range docs {
		flat = append(flat, doc.Vector...)
	}
	if err := index.Add(flat); err != nil {
		index.Delete()
		return nil, fmt.Errorf("failed to add vectors to Faiss index: %w", err)
	}

	stored := make([]Document, len(docs))
	copy(stored, docs)
	return &FaissIndex{index: index, docs: stored, dim: dim}, nil
}

// Search 精确搜索
// 查询全部向量后按(距离, 插入位置)排序再截取，保证距离相同时先插入的在前
func (f *FaissIndex) Search(vector []float32, k int) ([]SearchResult, error) {
	k, err := validateQuery(vector, k, f.dim, len(f.docs))
	if err != nil {
		return nil, err
	}

	distances, labels, err := f.index.Search(vector, int64(len(f.docs)))
	if err != nil {
		return nil, fmt.Errorf("failed to search Faiss index: %w", err)
	}

	type hit struct {
		label    int
		distance float32
	}
	hits := make([]hit, 0, len(labels))
	for i, label := range labels {
		if label < 0 || int(label) >= len(f.docs) {
			continue
		}
		hits = append(hits, hit{label: int(label), distance: distances[i]})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].label < hits[j].label
	})

	if k > len(hits) {
		k = len(hits)
	}
	results := make([]SearchResult, k)
	for i := 0; i < k; i++ {
		results[i] = SearchResult{Document: f.docs[hits[i].label], Distance: hits[i].distance}
	}
	return results, nil
}

// Count 索引中的向量数
func (f *FaissIndex) Count() int {
	return len(f.docs)
}

// GetDimension 返回向量维数
func (f *FaissIndex) GetDimension() int {
	return f.dim
}

// Close 释放Faiss索引
func (f *FaissIndex) Close() error {
	if f.index != nil {
		f.index.Delete()
		f.index = nil
	}
	return nil
}

func init() {
	RegisterIndex("faiss", NewFaissIndex)
}
